// Package naming derives storage-safe names from taxonomy labels.
package naming

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength is the length a name may reach before it is abbreviated.
	MaxLength = 50 + versionLength

	versionLength = 4
	keepOnShorten = 10
)

// Entity returns a PascalCase name, e.g. "Centrifugal pump" -> "CentrifugalPump".
func Entity(label string) string {
	return shorten(inflect.Camelize(words(label)))
}

// Property returns a camelCase name, e.g. "Design pressure" -> "designPressure".
func Property(label string) string {
	return shorten(inflect.CamelizeDownFirst(words(label)))
}

// words strips diacritics and punctuation, leaving space separated words.
func words(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, label)
	if err != nil {
		plain = label
	}
	var b strings.Builder
	for _, r := range plain {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	for i, f := range fields {
		// leave acronyms alone, title-case the rest
		if strings.ToUpper(f) != f {
			fields[i] = strings.ToLower(f)
		}
	}
	return strings.Join(fields, " ")
}

// shorten keeps the first MaxLength-keepOnShorten characters of a long name
// and only the capital letters of the remainder.
func shorten(name string) string {
	if len(name) < MaxLength {
		return name
	}
	cut := MaxLength - keepOnShorten
	var b strings.Builder
	b.WriteString(name[:cut])
	for _, r := range name[cut:] {
		if unicode.IsUpper(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > MaxLength+versionLength {
		out = out[:MaxLength+versionLength]
	}
	return out
}
