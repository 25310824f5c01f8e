package taxonomy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoCode is returned when an identifier carries no usable numeric code.
	ErrNoCode = errors.New("taxonomy: identifier has no numeric code")

	// ErrUnmatchedPrefix is returned when an identifier does not start with
	// any configured source prefix.
	ErrUnmatchedPrefix = errors.New("taxonomy: identifier matches no source prefix")
)

var separators = strings.NewReplacer("-", "_", " ", "_", ".", "_")

// Canonical normalizes the separator characters of an identifier to "_".
func Canonical(id string) string {
	return separators.Replace(strings.TrimSpace(id))
}

// Code is the parsed form of a prefixed identifier such as CFIHOS-10000001.
type Code struct {
	Prefix string // source prefix, canonical form
	Value  int    // numeric code, always >= 1
	Digits string // digit run as written, leading zeros kept
}

// GroupPrefix returns the prefix range groups are named with: the source
// prefix followed by the first digit of the code as written, so
// CFIHOS-00000050 belongs to CFIHOS_0.
func (c Code) GroupPrefix() string {
	digits := c.Digits
	if digits == "" {
		digits = strconv.Itoa(c.Value)
	}
	return c.Prefix + "_" + digits[:1]
}

// ParseCode extracts the source prefix and numeric code from id. The longest
// prefix followed by "_" or a digit wins; CFIHOS does not match CFIHOSX-1.
func ParseCode(id string, prefixes []string) (Code, error) {
	canon := Canonical(id)

	candidates := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = Canonical(p); p != "" {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	for _, p := range candidates {
		if !strings.HasPrefix(canon, p) {
			continue
		}
		if len(canon) > len(p) && canon[len(p)] != '_' && (canon[len(p)] < '0' || canon[len(p)] > '9') {
			continue
		}
		rest := strings.TrimLeft(canon[len(p):], "_")
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end == 0 {
			return Code{}, fmt.Errorf("%w: %q", ErrNoCode, id)
		}
		n, err := strconv.Atoi(rest[:end])
		if err != nil || n < 1 {
			return Code{}, fmt.Errorf("%w: %q", ErrNoCode, id)
		}
		return Code{Prefix: p, Value: n, Digits: rest[:end]}, nil
	}
	return Code{}, fmt.Errorf("%w: %q", ErrUnmatchedPrefix, id)
}
