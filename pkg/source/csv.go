package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// listSep separates multi-valued cells (parents, targets, core views).
const listSep = ";"

// sheet is a CSV file indexed by header name.
type sheet struct {
	path   string
	cols   map[string]int
	reader *csv.Reader
	line   int
}

func openSheet(path string, required ...string) (*sheet, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%s: missing column %q", path, c)
		}
	}
	return &sheet{path: path, cols: cols, reader: r, line: 1}, f.Close, nil
}

// next returns the next non-blank row, or io.EOF.
func (s *sheet) next() ([]string, error) {
	for {
		row, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		s.line++
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return row, nil
			}
		}
	}
}

func (s *sheet) get(row []string, col string) string {
	i, ok := s.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s *sheet) list(row []string, col string) []string {
	return splitList(s.get(row, col))
}

func (s *sheet) bool(row []string, col string) (bool, error) {
	v := s.get(row, col)
	b, err := parseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s:%d: column %s: %w", s.path, s.line, col, err)
	}
	return b, nil
}

func readEntitiesCSV(path string) (_ []taxonomy.EntityRecord, err error) {
	s, closeFn, err := openSheet(path, "id")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()

	var out []taxonomy.EntityRecord
	for {
		row, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		fc, err := s.bool(row, "first_class")
		if err != nil {
			return nil, err
		}
		out = append(out, taxonomy.EntityRecord{
			ID:          s.get(row, "id"),
			Name:        s.get(row, "name"),
			Description: s.get(row, "description"),
			StorageName: s.get(row, "storage_name"),
			FirstClass:  fc,
			Parents:     s.list(row, "parents"),

			CoreImplements: s.list(row, "implements_core_model"),
		})
	}
}

func readPropertiesCSV(path string) (_ []taxonomy.PropertyRecord, err error) {
	s, closeFn, err := openSheet(path, "id", "entity_id")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()

	var out []taxonomy.PropertyRecord
	for {
		row, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		kind, err := taxonomy.ParseKind(s.get(row, "kind"))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, s.line, err)
		}
		required, err := s.bool(row, "required")
		if err != nil {
			return nil, err
		}
		uom, err := s.bool(row, "uom")
		if err != nil {
			return nil, err
		}
		out = append(out, taxonomy.PropertyRecord{
			ID:              s.get(row, "id"),
			EntityID:        s.get(row, "entity_id"),
			Name:            s.get(row, "name"),
			Description:     s.get(row, "description"),
			Kind:            kind,
			DataType:        s.get(row, "data_type"),
			Required:        required,
			UOM:             uom,
			Targets:         s.list(row, "targets"),
			ThroughProperty: s.get(row, "through_property"),
			EdgeType:        s.get(row, "edge_type"),
			EdgeDirection:   s.get(row, "edge_direction"),
		})
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, listSep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBool accepts the spreadsheet spellings of a flag. Empty is false.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "no", "n", "0":
		return false, nil
	case "true", "yes", "y", "1", "x":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}
