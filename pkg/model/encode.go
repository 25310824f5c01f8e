package model

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// Format is an output encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Encode writes res to w.
func Encode(w io.Writer, res *Result, format Format) error {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatYAML, "":
		out, err = yaml.Marshal(res)
	case FormatJSON:
		out, err = json.MarshalIndent(res, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// Decode reads a result written by Encode in either format.
func Decode(data []byte) (*Result, error) {
	var res Result
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &res, nil
}
