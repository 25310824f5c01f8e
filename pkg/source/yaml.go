package source

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// document is the YAML form of a source.
type document struct {
	Entities   []taxonomy.EntityRecord   `json:"entities"`
	Properties []taxonomy.PropertyRecord `json:"properties"`
}

func readYAML(path string) ([]taxonomy.EntityRecord, []taxonomy.PropertyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Entities, doc.Properties, nil
}
