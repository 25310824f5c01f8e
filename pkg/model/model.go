// Package model builds the container and view descriptors handed to the
// deployment side.
//
// Two shapes are produced from the same grouping:
//
//   - BuildContainers emits one container per storage group, a mirror view
//     per first-class group, and a property descriptor per stored slot.
//   - BuildViews emits one view per entity of a resolved scope. View
//     properties point at the containers BuildContainers would produce, so
//     both outputs can be deployed side by side.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Property describes one view property and the container slot behind it.
type Property struct {
	View              string `json:"view,omitempty"`
	ViewProperty      string `json:"viewProperty"`
	Name              string `json:"name,omitempty"`
	Description       string `json:"description,omitempty"`
	Connection        string `json:"connection,omitempty"`
	ValueType         string `json:"valueType"`
	MinCount          int    `json:"minCount"`
	MaxCount          string `json:"maxCount"`
	Immutable         bool   `json:"immutable,omitempty"`
	Container         string `json:"container,omitempty"`
	ContainerProperty string `json:"containerProperty,omitempty"`
	Index             string `json:"index,omitempty"`
}

// Container describes one storage container.
type Container struct {
	Container   string `json:"container"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	UsedFor     string `json:"usedFor"`
}

// View describes one view.
type View struct {
	View        string   `json:"view"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Implements  []string `json:"implements,omitempty"`
	Filter      string   `json:"filter,omitempty"`
	InModel     bool     `json:"inModel"`
}

// Metadata describes the produced data model.
type Metadata struct {
	Role          string `json:"role"`
	DataModelType string `json:"dataModelType"`
	Schema        string `json:"schema"`
	Space         string `json:"space"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ExternalID    string `json:"externalId"`
	Version       string `json:"version"`
	Creator       string `json:"creator,omitempty"`
}

// Result is the complete output of one run.
type Result struct {
	Properties []Property  `json:"properties"`
	Containers []Container `json:"containers"`
	Views      []View      `json:"views"`
	Metadata   Metadata    `json:"metadata"`
}

// Identifier selects how view and view property IDs are formed.
type Identifier string

const (
	// IdentifierCode uses canonical taxonomy codes, e.g. CFIHOS_30000311.
	IdentifierCode Identifier = "code"
	// IdentifierName uses storage-safe names, e.g. CentrifugalPump.
	IdentifierName Identifier = "name"
)

// ParseIdentifier accepts "code", "name" and the cfihos_ prefixed forms.
func ParseIdentifier(s string) (Identifier, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "cfihos_") {
	case "", "code":
		return IdentifierCode, nil
	case "name":
		return IdentifierName, nil
	}
	return "", fmt.Errorf("unknown identifier mode %q (want code or name)", s)
}

// Index puts the listed properties of a first-class container into a
// container index.
type Index struct {
	Type       string   `mapstructure:"index_type" json:"index_type"`
	ID         string   `mapstructure:"index_id" json:"index_id"`
	Cursorable bool     `mapstructure:"cursorable" json:"cursorable"`
	Properties []string `mapstructure:"properties" json:"properties"`
}

// Options configure the builders.
type Options struct {
	ContainerSpace string
	Identifier     Identifier

	// Indexes maps a first-class entity ID to its container indexes.
	Indexes map[string][]Index

	Metadata Metadata
}

const (
	maxOne       = "1"
	maxUnbounded = "inf"
	usedForNode  = "node"
)

// Filter restricts a view to instances whose entityType is one of Values.
type Filter struct {
	Property [3]string
	Values   []string
}

// String renders the filter in rawFilter form.
func (f Filter) String() string {
	body := map[string]any{
		"and": []any{
			map[string]any{
				"in": map[string]any{
					"property": f.Property[:],
					"values":   f.Values,
				},
			},
		},
	}
	raw, _ := json.Marshal(body)
	return "rawFilter(" + string(raw) + ")"
}
