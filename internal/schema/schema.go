// Package schema carries the declarative description of the ndx-pose types
// as embedded YAML, in the NWB specification language.
//
// The description is not used to build objects. It documents the on-disk
// layout for other tools and lets Validate check that a written tree has the
// shape other NWB readers expect. Tests in the mapper package keep the
// description and the mappers in sync.
package schema

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed spec/*.yaml
var specFS embed.FS

// File names inside the embedded spec directory.
const (
	NamespaceFile  = "spec/ndx-pose.namespace.yaml"
	ExtensionsFile = "spec/ndx-pose.extensions.yaml"
)

// NamespaceDoc is the top level of the namespace file.
type NamespaceDoc struct {
	Namespaces []Namespace `yaml:"namespaces"`
}

// Namespace describes one extension.
type Namespace struct {
	Name    string      `yaml:"name"`
	Doc     string      `yaml:"doc"`
	Version string      `yaml:"version"`
	Author  []string    `yaml:"author"`
	Contact []string    `yaml:"contact"`
	Schema  []SchemaRef `yaml:"schema"`
}

// SchemaRef is either a source file or a set of types from another namespace.
type SchemaRef struct {
	Namespace      string   `yaml:"namespace,omitempty"`
	NeurodataTypes []string `yaml:"neurodata_types,omitempty"`
	Source         string   `yaml:"source,omitempty"`
}

// Extensions is the top level of the extensions file.
type Extensions struct {
	Groups []GroupSpec `yaml:"groups"`
}

// GroupSpec declares a group type or a group slot inside another type.
type GroupSpec struct {
	TypeDef     string          `yaml:"neurodata_type_def,omitempty"`
	TypeInc     string          `yaml:"neurodata_type_inc,omitempty"`
	Name        string          `yaml:"name,omitempty"`
	DefaultName string          `yaml:"default_name,omitempty"`
	Doc         string          `yaml:"doc"`
	Quantity    Quantity        `yaml:"quantity,omitempty"`
	Attributes  []AttributeSpec `yaml:"attributes,omitempty"`
	Datasets    []DatasetSpec   `yaml:"datasets,omitempty"`
	Groups      []GroupSpec     `yaml:"groups,omitempty"`
	Links       []LinkSpec      `yaml:"links,omitempty"`
}

// DatasetSpec declares a dataset slot.
type DatasetSpec struct {
	Name       string          `yaml:"name"`
	Dtype      string          `yaml:"dtype"`
	Dims       any             `yaml:"dims,omitempty"`
	Shape      any             `yaml:"shape,omitempty"`
	Doc        string          `yaml:"doc"`
	Quantity   Quantity        `yaml:"quantity,omitempty"`
	Attributes []AttributeSpec `yaml:"attributes,omitempty"`
}

// AttributeSpec declares an attribute.
type AttributeSpec struct {
	Name         string `yaml:"name"`
	Dtype        string `yaml:"dtype"`
	Doc          string `yaml:"doc"`
	Required     *bool  `yaml:"required,omitempty"`
	DefaultValue any    `yaml:"default_value,omitempty"`
}

// IsRequired defaults to true when unset.
func (a AttributeSpec) IsRequired() bool {
	return a.Required == nil || *a.Required
}

// LinkSpec declares a link slot.
type LinkSpec struct {
	Name       string   `yaml:"name,omitempty"`
	TargetType string   `yaml:"target_type"`
	Doc        string   `yaml:"doc"`
	Quantity   Quantity `yaml:"quantity,omitempty"`
}

// Quantity is '?', '*', '+' or a fixed count. The zero value means exactly one.
type Quantity string

// UnmarshalYAML accepts both symbols and integers.
func (q *Quantity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("quantity must be a scalar, got %v", n.Tag)
	}
	*q = Quantity(n.Value)
	return nil
}

// Required reports whether at least one instance must exist.
func (q Quantity) Required() bool {
	switch q {
	case "?", "*", "zero_or_one", "zero_or_many":
		return false
	}
	return true
}

// Many reports whether more than one instance may exist.
func (q Quantity) Many() bool {
	return q == "*" || q == "+" || q == "zero_or_many" || q == "one_or_many"
}

// Spec is the loaded namespace plus its type definitions.
type Spec struct {
	Namespace Namespace
	types     map[string]*GroupSpec
	order     []string
}

// Types returns type names in declaration order.
func (s *Spec) Types() []string {
	return append([]string(nil), s.order...)
}

// Type returns the definition of typ.
func (s *Spec) Type(typ string) (*GroupSpec, bool) {
	g, ok := s.types[typ]
	return g, ok
}

var (
	loadOnce sync.Once
	loaded   *Spec
	loadErr  error
)

// Load parses the embedded files. The result is shared and must not be
// modified.
func Load() (*Spec, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse()
	})
	return loaded, loadErr
}

// Raw returns the bytes of an embedded spec file.
func Raw(name string) ([]byte, error) {
	return specFS.ReadFile(name)
}

func parse() (*Spec, error) {
	nsBytes, err := specFS.ReadFile(NamespaceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace: %w", err)
	}
	var doc NamespaceDoc
	if err := yaml.Unmarshal(nsBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse namespace: %w", err)
	}
	if len(doc.Namespaces) != 1 {
		return nil, fmt.Errorf("expected one namespace, found %d", len(doc.Namespaces))
	}

	extBytes, err := specFS.ReadFile(ExtensionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions: %w", err)
	}
	var ext Extensions
	if err := yaml.Unmarshal(extBytes, &ext); err != nil {
		return nil, fmt.Errorf("failed to parse extensions: %w", err)
	}

	s := &Spec{Namespace: doc.Namespaces[0], types: map[string]*GroupSpec{}}
	for i := range ext.Groups {
		g := &ext.Groups[i]
		if g.TypeDef == "" {
			return nil, fmt.Errorf("top-level group %d has no neurodata_type_def", i)
		}
		if _, dup := s.types[g.TypeDef]; dup {
			return nil, fmt.Errorf("type %s defined twice", g.TypeDef)
		}
		s.types[g.TypeDef] = g
		s.order = append(s.order, g.TypeDef)
	}
	return s, nil
}
