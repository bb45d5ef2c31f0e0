// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// TypeString is the schema type token for text columns.
	TypeString = "str"
	// TypeInt is the schema type token for integer columns.
	TypeInt = "int"
	// TypeFloat is the schema type token for floating point columns.
	TypeFloat = "float"

	SchemaKey    = "schema"
	AuxiliaryKey = "auxiliary"
	SourcesKey   = "sources"

	skipKey = "skip"

	// DateColumn and KeyColumn are the columns used to index the pipeline output.
	DateColumn = "date"
	KeyColumn  = "key"
)

var (
	// ErrParsing reports failures that occur while decoding pipeline configuration files.
	ErrParsing = errors.New("error parsing")
	// ErrInvalidConfig reports a configuration that is well formed YAML but violates
	// one or more structural rules.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")

	validTypes = map[string]struct{}{
		TypeString: {},
		TypeInt:    {},
		TypeFloat:  {},
	}
)

// SchemaField is a single expected output column.
type SchemaField struct {
	Name string
	Type string
}

// AuxiliaryRef maps a logical name to a data file relative to the data directory.
type AuxiliaryRef struct {
	Name string
	Path string
}

// FetchSpec describes one resource retrieved by a source handler.
type FetchSpec struct {
	URL  string         `json:"url" yaml:"url"`
	Opts map[string]any `json:"opts,omitempty" yaml:"opts,omitempty"`
}

// TestDirectives holds the test harness settings of a source.
type TestDirectives struct {
	Skip bool `json:"skip" yaml:"skip"`
}

// UnmarshalYAML accepts only the skip key, and only with a boolean literal: quoted
// strings, null and YAML 1.1 words such as yes are rejected.
func (t *TestDirectives) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: test must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value != skipKey {
			return fmt.Errorf("line %d: field %s not found in test", key.Line, key.Value)
		}
		if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!bool" {
			return fmt.Errorf("line %d: test.skip must be a boolean, found %q", value.Line, value.Value)
		}
		if err := value.Decode(&t.Skip); err != nil {
			return err
		}
	}
	return nil
}

// SourceSpec names a registered handler and the inputs it receives.
type SourceSpec struct {
	Name  string          `json:"name" yaml:"name"`
	Fetch []FetchSpec     `json:"fetch,omitempty" yaml:"fetch,omitempty"`
	Parse map[string]any  `json:"parse,omitempty" yaml:"parse,omitempty"`
	Test  *TestDirectives `json:"test,omitempty" yaml:"test,omitempty"`
}

// SkipInTests reports whether the test harness must not execute the source.
func (s SourceSpec) SkipInTests() bool {
	return s.Test != nil && s.Test.Skip
}

// Config is the in-memory representation of a pipeline configuration file.
// It is read once and never mutated during a pipeline run.
type Config struct {
	Schema    []SchemaField
	Auxiliary []AuxiliaryRef
	Sources   []SourceSpec
}

// rawConfig mirrors the top-level document; mappings are kept as nodes to retain
// their document order.
type rawConfig struct {
	Schema    yaml.Node    `yaml:"schema"`
	Auxiliary yaml.Node    `yaml:"auxiliary"`
	Sources   []SourceSpec `yaml:"sources"`
}

// Load reads and validates the pipeline configuration stored at path.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}

	return config, nil
}

// Parse decodes and validates a pipeline configuration document.
func Parse(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	raw := new(rawConfig)
	if err := decoder.Decode(raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrParsing)
		}
		return nil, fmt.Errorf("%w: %w", ErrParsing, err)
	}

	schema, err := decodeSchema(&raw.Schema)
	if err != nil {
		return nil, err
	}

	auxiliary, err := decodeAuxiliary(&raw.Auxiliary)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Schema:    schema,
		Auxiliary: auxiliary,
		Sources:   raw.Sources,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// decodeSchema walks the schema mapping keeping the declaration order. Duplicated
// names are preserved so that Validate can report them.
func decodeSchema(node *yaml.Node) ([]SchemaField, error) {
	pairs, err := mappingPairs(SchemaKey, node)
	if err != nil {
		return nil, err
	}

	fields := make([]SchemaField, 0, len(pairs))
	for _, pair := range pairs {
		fields = append(fields, SchemaField{Name: pair[0], Type: pair[1]})
	}
	return fields, nil
}

func decodeAuxiliary(node *yaml.Node) ([]AuxiliaryRef, error) {
	pairs, err := mappingPairs(AuxiliaryKey, node)
	if err != nil {
		return nil, err
	}

	refs := make([]AuxiliaryRef, 0, len(pairs))
	for _, pair := range pairs {
		refs = append(refs, AuxiliaryRef{Name: pair[0], Path: pair[1]})
	}
	return refs, nil
}

// mappingPairs returns the scalar key/value pairs of a flat mapping node.
func mappingPairs(section string, node *yaml.Node) ([][2]string, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}

	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: %s must be a mapping", ErrParsing, node.Line, section)
	}

	pairs := make([][2]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: %s keys must be scalars", ErrParsing, key.Line, section)
		}
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: %s.%s must be a scalar", ErrParsing, value.Line, section, key.Value)
		}

		pairs = append(pairs, [2]string{key.Value, value.Value})
	}

	return pairs, nil
}

// Validate checks the document well-formedness rules and reports every violation found.
func (c *Config) Validate() error {
	errorsList := make([]error, 0)
	violation := func(format string, args ...any) {
		errorsList = append(errorsList, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if len(c.Schema) == 0 {
		violation("schema must declare at least one field")
	}

	seen := make(map[string]struct{}, len(c.Schema))
	for i, field := range c.Schema {
		if field.Name == "" {
			violation("schema field %d has an empty name", i)
			continue
		}
		if _, ok := seen[field.Name]; ok {
			violation("duplicate schema field '%s'", field.Name)
		}
		seen[field.Name] = struct{}{}

		if _, ok := validTypes[field.Type]; !ok {
			violation("unknown type '%s' for schema field '%s'", field.Type, field.Name)
		}
	}

	auxSeen := make(map[string]struct{}, len(c.Auxiliary))
	for _, ref := range c.Auxiliary {
		switch {
		case ref.Name == "":
			violation("auxiliary entry with an empty name")
		case ref.Path == "":
			violation("auxiliary '%s' has an empty path", ref.Name)
		}
		if _, ok := auxSeen[ref.Name]; ok && ref.Name != "" {
			violation("duplicate auxiliary '%s'", ref.Name)
		}
		auxSeen[ref.Name] = struct{}{}
	}

	for i, source := range c.Sources {
		if strings.TrimSpace(source.Name) == "" {
			violation("source %d has an empty name", i)
		}
		for j, fetch := range source.Fetch {
			if strings.TrimSpace(fetch.URL) == "" {
				violation("source %d fetch %d has an empty url", i, j)
			}
		}
	}

	if len(errorsList) > 0 {
		return errors.Join(errorsList...)
	}

	return nil
}

// HasField reports whether the schema declares a column with the given name.
func (c *Config) HasField(name string) bool {
	for _, field := range c.Schema {
		if field.Name == name {
			return true
		}
	}
	return false
}

// IndexColumns returns the columns that uniquely identify an output row.
func (c *Config) IndexColumns() []string {
	if c.HasField(DateColumn) {
		return []string{KeyColumn, DateColumn}
	}
	return []string{KeyColumn}
}

// SourceNames returns the handler names of the configured sources in document order.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for _, source := range c.Sources {
		names = append(names, source.Name)
	}
	return names
}
