// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

const encoderIndent = 2

// Encode serializes the configuration back to YAML. Comments are not part of
// the Config and are therefore not emitted; use Document to edit files in place.
func Encode(c *Config) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	schema := &yaml.Node{Kind: yaml.MappingNode}
	for _, field := range c.Schema {
		schema.Content = append(schema.Content, scalarNode(field.Name), scalarNode(field.Type))
	}
	root.Content = append(root.Content, scalarNode(SchemaKey), schema)

	if len(c.Auxiliary) > 0 {
		auxiliary := &yaml.Node{Kind: yaml.MappingNode}
		for _, ref := range c.Auxiliary {
			auxiliary.Content = append(auxiliary.Content, scalarNode(ref.Name), scalarNode(ref.Path))
		}
		root.Content = append(root.Content, scalarNode(AuxiliaryKey), auxiliary)
	}

	if len(c.Sources) > 0 {
		sources := new(yaml.Node)
		if err := sources.Encode(c.Sources); err != nil {
			return nil, err
		}
		root.Content = append(root.Content, scalarNode(SourcesKey), sources)
	}

	buffer := new(bytes.Buffer)
	encoder := yaml.NewEncoder(buffer)
	encoder.SetIndent(encoderIndent)
	if err := encoder.Encode(root); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
