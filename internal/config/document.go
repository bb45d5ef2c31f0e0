// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	commentMarker = "#"
	commentPrefix = commentMarker + " "
)

var (
	// ErrEntryNotFound reports an enable or disable request for an entry missing from the document.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrUnsupportedLayout reports sections written in flow style, which cannot be toggled line by line.
	ErrUnsupportedLayout = errors.New("unsupported document layout")
)

// Document is a line oriented view of a configuration file. Commenting out a schema
// field or a source entry is the way these files disable things, so Document exposes
// the disabled entries and toggles them without touching any other line.
type Document struct {
	lines           []string
	trailingNewline bool
}

// DisabledSource is a commented-out source entry.
type DisabledSource struct {
	Source SourceSpec
	// Line is the 1-based line of the entry first line in the document.
	Line int

	start, end int
}

// LoadDocument reads the configuration file at path as an editable Document.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	document, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return document, nil
}

// ParseDocument builds a Document from data, which must hold a valid configuration.
func ParseDocument(data []byte) (*Document, error) {
	text := string(data)
	document := &Document{
		trailingNewline: strings.HasSuffix(text, "\n"),
	}
	document.lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	if _, err := document.Config(); err != nil {
		return nil, err
	}
	return document, nil
}

// Bytes returns the current document content.
func (d *Document) Bytes() []byte {
	text := strings.Join(d.lines, "\n")
	if d.trailingNewline {
		text += "\n"
	}
	return []byte(text)
}

// Config parses the enabled part of the document.
func (d *Document) Config() (*Config, error) {
	return Parse(d.Bytes())
}

// WriteFile stores the document at path, keeping the file permissions when it already exists.
func (d *Document) WriteFile(path string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	return os.WriteFile(path, d.Bytes(), mode)
}

// DisabledSchemaFields returns the commented-out fields of the schema section in document order.
func (d *Document) DisabledSchemaFields() []SchemaField {
	start, end, ok := d.section(SchemaKey)
	if !ok {
		return nil
	}

	fields := make([]SchemaField, 0)
	for i := start + 1; i < end; i++ {
		if !isComment(d.lines[i]) {
			continue
		}
		if field, ok := parseSchemaLine(uncomment(d.lines[i])); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// DisabledSources returns the commented-out entries of the sources section in document order.
func (d *Document) DisabledSources() []DisabledSource {
	start, end, ok := d.section(SourcesKey)
	if !ok {
		return nil
	}

	entries := make([]DisabledSource, 0)
	for i := start + 1; i < end; {
		if !isComment(d.lines[i]) {
			i++
			continue
		}

		j := i
		for j < end && isComment(d.lines[j]) {
			j++
		}

		entries = append(entries, d.parseDisabledGroup(i, j)...)
		i = j
	}

	return entries
}

// EnableSource uncomments every disabled entry of the source handler name.
// Enabling an already enabled source is a no-op.
func (d *Document) EnableSource(name string) error {
	entries := slices.DeleteFunc(d.DisabledSources(), func(entry DisabledSource) bool {
		return entry.Source.Name != name
	})

	if len(entries) == 0 {
		if d.isSourceEnabled(name) {
			return nil
		}
		return fmt.Errorf("%w: source %q", ErrEntryNotFound, name)
	}

	return d.edit(func() {
		for _, entry := range entries {
			for i := entry.start; i < entry.end; i++ {
				d.lines[i] = uncomment(d.lines[i])
			}
		}
	})
}

// DisableSource comments out every enabled entry of the source handler name.
// Disabling a source that is only present as a comment is a no-op.
func (d *Document) DisableSource(name string) error {
	sequence, err := d.sectionNode(SourcesKey)
	if err != nil {
		return err
	}

	_, sectionEnd, _ := d.section(SourcesKey)

	type lineRange struct{ start, end int }
	ranges := make([]lineRange, 0)
	if sequence != nil {
		for idx, item := range sequence.Content {
			if sourceName(item) != name {
				continue
			}

			start := item.Line - 1
			end := sectionEnd
			if idx+1 < len(sequence.Content) {
				end = sequence.Content[idx+1].Line - 1
			}

			column := indentOf(d.lines[start])
			for end > start+1 && (isBlank(d.lines[end-1]) || (isComment(d.lines[end-1]) && commentColumn(d.lines[end-1]) <= column)) {
				end--
			}
			ranges = append(ranges, lineRange{start: start, end: end})
		}
	}

	if len(ranges) == 0 {
		for _, entry := range d.DisabledSources() {
			if entry.Source.Name == name {
				return nil
			}
		}
		return fmt.Errorf("%w: source %q", ErrEntryNotFound, name)
	}

	return d.edit(func() {
		for _, r := range ranges {
			column := indentOf(d.lines[r.start])
			for i := r.start; i < r.end; i++ {
				d.lines[i] = commentAt(d.lines[i], column)
			}
		}
	})
}

// EnableSchemaField uncomments the disabled schema field name.
// Enabling a field that is already enabled is a no-op.
func (d *Document) EnableSchemaField(name string) error {
	start, end, ok := d.section(SchemaKey)
	if !ok {
		return fmt.Errorf("%w: schema field %q", ErrEntryNotFound, name)
	}

	for i := start + 1; i < end; i++ {
		if !isComment(d.lines[i]) {
			continue
		}

		field, ok := parseSchemaLine(uncomment(d.lines[i]))
		if !ok || field.Name != name {
			continue
		}

		return d.edit(func() {
			d.lines[i] = uncomment(d.lines[i])
		})
	}

	if config, err := d.Config(); err == nil && config.HasField(name) {
		return nil
	}
	return fmt.Errorf("%w: schema field %q", ErrEntryNotFound, name)
}

// DisableSchemaField comments out the enabled schema field name.
// Disabling a field that is only present as a comment is a no-op.
func (d *Document) DisableSchemaField(name string) error {
	mapping, err := d.sectionNode(SchemaKey)
	if err != nil {
		return err
	}

	if mapping != nil {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			key := mapping.Content[i]
			if key.Value != name {
				continue
			}

			line := key.Line - 1
			return d.edit(func() {
				d.lines[line] = commentAt(d.lines[line], indentOf(d.lines[line]))
			})
		}
	}

	for _, field := range d.DisabledSchemaFields() {
		if field.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: schema field %q", ErrEntryNotFound, name)
}

// edit applies change and rolls it back when the resulting document is not a valid configuration.
func (d *Document) edit(change func()) error {
	backup := slices.Clone(d.lines)
	change()

	if _, err := d.Config(); err != nil {
		d.lines = backup
		return err
	}
	return nil
}

func (d *Document) isSourceEnabled(name string) bool {
	config, err := d.Config()
	if err != nil {
		return false
	}
	return slices.Contains(config.SourceNames(), name)
}

// section returns the line range of a top level key; start is the index of the key
// line and end is exclusive.
func (d *Document) section(key string) (int, int, bool) {
	start := -1
	for i, line := range d.lines {
		if start < 0 {
			if isTopLevelKey(line, key) {
				start = i
			}
			continue
		}

		if isTopLevel(line) {
			return start, i, true
		}
	}

	if start < 0 {
		return 0, 0, false
	}
	return start, len(d.lines), true
}

// sectionNode returns the value node of a top level key, nil when the key is absent or empty.
func (d *Document) sectionNode(key string) (*yaml.Node, error) {
	root := new(yaml.Node)
	if err := yaml.Unmarshal(d.Bytes(), root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsing, err)
	}

	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}

	document := root.Content[0]
	for i := 0; i+1 < len(document.Content); i += 2 {
		if document.Content[i].Value != key {
			continue
		}

		value := document.Content[i+1]
		switch {
		case value.Kind == yaml.ScalarNode:
			return nil, nil
		case value.Style&yaml.FlowStyle != 0:
			return nil, fmt.Errorf("%w: %s is written in flow style", ErrUnsupportedLayout, key)
		}
		return value, nil
	}

	return nil, nil
}

// parseDisabledGroup extracts source entries from the consecutive comment lines [from, to).
func (d *Document) parseDisabledGroup(from, to int) []DisabledSource {
	uncommented := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		uncommented = append(uncommented, uncomment(d.lines[i]))
	}

	baseIndent := -1
	for _, line := range uncommented {
		if isSequenceItem(line) {
			baseIndent = indentOf(line)
			break
		}
	}
	if baseIndent < 0 {
		return nil
	}

	entries := make([]DisabledSource, 0)
	for k := 0; k < len(uncommented); k++ {
		line := uncommented[k]
		if !isSequenceItem(line) || indentOf(line) != baseIndent {
			continue
		}

		end := k + 1
		for end < len(uncommented) && (isBlank(uncommented[end]) || indentOf(uncommented[end]) > baseIndent) {
			end++
		}

		body := make([]string, 0, end-k)
		for _, bodyLine := range uncommented[k:end] {
			if len(bodyLine) >= baseIndent {
				bodyLine = bodyLine[baseIndent:]
			}
			body = append(body, bodyLine)
		}

		var specs []SourceSpec
		if err := yaml.Unmarshal([]byte(strings.Join(body, "\n")), &specs); err == nil && len(specs) == 1 && specs[0].Name != "" {
			entries = append(entries, DisabledSource{
				Source: specs[0],
				Line:   from + k + 1,
				start:  from + k,
				end:    from + end,
			})
		}

		k = end - 1
	}

	return entries
}

// parseSchemaLine interprets text as a single "name: type" schema declaration.
func parseSchemaLine(text string) (SchemaField, bool) {
	node := new(yaml.Node)
	if err := yaml.Unmarshal([]byte(strings.TrimSpace(text)), node); err != nil {
		return SchemaField{}, false
	}

	if len(node.Content) != 1 {
		return SchemaField{}, false
	}

	mapping := node.Content[0]
	if mapping.Kind != yaml.MappingNode || len(mapping.Content) != 2 {
		return SchemaField{}, false
	}

	key, value := mapping.Content[0], mapping.Content[1]
	if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
		return SchemaField{}, false
	}
	if _, ok := validTypes[value.Value]; !ok {
		return SchemaField{}, false
	}

	return SchemaField{Name: key.Value, Type: value.Value}, true
}

func sourceName(item *yaml.Node) string {
	if item.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(item.Content); i += 2 {
		if item.Content[i].Value == "name" {
			return item.Content[i+1].Value
		}
	}
	return ""
}

func isTopLevelKey(line, key string) bool {
	return strings.HasPrefix(line, key+":")
}

func isTopLevel(line string) bool {
	if isBlank(line) {
		return false
	}
	switch line[0] {
	case ' ', '\t', '#':
		return false
	}
	return true
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), commentMarker)
}

func isSequenceItem(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "-" || strings.HasPrefix(trimmed, "- ")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func commentColumn(line string) int {
	return strings.Index(line, commentMarker)
}

// uncomment removes the first comment marker of line and the single space following it.
func uncomment(line string) string {
	index := strings.Index(line, commentMarker)
	if index < 0 {
		return line
	}
	return line[:index] + strings.TrimPrefix(line[index+1:], " ")
}

// commentAt inserts a comment marker at column; blank lines are left untouched.
func commentAt(line string, column int) string {
	if isBlank(line) {
		return line
	}
	if column > len(line) {
		column = len(line)
	}
	return line[:column] + commentPrefix + line[column:]
}
