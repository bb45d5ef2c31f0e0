// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mia-platform/odp/internal/config"
)

const (
	statusEnabled  = "enabled"
	statusDisabled = "disabled"
)

// sourcesOptions lists the enabled and disabled entries of a configuration.
type sourcesOptions struct {
	path   string
	stdout io.Writer
}

func (o *sourcesOptions) execute() error {
	document, err := config.LoadDocument(o.path)
	if err != nil {
		return err
	}
	cfg, err := document.Config()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(o.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSTATUS\tDETAIL")
	for _, field := range cfg.Schema {
		fmt.Fprintf(w, "field\t%s\t%s\t%s\n", field.Name, statusEnabled, field.Type)
	}
	for _, field := range document.DisabledSchemaFields() {
		fmt.Fprintf(w, "field\t%s\t%s\t%s\n", field.Name, statusDisabled, field.Type)
	}
	for _, source := range cfg.Sources {
		fmt.Fprintf(w, "source\t%s\t%s\t%s\n", source.Name, statusEnabled, fetchURLs(source))
	}
	for _, disabled := range document.DisabledSources() {
		fmt.Fprintf(w, "source\t%s\t%s\t%s\n", disabled.Source.Name, statusDisabled, fetchURLs(disabled.Source))
	}
	return w.Flush()
}

func fetchURLs(source config.SourceSpec) string {
	urls := make([]string, 0, len(source.Fetch))
	for _, fetch := range source.Fetch {
		urls = append(urls, fetch.URL)
	}
	if len(urls) == 0 {
		return "-"
	}
	return strings.Join(urls, ",")
}

// editOptions enables or disables an entry in place.
type editOptions struct {
	path        string
	name        string
	enable      bool
	schemaField bool
	stdout      io.Writer
}

func (o *editOptions) execute() error {
	document, err := config.LoadDocument(o.path)
	if err != nil {
		return err
	}

	switch {
	case o.schemaField && o.enable:
		err = document.EnableSchemaField(o.name)
	case o.schemaField:
		err = document.DisableSchemaField(o.name)
	case o.enable:
		err = document.EnableSource(o.name)
	default:
		err = document.DisableSource(o.name)
	}
	if err != nil {
		return err
	}

	if err := document.WriteFile(o.path); err != nil {
		return err
	}

	kind, status := "source", statusDisabled
	if o.schemaField {
		kind = "schema field"
	}
	if o.enable {
		status = statusEnabled
	}
	fmt.Fprintf(o.stdout, "%s %s %s\n", kind, o.name, status)
	return nil
}
