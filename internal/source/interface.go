// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"

	"github.com/mia-platform/odp/internal/table"
)

const (
	// MetadataTable is the auxiliary table used to resolve location keys.
	MetadataTable = "metadata"
	// CountryCodesTable is the auxiliary table mapping country codes between ISO formats.
	CountryCodesTable = "country_codes"
)

// Columns a handler can emit instead of a resolved key; the pipeline uses them to find
// the matching row of the metadata table.
const (
	ColumnKey            = "key"
	ColumnDate           = "date"
	ColumnCountryCode    = "country_code"
	ColumnCountryName    = "country_name"
	ColumnSubregion1Code = "subregion1_code"
	ColumnSubregion1Name = "subregion1_name"
	ColumnSubregion2Code = "subregion2_code"
	ColumnSubregion2Name = "subregion2_name"
	ColumnLocalityCode   = "locality_code"
	ColumnLocalityName   = "locality_name"
	ColumnMatchString    = "match_string"
)

// KeySeparator joins the region codes that make up a location key, as in "US_CA".
const KeySeparator = "_"

// MatchColumns lists the location columns compared against the metadata table, from the
// broadest to the most specific.
var MatchColumns = []string{
	ColumnCountryCode,
	ColumnCountryName,
	ColumnSubregion1Code,
	ColumnSubregion1Name,
	ColumnSubregion2Code,
	ColumnSubregion2Name,
	ColumnLocalityCode,
	ColumnLocalityName,
}

// ParseInput carries everything a handler needs to produce its table.
type ParseInput struct {
	// Sources are the local paths of the fetched resources, in the order of the fetch list.
	Sources []string
	// Auxiliary holds the auxiliary tables declared by the configuration, by name.
	Auxiliary map[string]*table.Table
	// Options is the free form parse mapping of the source entry.
	Options Options
}

// DataSource turns the fetched resources of one configuration entry into a table.
// Rows either carry a key column or the location columns listed in MatchColumns.
type DataSource interface {
	Parse(ctx context.Context, input ParseInput) (*table.Table, error)
}

// DataSourceFunc adapts a plain function to the DataSource interface.
type DataSourceFunc func(ctx context.Context, input ParseInput) (*table.Table, error)

// Parse calls f.
func (f DataSourceFunc) Parse(ctx context.Context, input ParseInput) (*table.Table, error) {
	return f(ctx, input)
}
