// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mobility

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

// GoogleMobilityName is the configuration name of the Google handler.
const GoogleMobilityName = "pipelines.mobility.google_mobility.GoogleMobilityDataSource"

const (
	googleLoggerName = "odp:source:google_mobility"

	percentChangeSuffix = "_percent_change_from_baseline"
	mobilityPrefix      = "mobility_"

	googleCountryCode = "country_region_code"
	googleSubregion1  = "sub_region_1"
	googleSubregion2  = "sub_region_2"
	googleMetroArea   = "metro_area"
	googleISOCode     = "iso_3166_2_code"
	googleFIPSCode    = "census_fips_code"
	googleDate        = "date"

	fipsCountry = "US"
)

// GoogleMetrics are the place categories of the Google report, in report order.
var GoogleMetrics = []string{
	"retail_and_recreation",
	"grocery_and_pharmacy",
	"parks",
	"transit_stations",
	"workplaces",
	"residential",
}

// GoogleDataSource parses the Google Community Mobility Report global CSV.
type GoogleDataSource struct{}

// Parse reads the report and emits one row per region and date. Country rows are keyed
// by their ISO code, ISO 3166-2 rows by the code with "-" replaced by "_", US counties
// are left for matching on their FIPS code and the remaining rows on their names.
// Metro areas are dropped.
func (GoogleDataSource) Parse(ctx context.Context, input source.ParseInput) (*table.Table, error) {
	log := logger.Named(ctx, googleLoggerName)

	lowMemory, err := input.Options.Bool("low_memory", true)
	if err != nil {
		return nil, err
	}
	if len(input.Sources) == 0 {
		return nil, ErrMissingInput
	}

	log.Debug("parsing google mobility report", "path", input.Sources[0], "lowMemory", lowMemory)
	raw, err := table.ReadCSVFile(input.Sources[0], table.CSVOptions{})
	if err != nil {
		return nil, err
	}

	for _, column := range []string{googleCountryCode, googleSubregion1, googleSubregion2, googleDate} {
		if !raw.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	renames := make(map[string]string, len(GoogleMetrics))
	for _, column := range raw.Columns {
		if metric, ok := strings.CutSuffix(column, percentChangeSuffix); ok {
			renames[column] = mobilityPrefix + metric
		}
	}
	raw.Rename(renames)

	metricColumns := make([]string, 0, len(renames))
	for _, column := range raw.Columns {
		if strings.HasPrefix(column, mobilityPrefix) {
			metricColumns = append(metricColumns, column)
		}
	}

	columns := []string{
		source.ColumnDate,
		source.ColumnKey,
		source.ColumnCountryCode,
		source.ColumnSubregion1Code,
		source.ColumnSubregion1Name,
		source.ColumnSubregion2Code,
		source.ColumnSubregion2Name,
	}
	metricOffset := len(columns)
	columns = append(columns, metricColumns...)
	result := table.New(columns...)

	var (
		countryIdx = raw.Index(googleCountryCode)
		sub1Idx    = raw.Index(googleSubregion1)
		sub2Idx    = raw.Index(googleSubregion2)
		metroIdx   = raw.Index(googleMetroArea)
		isoIdx     = raw.Index(googleISOCode)
		fipsIdx    = raw.Index(googleFIPSCode)
		dateIdx    = raw.Index(googleDate)
	)

	metricIdx := make([]int, 0, len(metricColumns))
	for _, column := range metricColumns {
		metricIdx = append(metricIdx, raw.Index(column))
	}

	dropped := 0
	for i, row := range raw.Rows {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if cell(row, metroIdx) != nil {
			dropped++
			continue
		}

		values := make([]any, len(columns))
		values[0] = row[dateIdx]
		for j, idx := range metricIdx {
			values[metricOffset+j] = row[idx]
		}

		countryCode := row[countryIdx]
		subregion1, subregion2 := row[sub1Idx], row[sub2Idx]
		iso, fips := cell(row, isoIdx), cell(row, fipsIdx)
		switch {
		case countryCode == nil:
			dropped++
			continue
		case subregion1 == nil && subregion2 == nil:
			values[1] = countryCode
		case iso != nil:
			values[1] = strings.ReplaceAll(iso.(string), "-", source.KeySeparator)
		case fips != nil:
			code, ok := normalizeFIPS(fips.(string))
			if !ok {
				dropped++
				continue
			}
			values[2] = fipsCountry
			values[3], values[4] = "", ""
			values[5], values[6] = code, ""
		default:
			values[2] = countryCode
			values[3], values[4] = "", subregion1
			if subregion2 != nil {
				values[5], values[6] = "", subregion2
			}
		}

		result.Rows = append(result.Rows, values)
	}

	log.Debug("google mobility report parsed", "rows", result.Len(), "dropped", dropped)
	return result, nil
}

// normalizeFIPS returns the five digit county code for values such as "6037" or "6037.0".
func normalizeFIPS(value string) (string, bool) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed <= 0 {
		return "", false
	}
	return fmt.Sprintf("%05d", int64(parsed)), true
}

func cell(row []any, idx int) any {
	if idx < 0 {
		return nil
	}
	return row[idx]
}
