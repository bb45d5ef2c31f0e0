// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mobility

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

// AppleMobilityName is the configuration name of the Apple handler.
const AppleMobilityName = "pipelines.mobility.apple_mobility.AppleMobilityDataSource"

const (
	appleLoggerName = "odp:source:apple_mobility"

	appleGeoType        = "geo_type"
	appleRegion         = "region"
	appleTransportation = "transportation_type"
	appleSubregion      = "sub-region"
	appleCountry        = "country"

	geoTypeCountry   = "country/region"
	geoTypeSubregion = "sub-region"

	appleBaseline = 100
	dateLayout    = time.DateOnly
)

// appleTransportColumns maps the transportation types to output columns.
var appleTransportColumns = map[string]string{
	"driving": "mobility_driving",
	"transit": "mobility_transit",
	"walking": "mobility_walking",
}

// AppleDataSource parses the Apple mobility trends CSV, which has one column per day.
type AppleDataSource struct{}

type appleRegionKey struct {
	geoType, region, subregion, country string
}

// Parse pivots the daily columns into rows and reports each value as the percent change
// from the baseline of 100. Only country and sub-region rows are kept; cities are dropped.
func (AppleDataSource) Parse(ctx context.Context, input source.ParseInput) (*table.Table, error) {
	log := logger.Named(ctx, appleLoggerName)

	if len(input.Sources) == 0 {
		return nil, ErrMissingInput
	}

	raw, err := table.ReadCSVFile(input.Sources[0], table.CSVOptions{})
	if err != nil {
		return nil, err
	}

	for _, column := range []string{appleGeoType, appleRegion, appleTransportation} {
		if !raw.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	dateColumns := make([]int, 0, len(raw.Columns))
	for idx, column := range raw.Columns {
		if _, err := time.Parse(dateLayout, column); err == nil {
			dateColumns = append(dateColumns, idx)
		}
	}

	countryCodes := countryCodeIndex(input.Auxiliary[source.CountryCodesTable])

	var (
		geoTypeIdx   = raw.Index(appleGeoType)
		regionIdx    = raw.Index(appleRegion)
		transportIdx = raw.Index(appleTransportation)
		subregionIdx = raw.Index(appleSubregion)
		countryIdx   = raw.Index(appleCountry)
	)

	order := make([]appleRegionKey, 0)
	values := make(map[appleRegionKey]map[string]map[string]any)
	for i, row := range raw.Rows {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		geoType, _ := row[geoTypeIdx].(string)
		if geoType != geoTypeCountry && geoType != geoTypeSubregion {
			continue
		}

		transport, _ := row[transportIdx].(string)
		column, ok := appleTransportColumns[transport]
		if !ok {
			continue
		}

		region, _ := row[regionIdx].(string)
		subregion, _ := cell(row, subregionIdx).(string)
		country, _ := cell(row, countryIdx).(string)
		key := appleRegionKey{geoType: geoType, region: region, subregion: subregion, country: country}
		byDate, seen := values[key]
		if !seen {
			byDate = make(map[string]map[string]any)
			values[key] = byDate
			order = append(order, key)
		}

		for _, idx := range dateColumns {
			value, err := percentChange(row[idx])
			if err != nil {
				return nil, fmt.Errorf("%s %s %s: %w", region, transport, raw.Columns[idx], err)
			}
			if value == nil {
				continue
			}

			date := raw.Columns[idx]
			if byDate[date] == nil {
				byDate[date] = make(map[string]any, len(appleTransportColumns))
			}
			byDate[date][column] = value
		}
	}

	result := table.New(
		source.ColumnDate,
		source.ColumnCountryCode,
		source.ColumnCountryName,
		source.ColumnSubregion1Code,
		source.ColumnSubregion1Name,
		source.ColumnSubregion2Code,
		"mobility_driving",
		"mobility_transit",
		"mobility_walking",
	)

	for _, key := range order {
		countryName := key.region
		var subregion1Code, subregion1Name any
		if key.geoType == geoTypeSubregion {
			countryName = key.country
			subregion1Code, subregion1Name = "", key.region
		}

		var countryCode any = ""
		if code, ok := countryCodes[source.NormalizeMatch(countryName)]; ok {
			countryCode = code
			countryName = ""
		}

		for _, idx := range dateColumns {
			date := raw.Columns[idx]
			metrics, ok := values[key][date]
			if !ok {
				continue
			}

			result.Append(
				date,
				countryCode,
				countryName,
				subregion1Code,
				subregion1Name,
				nil,
				metrics["mobility_driving"],
				metrics["mobility_transit"],
				metrics["mobility_walking"],
			)
		}
	}

	log.Debug("apple mobility trends parsed", "regions", len(order), "rows", result.Len())
	return result, nil
}

func percentChange(value any) (any, error) {
	text, ok := value.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, err
	}
	return int64(math.Round(parsed - appleBaseline)), nil
}

// countryCodeIndex maps normalized country names to their code using the country_codes
// auxiliary table; a nil table yields an empty index.
func countryCodeIndex(codes *table.Table) map[string]string {
	index := make(map[string]string)
	if codes == nil {
		return index
	}

	for i := range codes.Rows {
		code, _ := codes.Value(i, source.ColumnKey).(string)
		name, _ := codes.Value(i, source.ColumnCountryName).(string)
		if code != "" && name != "" {
			index[source.NormalizeMatch(name)] = code
		}
	}
	return index
}
