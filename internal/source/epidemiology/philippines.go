// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package epidemiology

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

// PhilippinesName is the configuration name of the Philippines Department of Health handler.
const PhilippinesName = "pipelines.epidemiology.ph_authority.PhilippinesDataSource"

const (
	loggerName = "odp:source:ph_authority"

	phCountryCode       = "PH"
	phRepatriate        = "Repatriate"
	phRegionSeparator   = ": "
	phPrognosisRecovery = "recovered"
	phPrognosisDeath    = "died"
	phAdmitted          = "yes"

	ageBandWidth = 10
	ageBandLast  = 90

	NewConfirmed    = "new_confirmed"
	NewDeceased     = "new_deceased"
	NewRecovered    = "new_recovered"
	NewHospitalized = "new_hospitalized"
)

var (
	// ErrMissingInput reports a handler invoked without fetched resources.
	ErrMissingInput = errors.New("no fetched resource to parse")
	// ErrMissingColumn reports an upstream file lacking a required column.
	ErrMissingColumn = errors.New("missing required column")

	// phColumns maps the snake cased case line headers to the fields used while counting.
	phColumns = map[string]string{
		"prov_res":      "province",
		"region_res":    "region",
		"date_died":     "date_deceased",
		"date_specimen": "date_confirmed",
		"date_recover":  "date_recovered",
		"date_rep_conf": "date_estimate",
		"admitted":      "hospitalized",
		"removal_type":  "prognosis",
		"age":           "age",
		"sex":           "sex",
	}

	// phMetrics lists the output counters in column order.
	phMetrics = []string{NewConfirmed, NewDeceased, NewRecovered, NewHospitalized}

	phSexes = []string{"male", "female"}

	// phStrata lists the suffixes of the stratified counters: sexes first, then age bands.
	phStrata = func() []string {
		strata := slices.Clone(phSexes)
		for lower := 0; lower <= ageBandLast; lower += ageBandWidth {
			strata = append(strata, "age_"+ageBandLabel(lower))
		}
		return strata
	}()

	dateLayouts = []string{time.DateOnly, time.DateTime, "01/02/2006", "1/2/2006", "2006/01/02"}
)

// PhilippinesDataSource turns the case line records of the Philippines Department of
// Health into daily counts for regions and provinces.
type PhilippinesDataSource struct{}

type caseGroup struct {
	date     string
	province string
	region   string
	age      string
	sex      string
}

type matchGroup struct {
	date  string
	match string
}

// Parse counts the cases confirmed, deceased, recovered and hospitalized each day.
// Missing recovery and death dates are estimated with the report date when the removal
// type says so, and hospitalization is dated as the confirmation when the case was
// admitted. Regions are emitted as subregion1 matches and provinces as subregion2 ones.
// Next to every counter the output carries its split by sex and by ten year age band,
// for example new_confirmed_female and new_confirmed_age_30_39.
func (PhilippinesDataSource) Parse(ctx context.Context, input source.ParseInput) (*table.Table, error) {
	log := logger.Named(ctx, loggerName)

	if len(input.Sources) == 0 {
		return nil, ErrMissingInput
	}

	cases, err := table.ReadCSVFile(input.Sources[0], table.CSVOptions{SnakeCase: true})
	if err != nil {
		return nil, err
	}
	cases.Rename(phColumns)

	for _, column := range []string{"province", "region", "date_confirmed"} {
		if !cases.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	counts := make(map[caseGroup]map[string]int64)
	increment := func(date time.Time, ok bool, group caseGroup, metric string) {
		if !ok {
			return
		}
		group.date = date.Format(time.DateOnly)
		if counts[group] == nil {
			counts[group] = make(map[string]int64, len(phMetrics))
		}
		counts[group][metric]++
	}

	for i := range cases.Rows {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		record := cases.Record(i)
		group := caseGroup{
			province: text(record["province"]),
			region:   text(record["region"]),
			age:      ageBand(record["age"]),
			sex:      sexName(record["sex"]),
		}
		prognosis := strings.ToLower(text(record["prognosis"]))

		confirmed, confirmedOK := parseDate(record["date_confirmed"])
		estimate, estimateOK := parseDate(record["date_estimate"])

		recovered, recoveredOK := parseDate(record["date_recovered"])
		if record["date_recovered"] == nil && prognosis == phPrognosisRecovery {
			recovered, recoveredOK = estimate, estimateOK
		}

		deceased, deceasedOK := parseDate(record["date_deceased"])
		if record["date_deceased"] == nil && prognosis == phPrognosisDeath {
			deceased, deceasedOK = estimate, estimateOK
		}

		increment(confirmed, confirmedOK, group, NewConfirmed)
		increment(recovered, recoveredOK, group, NewRecovered)
		increment(deceased, deceasedOK, group, NewDeceased)
		if strings.EqualFold(text(record["hospitalized"]), phAdmitted) {
			increment(confirmed, confirmedOK, group, NewHospitalized)
		}
	}

	regions := make(map[matchGroup]map[string]int64)
	provinces := make(map[matchGroup]map[string]int64)
	for group, metrics := range counts {
		stratified := stratify(group, metrics)
		addCounts(regions, matchGroup{date: group.date, match: regionName(group.region)}, stratified)
		addCounts(provinces, matchGroup{date: group.date, match: group.province}, stratified)
	}

	result := table.New(outputColumns()...)
	appendGroups(result, regions, nil)
	appendGroups(result, provinces, "")

	log.Debug("philippines case line parsed", "cases", cases.Len(), "rows", result.Len())
	return result, nil
}

// stratify copies the counters of a case group under their sex and age band columns.
func stratify(group caseGroup, metrics map[string]int64) map[string]int64 {
	stratified := make(map[string]int64, len(metrics)*3)
	for metric, count := range metrics {
		stratified[metric] += count
		if group.sex != "" {
			stratified[metric+"_"+group.sex] += count
		}
		if group.age != "" {
			stratified[metric+"_age_"+group.age] += count
		}
	}
	return stratified
}

func outputColumns() []string {
	columns := []string{source.ColumnDate, source.ColumnCountryCode, source.ColumnSubregion2Code, source.ColumnMatchString}
	columns = append(columns, phMetrics...)
	for _, metric := range phMetrics {
		for _, stratum := range phStrata {
			columns = append(columns, metric+"_"+stratum)
		}
	}
	return columns
}

func addCounts(target map[matchGroup]map[string]int64, group matchGroup, metrics map[string]int64) {
	if group.match == "" || group.match == phRepatriate {
		return
	}

	if target[group] == nil {
		target[group] = make(map[string]int64, len(phMetrics))
	}
	for metric, count := range metrics {
		target[group][metric] += count
	}
}

// appendGroups writes the groups sorted by match string and date; subregion2 is nil for
// rows that must match a region and empty for rows that may match any level below it.
func appendGroups(result *table.Table, groups map[matchGroup]map[string]int64, subregion2 any) {
	counters := result.Columns[4:]
	keys := make([]matchGroup, 0, len(groups))
	for group := range groups {
		keys = append(keys, group)
	}
	slices.SortFunc(keys, func(a, b matchGroup) int {
		return cmp.Or(cmp.Compare(a.match, b.match), cmp.Compare(a.date, b.date))
	})

	for _, group := range keys {
		values := []any{group.date, phCountryCode, subregion2, group.match}
		for _, counter := range counters {
			values = append(values, groups[group][counter])
		}
		result.Append(values...)
	}
}

// ageBand returns the ten year band of an age, such as "30_39", with every age from 90
// in "90_plus". Missing, negative and non numeric ages have no band.
func ageBand(value any) string {
	age, err := strconv.ParseFloat(strings.TrimSpace(text(value)), 64)
	if err != nil || math.IsNaN(age) || math.IsInf(age, 0) || age < 0 {
		return ""
	}
	lower := min(int(age)/ageBandWidth*ageBandWidth, ageBandLast)
	return ageBandLabel(lower)
}

func ageBandLabel(lower int) string {
	if lower >= ageBandLast {
		return strconv.Itoa(lower) + "_plus"
	}
	return fmt.Sprintf("%d_%d", lower, lower+ageBandWidth-1)
}

// sexName lowercases the sex of a case; values other than male and female are unknown.
func sexName(value any) string {
	sex := strings.ToLower(strings.TrimSpace(text(value)))
	if slices.Contains(phSexes, sex) {
		return sex
	}
	return ""
}

// regionName keeps the last segment of names such as "Region VII: Central Visayas".
func regionName(region string) string {
	segments := strings.Split(region, phRegionSeparator)
	return strings.TrimSpace(segments[len(segments)-1])
}

func parseDate(value any) (time.Time, bool) {
	raw := strings.TrimSpace(text(value))
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func text(value any) string {
	if value == nil {
		return ""
	}
	return table.FormatValue(value)
}
