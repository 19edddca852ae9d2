package dataset

import (
	"fmt"
	"sort"
	"time"
)

// ValidationSummary is the persisted validation_summary artifact. Field names
// are consumed by downstream reporting and must not change.
type ValidationSummary struct {
	DatasetID          string             `json:"dataset_id"`
	RowCount           int                `json:"row_count"`
	ColumnCount        int                `json:"column_count"`
	Errors             []string           `json:"errors"`
	Warnings           []string           `json:"warnings"`
	ColumnTypes        Classification     `json:"column_types"`
	Missingness        map[string]float64 `json:"missingness"`
	Grain              string             `json:"grain,omitempty"`
	TimeCoverageMonths float64            `json:"time_coverage_months,omitempty"`
	EntityCount        int                `json:"entity_count,omitempty"`
}

// IsValid reports whether validation found no errors.
func (v *ValidationSummary) IsValid() bool { return len(v.Errors) == 0 }

// DetectGrain infers the time grain from the median gap between consecutive
// distinct periods.
func DetectGrain(periods []time.Time) (string, error) {
	if len(periods) < 2 {
		return "", fmt.Errorf("need at least two periods to detect grain")
	}
	sorted := append([]time.Time(nil), periods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	deltas := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		days := sorted[i].Sub(sorted[i-1]).Hours() / 24
		if days > 0 {
			deltas = append(deltas, days)
		}
	}
	if len(deltas) == 0 {
		return "", fmt.Errorf("all periods are identical")
	}
	sort.Float64s(deltas)
	median := int(deltas[len(deltas)/2])

	switch {
	case median >= 6 && median <= 8:
		return "WEEK", nil
	case median >= 28 && median <= 31:
		return "MONTH", nil
	case median == 1:
		return "DAY", nil
	default:
		return fmt.Sprintf("CUSTOM_%dD", median), nil
	}
}

// Validate checks structure and quality of an uploaded panel and builds the
// validation summary. Errors make the dataset unusable for modeling; warnings
// are advisory.
func Validate(datasetID string, table *Table, targetCol string) *ValidationSummary {
	summary := &ValidationSummary{
		DatasetID:   datasetID,
		RowCount:    table.RowCount(),
		ColumnCount: len(table.Columns),
		Errors:      []string{},
		Warnings:    []string{},
		Missingness: map[string]float64{},
	}

	required := []string{ColEntityID, ColPeriodStart, targetCol}
	var missing []string
	for _, col := range required {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Missing required columns: %v", missing))
		return summary
	}

	periodIdx := table.ColumnIndex(ColPeriodStart)
	entityIdx := table.ColumnIndex(ColEntityID)

	periods := make([]time.Time, 0, table.RowCount())
	entities := map[string]struct{}{}
	type key struct {
		entity string
		period string
	}
	seen := map[key]struct{}{}
	duplicates := 0
	dateErrors := 0

	for row := 0; row < table.RowCount(); row++ {
		period, err := ParsePeriod(table.Cell(row, periodIdx))
		if err != nil {
			dateErrors++
			continue
		}
		periods = append(periods, period)
		entity := table.Cell(row, entityIdx)
		entities[entity] = struct{}{}
		k := key{entity: entity, period: period.Format("2006-01-02")}
		if _, dup := seen[k]; dup {
			duplicates++
		}
		seen[k] = struct{}{}
	}

	if dateErrors > 0 {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Failed to parse period_start as date on %d rows", dateErrors))
	}
	if duplicates > 0 {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Found %d duplicate (entity_id, period_start) combinations", duplicates))
	}

	if grain, err := DetectGrain(periods); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Could not detect grain: %v", err))
	} else {
		summary.Grain = grain
	}

	summary.ColumnTypes = Classify(table.Columns, targetCol)

	if len(summary.ColumnTypes.Drivers) == 0 {
		summary.Warnings = append(summary.Warnings,
			"No activity driver columns found (expected columns starting with 'act_')")
	}

	checkNumeric := append([]string{targetCol}, summary.ColumnTypes.Drivers...)
	checkNumeric = append(checkNumeric, summary.ColumnTypes.Spend...)
	for _, col := range checkNumeric {
		idx := table.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		bad := 0
		for row := 0; row < table.RowCount(); row++ {
			if _, _, err := ParseNumeric(table.Cell(row, idx)); err != nil {
				bad++
			}
		}
		if bad > 0 {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Column '%s' must be numeric", col))
		}
	}

	driverSet := map[string]struct{}{}
	for _, col := range summary.ColumnTypes.Drivers {
		driverSet[col] = struct{}{}
	}
	for idx, col := range table.Columns {
		empty := 0
		for row := 0; row < table.RowCount(); row++ {
			if table.Cell(row, idx) == "" {
				empty++
			}
		}
		if empty == 0 || table.RowCount() == 0 {
			continue
		}
		pct := float64(empty) / float64(table.RowCount()) * 100
		summary.Missingness[col] = roundTo(pct, 2)

		_, isDriver := driverSet[col]
		if isDriver || col == ColEntityID || col == ColPeriodStart || col == targetCol {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("Column '%s' has %.1f%% missing values", col, pct))
		}
	}

	if len(periods) > 0 {
		minDate, maxDate := periods[0], periods[0]
		for _, p := range periods[1:] {
			if p.Before(minDate) {
				minDate = p
			}
			if p.After(maxDate) {
				maxDate = p
			}
		}
		coverage := maxDate.Sub(minDate).Hours() / 24 / 30.44
		summary.TimeCoverageMonths = roundTo(coverage, 1)
		if coverage < 12 {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("Limited time coverage: %.1f months (minimum 12 recommended)", coverage))
		}
	}

	summary.EntityCount = len(entities)
	return summary
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	return float64(int(v*scale+0.5)) / scale
}
