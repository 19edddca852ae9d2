// Package canonical collapses a validated entity-level panel into a single
// brand-total series per period.
//
// The target, activity drivers, and spend columns are summed across entities;
// control columns are averaged. Periods come out sorted ascending, so every
// downstream transform can rely on time order.
package canonical

import (
	"fmt"
	"sort"
	"time"

	"uplift/internal/dataset"
	"uplift/internal/run"
	"uplift/internal/services"
)

// AggregationLevel is the only aggregation currently produced.
const AggregationLevel = "brand_total"

// Series is the canonical brand-total panel, one row per period.
type Series struct {
	Grain       run.Grain            `json:"grain"`
	PeriodStart []time.Time          `json:"period_start"`
	Values      map[string][]float64 `json:"values"`
}

// Len returns the number of periods in the series.
func (s *Series) Len() int {
	return len(s.PeriodStart)
}

// Column returns the values for a column and whether it exists.
func (s *Series) Column(name string) ([]float64, bool) {
	vals, ok := s.Values[name]
	return vals, ok
}

// ColumnInfo records how the canonical series was assembled.
type ColumnInfo struct {
	Target              string   `json:"target"`
	Drivers             []string `json:"drivers"`
	Controls            []string `json:"controls"`
	Spend               []string `json:"spend"`
	AggregationLevel    string   `json:"aggregation_level"`
	EntityCountOriginal int      `json:"entity_count_original"`
}

type periodAccumulator struct {
	sums   map[string]float64
	counts map[string]int
}

// Aggregate groups the raw panel by period_start and collapses entities into
// brand totals. The target, drivers, and spend columns are summed; controls
// are averaged over the entities that reported a value.
func Aggregate(table *dataset.Table, grain run.Grain, targetCol string) (*Series, *ColumnInfo, error) {
	targetIdx := table.ColumnIndex(targetCol)
	if targetIdx < 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "canonicalize", "aggregate",
			fmt.Sprintf("target column %q not found", targetCol), nil)
	}
	periodIdx := table.ColumnIndex(dataset.ColPeriodStart)
	if periodIdx < 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "canonicalize", "aggregate",
			"period_start column not found", nil)
	}
	entityIdx := table.ColumnIndex(dataset.ColEntityID)

	cls := dataset.Classify(table.Columns, targetCol)
	summed := append([]string{targetCol}, cls.Drivers...)
	summed = append(summed, cls.Spend...)

	periods := make(map[time.Time]*periodAccumulator)
	entities := make(map[string]struct{})

	for i := 0; i < table.RowCount(); i++ {
		period, err := dataset.ParsePeriod(table.Cell(i, periodIdx))
		if err != nil {
			return nil, nil, services.Wrap(services.ErrValidation, "canonicalize", "aggregate",
				fmt.Sprintf("row %d: bad period_start", i), err)
		}
		if entityIdx >= 0 {
			entities[table.Cell(i, entityIdx)] = struct{}{}
		}

		acc := periods[period]
		if acc == nil {
			acc = &periodAccumulator{sums: make(map[string]float64), counts: make(map[string]int)}
			periods[period] = acc
		}

		for _, col := range summed {
			idx := table.ColumnIndex(col)
			val, ok, err := dataset.ParseNumeric(table.Cell(i, idx))
			if err != nil {
				if col == targetCol {
					return nil, nil, services.Wrap(services.ErrValidation, "canonicalize", "aggregate",
						fmt.Sprintf("row %d: target %q is not numeric", i, targetCol), err)
				}
				continue
			}
			if !ok {
				continue
			}
			acc.sums[col] += val
			acc.counts[col]++
		}
		for _, col := range cls.Controls {
			idx := table.ColumnIndex(col)
			val, ok, err := dataset.ParseNumeric(table.Cell(i, idx))
			if err != nil || !ok {
				continue
			}
			acc.sums[col] += val
			acc.counts[col]++
		}
	}

	ordered := make([]time.Time, 0, len(periods))
	for period := range periods {
		ordered = append(ordered, period)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	series := &Series{
		Grain:       grain,
		PeriodStart: ordered,
		Values:      make(map[string][]float64, len(summed)+len(cls.Controls)),
	}
	for _, col := range summed {
		series.Values[col] = make([]float64, len(ordered))
	}
	for _, col := range cls.Controls {
		series.Values[col] = make([]float64, len(ordered))
	}

	for t, period := range ordered {
		acc := periods[period]
		for _, col := range summed {
			series.Values[col][t] = acc.sums[col]
		}
		for _, col := range cls.Controls {
			if n := acc.counts[col]; n > 0 {
				series.Values[col][t] = acc.sums[col] / float64(n)
			}
		}
	}

	info := &ColumnInfo{
		Target:              targetCol,
		Drivers:             cls.Drivers,
		Controls:            cls.Controls,
		Spend:               cls.Spend,
		AggregationLevel:    AggregationLevel,
		EntityCountOriginal: len(entities),
	}
	return series, info, nil
}
