package dataset_test

import (
	"strings"
	"testing"
	"time"

	"uplift/internal/dataset"
)

const sampleCSV = `entity_id,period_start,sales,act_tv,ctrl_price,spend_tv
store-1,2024-01-01,10,100,5.0,50
store-2,2024-01-01,20,200,7.0,60
store-1,2024-01-08,12,110,5.5,55
store-2,2024-01-08,18,190,6.5,58
`

func mustTable(t *testing.T, raw string) *dataset.Table {
	t.Helper()
	table, err := dataset.ReadCSV(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	return table
}

func TestReadCSV(t *testing.T) {
	table := mustTable(t, sampleCSV)
	if table.RowCount() != 4 {
		t.Fatalf("expected 4 rows, got %d", table.RowCount())
	}
	if !table.HasColumn("act_tv") || table.ColumnIndex("sales") != 2 {
		t.Fatalf("unexpected columns: %v", table.Columns)
	}
	if got := table.Cell(1, 2); got != "20" {
		t.Fatalf("Cell(1,2) = %q, want 20", got)
	}
}

func TestClassify(t *testing.T) {
	table := mustTable(t, sampleCSV)
	cls := dataset.Classify(table.Columns, "sales")
	if len(cls.Drivers) != 1 || cls.Drivers[0] != "act_tv" {
		t.Fatalf("drivers = %v", cls.Drivers)
	}
	if len(cls.Controls) != 1 || cls.Controls[0] != "ctrl_price" {
		t.Fatalf("controls = %v", cls.Controls)
	}
	if len(cls.Spend) != 1 || cls.Spend[0] != "spend_tv" {
		t.Fatalf("spend = %v", cls.Spend)
	}
}

func TestSpendColumnCandidates(t *testing.T) {
	cases := []struct {
		driver string
		want   []string
	}{
		{"act_tv", []string{"spend_tv", "spend_act_tv"}},
		{"act_paid_search", []string{"spend_paid_search", "spend_act_paid_search"}},
		{"radio", []string{"spend_radio"}},
	}
	for _, tc := range cases {
		got := dataset.SpendColumnCandidates(tc.driver)
		if len(got) != len(tc.want) {
			t.Fatalf("SpendColumnCandidates(%q) = %v, want %v", tc.driver, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("SpendColumnCandidates(%q)[%d] = %q, want %q", tc.driver, i, got[i], tc.want[i])
			}
		}
	}
}

func TestDetectGrain(t *testing.T) {
	weekly := make([]time.Time, 0, 6)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		weekly = append(weekly, start.AddDate(0, 0, 7*i))
	}
	if grain, err := dataset.DetectGrain(weekly); err != nil || grain != "WEEK" {
		t.Fatalf("weekly grain = %q, %v", grain, err)
	}

	monthly := make([]time.Time, 0, 6)
	for i := 0; i < 6; i++ {
		monthly = append(monthly, start.AddDate(0, i, 0))
	}
	if grain, err := dataset.DetectGrain(monthly); err != nil || grain != "MONTH" {
		t.Fatalf("monthly grain = %q, %v", grain, err)
	}

	if _, err := dataset.DetectGrain(weekly[:1]); err == nil {
		t.Fatal("expected error for a single period")
	}
}

func TestValidateCleanPanel(t *testing.T) {
	table := mustTable(t, sampleCSV)
	summary := dataset.Validate("ds-1", table, "sales")
	if !summary.IsValid() {
		t.Fatalf("expected valid panel, errors: %v", summary.Errors)
	}
	if summary.Grain != "WEEK" {
		t.Fatalf("grain = %q, want WEEK", summary.Grain)
	}
	if summary.EntityCount != 2 {
		t.Fatalf("entity count = %d, want 2", summary.EntityCount)
	}
	// Two periods a week apart is well under a year of coverage.
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "Limited time coverage") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected time-coverage warning, got %v", summary.Warnings)
	}
}

func TestValidateMissingRequiredColumn(t *testing.T) {
	table := mustTable(t, "entity_id,period_start,act_tv\na,2024-01-01,5\n")
	summary := dataset.Validate("ds-2", table, "sales")
	if summary.IsValid() {
		t.Fatal("expected missing sales column to fail validation")
	}
	if !strings.Contains(summary.Errors[0], "Missing required columns") {
		t.Fatalf("unexpected error: %v", summary.Errors)
	}
}

func TestValidateDuplicatesAndBadDates(t *testing.T) {
	raw := `entity_id,period_start,sales
a,2024-01-01,10
a,2024-01-01,11
b,not-a-date,12
`
	summary := dataset.Validate("ds-3", mustTable(t, raw), "sales")
	if summary.IsValid() {
		t.Fatal("expected validation errors")
	}
	var sawDup, sawDate bool
	for _, e := range summary.Errors {
		if strings.Contains(e, "duplicate") {
			sawDup = true
		}
		if strings.Contains(e, "parse period_start") {
			sawDate = true
		}
	}
	if !sawDup || !sawDate {
		t.Fatalf("expected duplicate and date errors, got %v", summary.Errors)
	}
}

func TestValidateNonNumericTarget(t *testing.T) {
	raw := `entity_id,period_start,sales
a,2024-01-01,abc
a,2024-01-08,def
`
	summary := dataset.Validate("ds-4", mustTable(t, raw), "sales")
	var saw bool
	for _, e := range summary.Errors {
		if strings.Contains(e, "'sales' must be numeric") {
			saw = true
		}
	}
	if !saw {
		t.Fatalf("expected numeric error for sales, got %v", summary.Errors)
	}
}
