package dataset

import "strings"

// Column-name prefixes that classify panel columns into modeling roles.
const (
	DriverPrefix  = "act_"
	ControlPrefix = "ctrl_"
	SpendPrefix   = "spend_"
)

// Classification partitions a schema's columns by modeling role.
type Classification struct {
	Required []string `json:"required"`
	Drivers  []string `json:"activity_drivers"`
	Controls []string `json:"controls"`
	Spend    []string `json:"spend"`
}

// Classify partitions column names by prefix. Order within each group follows
// the input schema order, which downstream feature ordering relies on.
func Classify(columns []string, targetCol string) Classification {
	cls := Classification{
		Required: []string{ColEntityID, ColPeriodStart, targetCol},
	}
	for _, col := range columns {
		switch {
		case strings.HasPrefix(col, DriverPrefix):
			cls.Drivers = append(cls.Drivers, col)
		case strings.HasPrefix(col, ControlPrefix):
			cls.Controls = append(cls.Controls, col)
		case strings.HasPrefix(col, SpendPrefix):
			cls.Spend = append(cls.Spend, col)
		}
	}
	return cls
}

// SpendColumnCandidates returns the spend columns that may fund a driver, in
// lookup order: the driver prefix substituted with the spend prefix first,
// then the spend prefix prepended to the full driver name.
func SpendColumnCandidates(driver string) []string {
	if strings.HasPrefix(driver, DriverPrefix) {
		return []string{
			SpendPrefix + strings.TrimPrefix(driver, DriverPrefix),
			SpendPrefix + driver,
		}
	}
	return []string{SpendPrefix + driver}
}
