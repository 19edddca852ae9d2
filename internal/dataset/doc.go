// Package dataset handles raw panel ingestion: CSV parsing into a columnar
// table, prefix-based column classification (act_/ctrl_/spend_), time-grain
// detection, and structural validation producing the persisted
// validation_summary artifact.
package dataset
