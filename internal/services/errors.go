package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks data errors: missing or non-numeric required columns,
	// unparseable dates, malformed uploads.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks run-spec problems such as referenced columns that
	// do not exist in the canonical data.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing runs, datasets, or upstream artifacts.
	ErrNotFound = errors.New("not found")
	// ErrExternalTool marks failures propagated from the sampling engine.
	ErrExternalTool = errors.New("external tool error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
