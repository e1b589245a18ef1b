// File: internal/form/errors.go
package form

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes the pipeline distinguishes. Field
// level failures are isolated and reported per field; only ErrScanFailed
// aborts a run.
var (
	// ErrScanFailed means the page could not be scanned at all (navigation or
	// script evaluation failure on the top frame). The only fatal error.
	ErrScanFailed = errors.New("form scan failed")

	// ErrHarvestFailed means a combobox never exposed options within the
	// attempt budget. Escalated to the user-ask path, never silently dropped.
	ErrHarvestFailed = errors.New("combobox option harvest failed")

	// ErrBindFailed means a control rejected the attempted value. Retried
	// once after a fresh scan, then reported as an unfilled field.
	ErrBindFailed = errors.New("field binding failed")

	// ErrNoSubmitTrigger means no known submit control was actionable.
	// Reported, not fatal: the post-submit screenshot is the ground truth.
	ErrNoSubmitTrigger = errors.New("no submit trigger found")
)

// FieldError wraps a failure with the offending field's display name and the
// attempted value, so user-visible reports always carry both.
type FieldError struct {
	Field   string
	Attempt string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Attempt == "" {
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %q (attempted %q): %v", e.Field, e.Attempt, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field, attempt string, err error) error {
	return &FieldError{Field: field, Attempt: attempt, Err: err}
}
