package engine

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError names one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports malformed input. Validation failures are
// detected before any mutation; an operation returning one has changed
// nothing.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add appends a field error; used by the per-operation validators.
func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// orNil returns the error when it carries at least one field failure.
func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports that a candidate rule cannot proceed because
// conflict detection found blocking conflicts. The full report is
// attached so the caller can inspect the conflicting rules and decide
// to raise an override instead.
type ConflictError struct {
	Report *ConflictReport
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Report.Conflicts))
	for i, c := range e.Report.Conflicts {
		ids[i] = fmt.Sprintf("%s (%s/%s)", c.RuleID, c.Type, c.Severity)
	}
	return fmt.Sprintf("cannot proceed: %d conflicting rule(s): %s",
		len(e.Report.Conflicts), strings.Join(ids, ", "))
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// NotFoundError reports an operation on a record that does not exist,
// including override-only operations invoked on a non-override rule.
type NotFoundError struct {
	Kind string // "rule", "event", "override rule"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// RuleFailure records one rule that a multi-rule operation could not
// update.
type RuleFailure struct {
	RuleID string
	Err    string
}

// PartialFailureError reports a multi-rule suspension or restoration
// that updated some rules and not others. Applied lists the rules that
// were updated; Failures lists every rule that was not, individually.
// The operation does not assume all-or-nothing transactionality across
// rules, so the caller sees exactly which rules are in which state.
type PartialFailureError struct {
	Op       string
	Applied  []string
	Failures []RuleFailure
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	failed := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		failed[i] = fmt.Sprintf("%s (%s)", f.RuleID, f.Err)
	}
	return fmt.Sprintf("%s: %d of %d rule(s) failed: %s",
		e.Op, len(e.Failures), len(e.Failures)+len(e.Applied), strings.Join(failed, ", "))
}

// IsPartialFailure reports whether err is (or wraps) a
// PartialFailureError.
func IsPartialFailure(err error) bool {
	var pfe *PartialFailureError
	return errors.As(err, &pfe)
}
