// Package xerrors defines the error taxonomy shared by validation, storage,
// and the service layer, following the sentinel + typed-error pattern used
// throughout the pack (see pkg/services/errors.go).
package xerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an experiment id is not present.
	ErrNotFound = errors.New("experiment not found")

	// ErrConflict is returned when a unique (applicationName, label) pair is
	// violated, or a concurrent mutation lost the race on the same id.
	ErrConflict = errors.New("conflicting experiment state")
)

// Kind identifies the category of a RepositoryError.
type Kind string

const (
	KindTransient Kind = "transient"
	KindConflict  Kind = "conflict"
	KindNotFound  Kind = "notFound"
	KindSchema    Kind = "schema"
)

// RepositoryError is returned by ExperimentStore implementations. Transient
// errors may be retried by callers; conflict and schema errors propagate.
type RepositoryError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("repository: %s: %s", e.Op, e.Kind)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError builds a RepositoryError for operation op.
func NewRepositoryError(op string, kind Kind, err error) error {
	return &RepositoryError{Op: op, Kind: kind, Err: err}
}

// IsTransient reports whether err is a RepositoryError of kind transient.
func IsTransient(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re) && re.Kind == KindTransient
}

// ValidationKind distinguishes the reason validation failed.
type ValidationKind string

const (
	ValidationInvalidIdentifier ValidationKind = "invalidIdentifier"
	ValidationInvalidArgument   ValidationKind = "invalidArgument"
	ValidationInvalidTransition ValidationKind = "invalidStateTransition"
	ValidationIllegalUpdate     ValidationKind = "illegalUpdateForState"
)

// ValidationError wraps a field-specific or rule-specific validation failure.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation (%s) on field %q: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("validation (%s): %s", e.Kind, e.Message)
}

// NewValidationError constructs a ValidationError of the given kind.
func NewValidationError(kind ValidationKind, field, message string) error {
	return &ValidationError{Kind: kind, Field: field, Message: message}
}

// IsValidationError reports whether err is a ValidationError, optionally of
// a specific kind (pass "" to match any kind).
func IsValidationError(err error, kind ValidationKind) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return kind == "" || ve.Kind == kind
}

// RuleParseError is returned by RuleCompiler.Parse when a segmentation
// expression is syntactically invalid.
type RuleParseError struct {
	Expr    string
	Message string
}

func (e *RuleParseError) Error() string {
	return fmt.Sprintf("rule parse error in %q: %s", e.Expr, e.Message)
}

// NewRuleParseError constructs a RuleParseError.
func NewRuleParseError(expr, message string) error {
	return &RuleParseError{Expr: expr, Message: message}
}

// IsRuleParseError reports whether err is a RuleParseError.
func IsRuleParseError(err error) bool {
	var rpe *RuleParseError
	return errors.As(err, &rpe)
}
