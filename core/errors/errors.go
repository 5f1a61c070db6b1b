// Package errors classifies safety-layer failures so callers can decide
// continue-vs-abort per error kind instead of string matching.
package errors

import "errors"

type Category string

const (
	CategoryFileSystem   Category = "filesystem"
	CategoryIntegrity    Category = "integrity"
	CategoryPrecondition Category = "precondition"
	CategoryVerification Category = "verification"
	CategoryPersistence  Category = "persistence"
	CategoryNotFound     Category = "not_found"
	CategoryAggregate    Category = "aggregate"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type classifiedError struct {
	message  string
	category Category
	severity Severity
	path     string
	hint     string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.message != "" {
		return e.message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return "unknown error"
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Severity() Severity {
	return e.severity
}

func (e *classifiedError) Path() string {
	return e.path
}

func (e *classifiedError) Hint() string {
	return e.hint
}

// New builds a classified error with no underlying cause.
func New(category Category, severity Severity, message, path, hint string) error {
	return &classifiedError{
		message:  message,
		category: category,
		severity: severity,
		path:     path,
		hint:     hint,
	}
}

// Wrap classifies an underlying error. Returns nil when cause is nil so
// call sites can wrap unconditionally.
func Wrap(cause error, category Category, severity Severity, message, path, hint string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		message:  message,
		category: category,
		severity: severity,
		path:     path,
		hint:     hint,
		cause:    cause,
	}
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	var aggregate *AggregateError
	if errors.As(err, &aggregate) {
		return CategoryAggregate
	}
	return ""
}

func SeverityOf(err error) Severity {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.severity
	}
	var aggregate *AggregateError
	if errors.As(err, &aggregate) {
		return SeverityError
	}
	return ""
}

func PathOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.path
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

// IsCritical reports whether the error must abort the whole run rather
// than continue to the next candidate path.
func IsCritical(err error) bool {
	return SeverityOf(err) == SeverityCritical
}

// As and Is re-export the stdlib helpers so callers of this package do not
// need a second errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
