package errors

import (
	"fmt"
	"strings"
)

// OperationFailure names one operation that could not be rolled back and why.
type OperationFailure struct {
	OperationID string
	Err         error
}

// AggregateError reports a partially failed session rollback. The engine
// keeps going past individual failures, so the aggregate carries every
// per-operation cause alongside the count that did succeed.
type AggregateError struct {
	RolledBack int
	Failures   []OperationFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", failure.OperationID, failure.Err))
	}
	return fmt.Sprintf(
		"session rollback partially failed: %d rolled back, %d failed [%s]",
		e.RolledBack,
		len(e.Failures),
		strings.Join(parts, "; "),
	)
}

func NewAggregate(rolledBack int, failures []OperationFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &AggregateError{
		RolledBack: rolledBack,
		Failures:   append([]OperationFailure{}, failures...),
	}
}

// FailuresOf returns the per-operation failures when err is an aggregate,
// nil otherwise.
func FailuresOf(err error) []OperationFailure {
	var aggregate *AggregateError
	if As(err, &aggregate) {
		return aggregate.Failures
	}
	return nil
}
