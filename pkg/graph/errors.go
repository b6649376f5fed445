package graph

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	reason error
}

func NewValidationError(format string, args ...interface{}) ValidationError {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// DuplicateStageRunError indicates orchestrator misuse: the same stage
// recorded twice within one run.
type DuplicateStageRunError struct {
	Stage string
}

func (e DuplicateStageRunError) Error() string {
	return fmt.Sprintf("analysis for stage '%s' already recorded in this run", e.Stage)
}

func IsDuplicateStageRunError(err error) bool {
	var de DuplicateStageRunError
	return errors.As(err, &de)
}
