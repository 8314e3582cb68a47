package coach

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal workflow failures so the caller can render
// an actionable message.
type ErrorKind string

const (
	// KindValidation covers bad input rejected before any adapter runs.
	KindValidation ErrorKind = "validation"
	// KindAdapter covers any stage invocation failure: network, auth,
	// quota, malformed or empty response, timeout.
	KindAdapter ErrorKind = "adapter"
	// KindStateConsistency covers a stage invoked without its required
	// predecessor field. Unreachable given the runner's transition guards.
	KindStateConsistency ErrorKind = "state_consistency"
)

// WorkflowError is the structured failure recorded on PipelineState.
type WorkflowError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	cause   error
}

func (e *WorkflowError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: stage %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *WorkflowError) Unwrap() error { return e.cause }

func validationError(format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func adapterError(stage string, cause error) *WorkflowError {
	return &WorkflowError{
		Kind:    KindAdapter,
		Stage:   stage,
		Message: cause.Error(),
		cause:   cause,
	}
}

func consistencyError(stage, missing string) *WorkflowError {
	return &WorkflowError{
		Kind:    KindStateConsistency,
		Stage:   stage,
		Message: fmt.Sprintf("required field %s not populated", missing),
	}
}

// HasKind reports whether err is (or wraps) a WorkflowError of the given kind.
func HasKind(err error, kind ErrorKind) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}
