package autoquiz

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures for the caller. Extraction and
// per-question validation failures are recovered locally and normally never
// surface as a PipelineError; the kinds exist so that total failures of
// those stages still carry a useful classification.
type ErrorKind string

const (
	ErrInput      ErrorKind = "input"
	ErrExtraction ErrorKind = "extraction"
	ErrQuota      ErrorKind = "quota"
	ErrGeneration ErrorKind = "generation"
	ErrValidation ErrorKind = "validation"
)

// PipelineError is the typed error surfaced to the request boundary. The
// Message is user-presentable; wrapped provider internals stay in Err.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func inputError(format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: ErrInput, Message: fmt.Sprintf(format, args...)}
}

func extractionError(format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: ErrExtraction, Message: fmt.Sprintf(format, args...)}
}

func quotaError(format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: ErrQuota, Message: fmt.Sprintf(format, args...)}
}

func generationError(err error, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: ErrGeneration, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the ErrorKind of err, or ErrGeneration when err is not a
// PipelineError (an unclassified failure reached the boundary from the
// generation stage or below).
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrGeneration
}

// UserMessage returns the presentable message of err without provider
// internals.
func UserMessage(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "quiz generation failed"
}
