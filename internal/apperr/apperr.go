// Package apperr defines the error taxonomy shared by the engine and its callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it
type Kind string

const (
	KindValidation        Kind = "validation"         // Malformed input, nothing changed
	KindNotFound          Kind = "not_found"          // Referenced record absent
	KindConflict          Kind = "conflict"           // Precondition failed; re-fetch and retry
	KindDependencyTimeout Kind = "dependency_timeout" // External dependency unresponsive
	KindEvaluation        Kind = "evaluation"         // Scoring could not complete
)

// Sentinels for errors.Is checks
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDependencyTimeout = errors.New("dependency timeout")
	ErrEvaluation        = errors.New("evaluation failure")
)

var sentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindConflict:          ErrConflict,
	KindDependencyTimeout: ErrDependencyTimeout,
	KindEvaluation:        ErrEvaluation,
}

// Error is a classified engine error
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Validation reports malformed input
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record
func NotFound(op, what, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", what, id), Details: id}
}

// Conflict reports a failed optimistic precondition
func Conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// DependencyTimeout wraps an unresponsive dependency's error
func DependencyTimeout(op string, err error) *Error {
	return &Error{Kind: KindDependencyTimeout, Op: op, Message: "dependency did not respond", Err: err}
}

// Evaluation wraps a scoring failure
func Evaluation(op string, err error) *Error {
	return &Error{Kind: KindEvaluation, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
