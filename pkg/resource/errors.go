package resource

import (
	"errors"
	"fmt"

	"github.com/stackform-io/stackform/internal/ir"
)

// Class buckets provider errors so the executor can decide between retry,
// reconcile, and immediate failure without knowing provider specifics.
type Class string

const (
	// ClassAlreadyExists: create hit an existing resource. Non-fatal; the
	// executor reconciles the real remote ID into the state store.
	ClassAlreadyExists Class = "AlreadyExists"
	// ClassTransient: throttling, network flakes, 5xx. Retried with backoff.
	ClassTransient Class = "TransientProviderError"
	// ClassNotFound: the referenced remote resource does not exist.
	ClassNotFound Class = "NotFound"
	// ClassPermissionDenied: fatal, never retried.
	ClassPermissionDenied Class = "PermissionDenied"
	// ClassTimedOut: waiting for readiness exceeded its bound.
	ClassTimedOut Class = "TimedOut"
	// ClassValidation: the config is invalid for the kind. Fatal.
	ClassValidation Class = "ValidationError"
	// ClassFatal: anything else the provider could not classify. Not retried.
	ClassFatal Class = "ProviderError"
)

// Error is a classified provider error.
type Error struct {
	Class Class
	Kind  ir.Kind
	Name  string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Name, e.Class)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Name, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error for a (kind, name) pair.
func NewError(class Class, kind ir.Kind, name string, err error) *Error {
	return &Error{Class: class, Kind: kind, Name: name, Err: err}
}

func classOf(err error) (Class, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Class, true
	}
	return "", false
}

func IsAlreadyExists(err error) bool { c, ok := classOf(err); return ok && c == ClassAlreadyExists }
func IsTransient(err error) bool     { c, ok := classOf(err); return ok && c == ClassTransient }
func IsNotFound(err error) bool      { c, ok := classOf(err); return ok && c == ClassNotFound }
func IsTimedOut(err error) bool      { c, ok := classOf(err); return ok && c == ClassTimedOut }
