// Package apperror defines the error taxonomy surfaced on the control
// surface. Components construct these values for expected failure
// conditions; everything else propagates as a plain wrapped error and is
// reported as Internal by the dispatcher.
package apperror

import (
	"errors"
	"fmt"
)

// Kind enumerates the control-surface error taxonomy.
type Kind string

const (
	NotFound        Kind = "NotFound"
	ConfigInvalid   Kind = "ConfigInvalid"
	Busy            Kind = "Busy"
	PortUnavailable Kind = "PortUnavailable"
	BuildFailed     Kind = "BuildFailed"
	StartupFailed   Kind = "StartupFailed"
	HandlerMissing  Kind = "HandlerMissing"
	CommandFailed   Kind = "CommandFailed"
	Internal        Kind = "Internal"
)

// Error is the concrete type returned for every expected failure condition.
// Details carries kind-specific payload (e.g. exit_code, cycle, reason) for
// the wire-level mapping a control surface performs.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, details map[string]any, cause error) *Error {
	return &Error{Kind: k, Message: msg, Details: details, Cause: cause}
}

func New(k Kind, msg string) *Error                    { return newErr(k, msg, nil, nil) }
func Wrap(k Kind, msg string, cause error) *Error       { return newErr(k, msg, nil, cause) }
func WithDetails(k Kind, msg string, d map[string]any) *Error {
	return newErr(k, msg, d, nil)
}

func IsNotFound(err error) bool        { return is(err, NotFound) }
func IsConfigInvalid(err error) bool   { return is(err, ConfigInvalid) }
func IsBusy(err error) bool            { return is(err, Busy) }
func IsPortUnavailable(err error) bool { return is(err, PortUnavailable) }
func IsStartupFailed(err error) bool   { return is(err, StartupFailed) }

func is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
