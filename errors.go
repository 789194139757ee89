package reactor

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInvalidArgument is returned for malformed arguments, conflicting
	// registrations (a second watcher for the same signal or pid), and misuse
	// of a source, e.g. a timer setter on an IO source.
	ErrInvalidArgument = errors.New("reactor: invalid argument")

	// ErrResourceExhausted is returned when the OS cannot allocate a resource
	// for a source, e.g. the descriptor table is full.
	ErrResourceExhausted = errors.New("reactor: resource exhausted")

	// ErrIO is matched by every [IOError].
	ErrIO = errors.New("reactor: i/o error")

	// ErrCallback is matched by every [CallbackError].
	ErrCallback = errors.New("reactor: callback failed")

	// ErrSourceReleased is returned by operations on a source whose last
	// caller reference has been dropped. It satisfies
	// errors.Is(err, ErrInvalidArgument).
	ErrSourceReleased = fmt.Errorf("%w: source released", ErrInvalidArgument)

	// ErrReactorClosed is returned when operations are attempted on a closed reactor.
	ErrReactorClosed = errors.New("reactor: reactor has been closed")

	// ErrFinished is returned by Run and Loop once Loop has observed a quit request.
	ErrFinished = errors.New("reactor: reactor has finished")

	// ErrReentrant is returned when Run or Loop is called from within a callback.
	ErrReentrant = errors.New("reactor: cannot run the reactor from within a callback")

	// ErrUnsupported is returned by NewBackend on platforms without a backend.
	ErrUnsupported = errors.New("reactor: platform not supported")
)

// IOError reports an unexpected failure of the underlying wait primitive, or
// of another OS call made on behalf of the reactor.
type IOError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Err == nil {
		return "reactor: " + e.Op + " failed"
	}
	return "reactor: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is matches [ErrIO].
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// CallbackPhase identifies which callback of a source failed.
type CallbackPhase uint8

const (
	// PhaseDispatch is the primary callback.
	PhaseDispatch CallbackPhase = iota
	// PhasePrepare is the optional prepare callback.
	PhasePrepare
)

// String returns a human-readable representation of the phase.
func (p CallbackPhase) String() string {
	switch p {
	case PhaseDispatch:
		return "dispatch"
	case PhasePrepare:
		return "prepare"
	default:
		return fmt.Sprintf("CallbackPhase(%d)", uint8(p))
	}
}

// CallbackError is returned by [Reactor.Run] and [Reactor.Loop] when a
// callback returned a non-nil error (or panicked), under the
// [AbortBatch] policy.
type CallbackError struct {
	// Source is the source whose callback failed. It may already be released.
	Source *Source
	// Err is the error returned by the callback, or a [PanicError].
	Err   error
	Phase CallbackPhase
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	var desc string
	if e.Source != nil {
		desc = " " + e.Source.String()
	}
	if e.Err == nil {
		return "reactor: " + e.Phase.String() + " callback failed" + desc
	}
	return "reactor: " + e.Phase.String() + " callback failed" + desc + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Is matches [ErrCallback].
func (e *CallbackError) Is(target error) bool {
	return target == ErrCallback
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("reactor: callback panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
//
// If the panic Value is not an error (e.g., a string or other type),
// returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// invalidArgument wraps ErrInvalidArgument with detail.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}
