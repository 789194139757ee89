// backend.go - I/O readiness backends.
//
// The reactor waits for file descriptor readiness using platform-native
// mechanisms:
//   - Linux: epoll
//   - Darwin: kqueue
//
// See backend_linux.go and backend_darwin.go for platform-specific
// implementations. Other implementations may be supplied with [WithBackend].

package reactor

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// IOEvents represents the type of I/O events to monitor, or that were received.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	// It is only ever received, never requested.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	// It is only ever received, never requested.
	EventHangup
)

// interestMask is the set of events a caller may request.
const interestMask = EventRead | EventWrite

// String returns a human-readable representation of the events.
func (e IOEvents) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	if e&EventRead != 0 {
		parts = append(parts, "read")
	}
	if e&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if e&EventError != 0 {
		parts = append(parts, "error")
	}
	if e&EventHangup != 0 {
		parts = append(parts, "hangup")
	}
	if rest := e &^ (EventRead | EventWrite | EventError | EventHangup); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// BackendEvent is a single readiness notification received from a [Backend].
type BackendEvent struct {
	FD     int
	Events IOEvents
}

// Backend is the OS-level readiness multiplexing primitive used by a
// [Reactor]. The reactor only ever calls a backend from the goroutine running
// it, and it never adds an fd twice without removing it in between.
type Backend interface {
	// Add starts watching fd for events.
	Add(fd int, events IOEvents) error
	// Modify replaces the events watched for fd.
	Modify(fd int, events IOEvents) error
	// Remove stops watching fd.
	Remove(fd int) error
	// Wait blocks until at least one watched fd is ready, or until timeout
	// elapses, filling events. A negative timeout blocks indefinitely.
	// An interrupted wait must be reported using an error satisfying
	// errors.Is(err, syscall.EINTR).
	Wait(timeout time.Duration, events []BackendEvent) (int, error)
	// Close releases the backend.
	Close() error
}

// timeoutMillis converts a wait timeout into milliseconds, for backends with
// millisecond resolution.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	// Ceiling rounding: if 0 < delta < 1ms, round up to 1ms
	if timeout > 0 && timeout < time.Millisecond {
		return 1
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	if ms > 1<<31-1 {
		return 1<<31 - 1
	}
	return int(ms)
}

// isInterrupted reports whether a wait was interrupted by a signal.
func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
