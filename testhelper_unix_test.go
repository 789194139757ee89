//go:build linux || darwin

package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testNew creates a reactor, closed on cleanup.
func testNew(t *testing.T, opts ...Option) *Reactor {
	t.Helper()
	r, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// testPipe creates a pipe, closed on cleanup. Pipe file descriptors are
// supported by both epoll and kqueue.
func testPipe(t *testing.T) (pipeR, pipeW *os.File) {
	t.Helper()
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		t.Fatal("os.Pipe failed:", err)
	}
	t.Cleanup(func() {
		pipeR.Close()
		pipeW.Close()
	})
	return pipeR, pipeW
}

// testSocketpair creates a connected pair of unix stream sockets, closed on
// cleanup. Unlike pipes, either end may be watched for both directions.
func testSocketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// hookBackend wraps a real backend, counting calls per fd, and optionally
// failing waits.
type hookBackend struct {
	Backend
	adds     map[int]int
	modifies map[int]int
	removes  map[int]int
	interest map[int]IOEvents
	// waitErrs are returned, in order, by the next calls to Wait
	waitErrs []error
	waits    int
	// timeouts records the timeout of every call to Wait
	timeouts []time.Duration
	// onWait, if set, is called at the start of every call to Wait
	onWait func()
}

func newHookBackend(t *testing.T) *hookBackend {
	t.Helper()
	b, err := NewBackend()
	require.NoError(t, err)
	return &hookBackend{
		Backend:  b,
		adds:     make(map[int]int),
		modifies: make(map[int]int),
		removes:  make(map[int]int),
		interest: make(map[int]IOEvents),
	}
}

func (h *hookBackend) Add(fd int, events IOEvents) error {
	h.adds[fd]++
	if err := h.Backend.Add(fd, events); err != nil {
		return err
	}
	h.interest[fd] = events
	return nil
}

func (h *hookBackend) Modify(fd int, events IOEvents) error {
	h.modifies[fd]++
	if err := h.Backend.Modify(fd, events); err != nil {
		return err
	}
	h.interest[fd] = events
	return nil
}

func (h *hookBackend) Remove(fd int) error {
	h.removes[fd]++
	delete(h.interest, fd)
	return h.Backend.Remove(fd)
}

func (h *hookBackend) Wait(timeout time.Duration, events []BackendEvent) (int, error) {
	h.waits++
	h.timeouts = append(h.timeouts, timeout)
	if h.onWait != nil {
		h.onWait()
	}
	if len(h.waitErrs) > 0 {
		err := h.waitErrs[0]
		h.waitErrs = h.waitErrs[1:]
		return 0, err
	}
	return h.Backend.Wait(timeout, events)
}

// fakeClock is a manually advanced [Clock].
type fakeClock struct {
	times [2]time.Time
}

func newFakeClock() *fakeClock {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{times: [2]time.Time{base, base}}
}

func (c *fakeClock) Now(id ClockID) time.Time { return c.times[id] }

func (c *fakeClock) Advance(d time.Duration) {
	c.times[Monotonic] = c.times[Monotonic].Add(d)
	c.times[Realtime] = c.times[Realtime].Add(d)
}
