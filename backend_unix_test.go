//go:build linux || darwin

package reactor

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestBackend_Readiness(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a, peer := testSocketpair(t)
	events := make([]BackendEvent, 8)

	if err := b.Add(a, EventRead); err != nil {
		t.Fatal(err)
	}
	if n, err := b.Wait(0, events); err != nil || n != 0 {
		t.Fatalf("expected no events, got %d %v", n, err)
	}

	if _, err := unix.Write(peer, []byte("x")); err != nil {
		t.Fatal(err)
	}
	n, err := b.Wait(time.Second, events)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || events[0].FD != a || events[0].Events&EventRead == 0 {
		t.Fatalf("unexpected events: %v", events[:n])
	}

	// level-triggered: still ready until read
	if n, err := b.Wait(0, events); err != nil || n != 1 {
		t.Fatalf("expected the event to be reported again, got %d %v", n, err)
	}

	if err := b.Modify(a, EventWrite); err != nil {
		t.Fatal(err)
	}
	n, err = b.Wait(time.Second, events)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || events[0].Events&EventWrite == 0 {
		t.Fatalf("expected writability, got %v", events[:n])
	}

	if err := b.Remove(a); err != nil {
		t.Fatal(err)
	}
	if n, err := b.Wait(0, events); err != nil || n != 0 {
		t.Fatalf("expected no events after removal, got %d %v", n, err)
	}
	if err := b.Remove(a); !isNotExistErr(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestBackend_AddTwice(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a, _ := testSocketpair(t)
	if err := b.Add(a, EventRead); err != nil {
		t.Fatal(err)
	}
	err = b.Add(a, EventRead)
	if !isExistErr(err) {
		t.Errorf("expected an exist error, got %v", err)
	}
}

func TestBackend_Timeout(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	start := time.Now()
	n, err := b.Wait(20*time.Millisecond, make([]BackendEvent, 1))
	if err != nil && !errors.Is(err, unix.EINTR) {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
	if err == nil && time.Since(start) < 15*time.Millisecond {
		t.Errorf("returned too early, after %v", time.Since(start))
	}
}

func TestBackend_Closed(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, err := b.Wait(0, make([]BackendEvent, 1)); !errors.Is(err, ErrReactorClosed) {
		t.Errorf("expected ErrReactorClosed, got %v", err)
	}
	if err := b.Add(0, EventRead); !errors.Is(err, ErrReactorClosed) {
		t.Errorf("expected ErrReactorClosed, got %v", err)
	}
}
