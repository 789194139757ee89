//go:build linux || darwin

package reactor

import (
	"slices"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestSignalNotifier_Refcount(t *testing.T) {
	n, err := newSignalNotifier()
	if err != nil {
		t.Fatal(err)
	}
	defer n.close()

	n.watch(unix.SIGUSR2)
	n.watch(unix.SIGUSR2)
	n.unwatch(unix.SIGUSR2)
	if !n.watching(unix.SIGUSR2) {
		t.Fatal("expected SIGUSR2 to still be watched")
	}
	n.unwatch(unix.SIGUSR2)
	if n.watching(unix.SIGUSR2) {
		t.Fatal("expected SIGUSR2 to no longer be watched")
	}
	// unbalanced calls are ignored
	n.unwatch(unix.SIGUSR2)
}

func TestSignalNotifier_Delivery(t *testing.T) {
	n, err := newSignalNotifier()
	if err != nil {
		t.Fatal(err)
	}
	defer n.close()

	n.watch(unix.SIGUSR2)
	defer n.unwatch(unix.SIGUSR2)

	if got := n.drain(); len(got) != 0 {
		t.Fatalf("expected nothing queued, got %v", got)
	}

	if err := unix.Kill(unix.Getpid(), unix.SIGUSR2); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var got []syscall.Signal
	for len(got) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for SIGUSR2")
		}
		// wait for the wake fd
		fds := []unix.PollFd{{Fd: int32(n.readFD), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, 100); err != nil && err != unix.EINTR {
			t.Fatal(err)
		}
		got = slices.Clone(n.drain())
	}
	if got[0] != unix.SIGUSR2 {
		t.Errorf("expected SIGUSR2, got %v", got)
	}

	// the wake fd was drained
	fds := []unix.PollFd{{Fd: int32(n.readFD), Events: unix.POLLIN}}
	if ready, err := unix.Poll(fds, 0); err == nil && ready != 0 {
		t.Error("expected the wake fd to be drained")
	}
}
