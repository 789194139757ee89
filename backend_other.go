//go:build !linux && !darwin

package reactor

import (
	"errors"
	"fmt"
	"syscall"
)

// NewBackend returns the native [Backend] for the current platform, which
// is unsupported. A custom backend may still be supplied using [WithBackend],
// though signal and child sources remain unavailable.
func NewBackend() (Backend, error) {
	return nil, ErrUnsupported
}

// sigChild is zero where child sources are unsupported.
const sigChild syscall.Signal = 0

func catchable(syscall.Signal) bool { return true }

func osError(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

func createWakeFd() (int, int, error) {
	return -1, -1, fmt.Errorf("%w: wake fd", ErrUnsupported)
}

func writeWake(int)            {}
func drainWake(int, []byte)    {}
func closeWake(int, int)       {}
func isExistErr(error) bool    { return false }
func isNotExistErr(error) bool { return false }

func waitChild(int, WaitMask) (ChildInfo, bool, error) {
	return ChildInfo{}, false, errors.ErrUnsupported
}
