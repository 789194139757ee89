//go:build linux || darwin

package reactor

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigChild is delivered on a state change of any child.
const sigChild = unix.SIGCHLD

// catchable reports whether sig may be handled, i.e. is not SIGKILL or SIGSTOP.
func catchable(sig syscall.Signal) bool {
	return sig != unix.SIGKILL && sig != unix.SIGSTOP
}

// osError classifies an error from an OS call made on behalf of a source or
// the reactor itself.
func osError(op string, err error) error {
	switch {
	case errors.Is(err, unix.EMFILE),
		errors.Is(err, unix.ENFILE),
		errors.Is(err, unix.ENOMEM),
		errors.Is(err, unix.ENOSPC):
		return fmt.Errorf("%w: %s: %w", ErrResourceExhausted, op, err)
	case errors.Is(err, unix.EINVAL),
		errors.Is(err, unix.EPERM),
		errors.Is(err, unix.EBADF):
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, op, err)
	default:
		return &IOError{Op: op, Err: err}
	}
}

// writeWake signals the wake fd. Errors are ignored, a full pipe or eventfd
// counter already guarantees a pending wake-up.
func writeWake(fd int) {
	// Native endianness, as eventfd expects
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	for {
		_, err := unix.Write(fd, buf)
		if err != unix.EINTR {
			return
		}
	}
}

// drainWake empties the wake fd.
func drainWake(fd int, buf []byte) {
	for {
		_, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
	}
}

// closeWake closes both ends of a wake fd pair.
func closeWake(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}
