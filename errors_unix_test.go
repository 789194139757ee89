//go:build linux || darwin

package reactor

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOSError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want error
	}{
		{unix.EMFILE, ErrResourceExhausted},
		{unix.ENFILE, ErrResourceExhausted},
		{unix.ENOMEM, ErrResourceExhausted},
		{unix.ENOSPC, ErrResourceExhausted},
		{unix.EINVAL, ErrInvalidArgument},
		{unix.EPERM, ErrInvalidArgument},
		{unix.EBADF, ErrInvalidArgument},
		{unix.EIO, ErrIO},
		{unix.ENXIO, ErrIO},
	} {
		err := osError("op", tc.err)
		if !errors.Is(err, tc.want) {
			t.Errorf("%v: expected %v, got %v", tc.err, tc.want, err)
		}
		if !errors.Is(err, tc.err) {
			t.Errorf("%v: expected the cause to be preserved, got %v", tc.err, err)
		}
	}

	var ioErr *IOError
	if !errors.As(osError("wait", unix.EIO), &ioErr) || ioErr.Op != "wait" {
		t.Errorf("expected an *IOError for wait, got %v", ioErr)
	}
}
