//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// waitChild polls pid for a state change matching mask, without blocking.
// Termination is always reported, and reaps the child. It returns false if
// nothing changed.
func waitChild(pid int, mask WaitMask) (ChildInfo, bool, error) {
	options := unix.WNOHANG
	if mask&WaitStopped != 0 {
		options |= unix.WUNTRACED
	}
	if mask&WaitContinued != 0 {
		options |= unix.WCONTINUED
	}
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &status, options, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return ChildInfo{}, false, err
		case wpid == 0:
			return ChildInfo{}, false, nil
		}
		info, ok := childInfoFromStatus(wpid, status)
		return info, ok, nil
	}
}
