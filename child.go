package reactor

import (
	"fmt"
	"strings"
	"syscall"
)

// WaitMask selects the state changes of a child process that are reported.
type WaitMask uint8

const (
	// WaitExited reports a normal exit.
	WaitExited WaitMask = 1 << iota
	// WaitSignaled reports termination by a signal.
	WaitSignaled
	// WaitStopped reports the child being stopped by a signal.
	WaitStopped
	// WaitContinued reports a stopped child being resumed.
	WaitContinued

	waitMaskAll = WaitExited | WaitSignaled | WaitStopped | WaitContinued
)

// String returns a human-readable representation of the mask.
func (m WaitMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&WaitExited != 0 {
		parts = append(parts, "exited")
	}
	if m&WaitSignaled != 0 {
		parts = append(parts, "signaled")
	}
	if m&WaitStopped != 0 {
		parts = append(parts, "stopped")
	}
	if m&WaitContinued != 0 {
		parts = append(parts, "continued")
	}
	if rest := m &^ waitMaskAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// ChildState is the kind of state change reported for a child.
type ChildState uint8

const (
	// ChildExited means the child exited normally, see [ChildInfo.ExitStatus].
	ChildExited ChildState = iota + 1
	// ChildSignaled means the child was terminated by [ChildInfo.Signal].
	ChildSignaled
	// ChildStopped means the child was stopped by [ChildInfo.Signal].
	ChildStopped
	// ChildContinued means the child was resumed.
	ChildContinued
)

// String returns a human-readable representation of the state.
func (c ChildState) String() string {
	switch c {
	case ChildExited:
		return "exited"
	case ChildSignaled:
		return "signaled"
	case ChildStopped:
		return "stopped"
	case ChildContinued:
		return "continued"
	default:
		return fmt.Sprintf("ChildState(%d)", uint8(c))
	}
}

// Terminated reports whether the child no longer exists. A terminated child
// has been reaped, and its source will not fire again.
func (c ChildState) Terminated() bool {
	return c == ChildExited || c == ChildSignaled
}

// ChildInfo describes a state change of a child process.
type ChildInfo struct {
	Pid   int
	State ChildState
	// ExitStatus is set for ChildExited.
	ExitStatus int
	// Signal is set for ChildSignaled and ChildStopped.
	Signal   syscall.Signal
	CoreDump bool
}

// waitStatus is implemented by both syscall.WaitStatus and unix.WaitStatus.
type waitStatus interface {
	Exited() bool
	ExitStatus() int
	Signaled() bool
	Signal() syscall.Signal
	CoreDump() bool
	Stopped() bool
	StopSignal() syscall.Signal
	Continued() bool
}

// childInfoFromStatus decodes a wait status. It returns false if the status
// is not one of the known state changes.
func childInfoFromStatus(pid int, status waitStatus) (ChildInfo, bool) {
	info := ChildInfo{Pid: pid}
	switch {
	case status.Exited():
		info.State = ChildExited
		info.ExitStatus = status.ExitStatus()
	case status.Signaled():
		info.State = ChildSignaled
		info.Signal = status.Signal()
		info.CoreDump = status.CoreDump()
	case status.Stopped():
		info.State = ChildStopped
		info.Signal = status.StopSignal()
	case status.Continued():
		info.State = ChildContinued
	default:
		return info, false
	}
	return info, true
}

func validWaitMask(mask WaitMask) error {
	if mask == 0 || mask&^waitMaskAll != 0 {
		return invalidArgument("wait mask must be a non-empty combination of known flags, got %v", mask)
	}
	return nil
}
