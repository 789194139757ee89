package reactor

import (
	"fmt"
	"strconv"
	"syscall"
	"time"
)

// Kind identifies what a [Source] watches.
type Kind uint8

const (
	// KindIO watches a file descriptor for readiness.
	KindIO Kind = iota
	// KindTimerMonotonic fires once a deadline on the [Monotonic] clock passes.
	KindTimerMonotonic
	// KindTimerRealtime fires once a deadline on the [Realtime] clock passes.
	KindTimerRealtime
	// KindSignal fires on delivery of a signal.
	KindSignal
	// KindChild fires on a state change of a child process.
	KindChild
	// KindDefer fires on every iteration of the reactor.
	KindDefer
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTimerMonotonic:
		return "timer-monotonic"
	case KindTimerRealtime:
		return "timer-realtime"
	case KindSignal:
		return "signal"
	case KindChild:
		return "child"
	case KindDefer:
		return "defer"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) timer() bool {
	return k == KindTimerMonotonic || k == KindTimerRealtime
}

// MuteState controls whether a ready [Source] is dispatched.
type MuteState uint8

const (
	// MuteActive sources are dispatched whenever they are ready.
	MuteActive MuteState = iota
	// MuteOneShot sources are dispatched once, then become [MuteMuted]. The
	// transition happens before the callback is invoked.
	MuteOneShot
	// MuteMuted sources are never dispatched. Their readiness is drained: IO
	// interest is dropped, delivered signals are discarded, timers and
	// children are not considered.
	MuteMuted
)

// String returns a human-readable representation of the mute state.
func (m MuteState) String() string {
	switch m {
	case MuteActive:
		return "Active"
	case MuteOneShot:
		return "OneShot"
	case MuteMuted:
		return "Muted"
	default:
		return fmt.Sprintf("MuteState(%d)", uint8(m))
	}
}

// SignalInfo describes the delivery of a signal to a signal source.
type SignalInfo struct {
	Signal syscall.Signal
	// Count is the number of deliveries coalesced into this dispatch.
	Count int
}

type (
	// IOHandler is called when an IO source is ready. The revents are those
	// received since the last dispatch, and may include [EventError] or
	// [EventHangup] even if not requested.
	IOHandler func(s *Source, fd int, revents IOEvents) error

	// TimerHandler is called once the deadline of a timer source has passed.
	// An active timer stays ready until its deadline is moved, or it is muted
	// or released.
	TimerHandler func(s *Source, deadline time.Time) error

	// SignalHandler is called after delivery of the watched signal.
	SignalHandler func(s *Source, info SignalInfo) error

	// ChildHandler is called after a state change of the watched child.
	ChildHandler func(s *Source, info ChildInfo) error

	// DeferHandler is called on every iteration, until muted or released.
	DeferHandler func(s *Source) error

	// PrepareHandler is called before each wait, see [Source.SetPrepare].
	PrepareHandler func(s *Source) error
)

// callback is the uniform view of the per-kind handlers held by a source.
type callback interface {
	invoke(s *Source) error
}

func (h IOHandler) invoke(s *Source) error     { return h(s, s.fd, s.revents) }
func (h TimerHandler) invoke(s *Source) error  { return h(s, s.deadline) }
func (h SignalHandler) invoke(s *Source) error { return h(s, s.sigInfo) }
func (h ChildHandler) invoke(s *Source) error  { return h(s, s.childInfo) }
func (h DeferHandler) invoke(s *Source) error  { return h(s) }

// Source is a registered unit of interest, returned by the Add methods of
// [Reactor]. The caller owns one reference, dropped using [Source.Unref].
//
// Sources are not safe for concurrent use, and must only be used from the
// goroutine driving the reactor.
type Source struct {
	reactor     *Reactor
	handler     callback
	prepare     PrepareHandler
	description string
	deadline    time.Time
	childInfo   ChildInfo
	sigInfo     SignalInfo
	id          uint64
	fd          int
	pid         int
	priority    int
	refs        int
	signal      syscall.Signal
	events      IOEvents
	revents     IOEvents
	kind        Kind
	mute        MuteState
	waitMask    WaitMask

	// held is the reactor's internal reference, dropped on compaction
	held bool
	// detached is set once OS resources tied to the source are released
	detached bool
	pending  bool
	// reaped is set once the child terminated, or can no longer be waited on
	reaped bool
}

// ID returns the identity of the source, which is also its registration
// sequence within the reactor.
func (s *Source) ID() uint64 { return s.id }

// Kind returns what the source watches.
func (s *Source) Kind() Kind { return s.kind }

// Priority returns the dispatch priority, lower values first.
func (s *Source) Priority() int { return s.priority }

// Mute returns the current mute state.
func (s *Source) Mute() MuteState { return s.mute }

// Enabled reports whether the source is still registered, i.e. it has not
// been released, and the reactor has not been closed.
func (s *Source) Enabled() bool { return !s.detached }

// Refs returns the number of caller references.
func (s *Source) Refs() int { return s.refs }

// Pending reports whether the source is ready, awaiting dispatch.
func (s *Source) Pending() bool { return s.pending }

// Reactor returns the reactor the source belongs to.
func (s *Source) Reactor() *Reactor { return s.reactor }

// Description returns the description set using [Source.SetDescription].
func (s *Source) Description() string { return s.description }

// FD returns the file descriptor of an IO source, or -1.
func (s *Source) FD() int {
	if s.kind != KindIO {
		return -1
	}
	return s.fd
}

// IOEvents returns the requested events of an IO source.
func (s *Source) IOEvents() IOEvents { return s.events }

// Signal returns the signal watched by a signal source.
func (s *Source) Signal() syscall.Signal { return s.signal }

// Pid returns the process watched by a child source, or 0.
func (s *Source) Pid() int { return s.pid }

// WaitMask returns the state changes watched by a child source.
func (s *Source) WaitMask() WaitMask { return s.waitMask }

// Deadline returns the deadline of a timer source.
func (s *Source) Deadline() time.Time { return s.deadline }

// Clock returns the clock of a timer source. It is meaningless for other kinds.
func (s *Source) Clock() ClockID {
	if s.kind == KindTimerRealtime {
		return Realtime
	}
	return Monotonic
}

// String identifies the source in errors and logs.
func (s *Source) String() string {
	if s == nil {
		return "source(nil)"
	}
	b := make([]byte, 0, 48)
	b = append(b, "source("...)
	b = strconv.AppendUint(b, s.id, 10)
	b = append(b, ' ')
	b = append(b, s.kind.String()...)
	switch s.kind {
	case KindIO:
		b = append(b, " fd="...)
		b = strconv.AppendInt(b, int64(s.fd), 10)
	case KindSignal:
		b = append(b, " sig="...)
		b = strconv.AppendInt(b, int64(s.signal), 10)
	case KindChild:
		b = append(b, " pid="...)
		b = strconv.AppendInt(b, int64(s.pid), 10)
	}
	if s.description != "" {
		b = append(b, ' ')
		b = strconv.AppendQuote(b, s.description)
	}
	b = append(b, ')')
	return string(b)
}

// usable guards every mutating operation.
func (s *Source) usable() error {
	if s.refs <= 0 {
		return ErrSourceReleased
	}
	if s.reactor.closed {
		return ErrReactorClosed
	}
	return nil
}

// active reports whether the source may become pending.
func (s *Source) active() bool {
	return !s.detached && s.mute != MuteMuted
}

// Ref adds a caller reference.
func (s *Source) Ref() error {
	if s.refs <= 0 {
		return ErrSourceReleased
	}
	s.refs++
	return nil
}

// Unref drops a caller reference. Dropping the last one releases the source:
// it is detached from every OS resource, will never be dispatched again, and
// is removed from the reactor once the current batch finishes. It is safe to
// call from any callback, including the source's own.
func (s *Source) Unref() error {
	if s.refs <= 0 {
		return ErrSourceReleased
	}
	s.refs--
	if s.refs == 0 {
		s.reactor.release(s)
	}
	return nil
}

// SetPriority sets the dispatch priority. Lower values are dispatched first,
// and sources of equal priority are dispatched in registration order.
func (s *Source) SetPriority(priority int) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.priority = priority
	return nil
}

// SetMute sets the mute state. Setting [MuteOneShot] re-arms the source.
func (s *Source) SetMute(state MuteState) error {
	if err := s.usable(); err != nil {
		return err
	}
	switch state {
	case MuteActive, MuteOneShot, MuteMuted:
	default:
		return invalidArgument("unknown mute state %d", uint8(state))
	}
	if state == s.mute {
		return nil
	}
	prev := s.mute
	s.mute = state
	if err := s.reactor.rearm(s); err != nil {
		s.mute = prev
		return err
	}
	return nil
}

// SetPrepare sets the callback invoked before each wait, while the source is
// enabled and not muted. A nil handler clears it.
func (s *Source) SetPrepare(h PrepareHandler) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.prepare = h
	return nil
}

// SetTimerDeadline moves the deadline of a timer source. A pending expiry is
// discarded.
func (s *Source) SetTimerDeadline(deadline time.Time) error {
	if err := s.usable(); err != nil {
		return err
	}
	if !s.kind.timer() {
		return invalidArgument("%s is not a timer", s)
	}
	s.deadline = deadline
	s.reactor.clearPending(s)
	return nil
}

// SetIOEvents replaces the requested events of an IO source.
func (s *Source) SetIOEvents(events IOEvents) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.kind != KindIO {
		return invalidArgument("%s is not an io source", s)
	}
	if err := validIOEvents(events); err != nil {
		return err
	}
	if events == s.events {
		return nil
	}
	prev := s.events
	s.events = events
	if err := s.reactor.syncFD(s.fd); err != nil {
		s.events = prev
		return err
	}
	return nil
}

// SetDescription attaches a description, used in logs and errors.
func (s *Source) SetDescription(description string) error {
	if s.refs <= 0 {
		return ErrSourceReleased
	}
	s.description = description
	return nil
}

// resetFired drops the readiness data of the last dispatch.
func (s *Source) resetFired() {
	s.revents = 0
	s.sigInfo = SignalInfo{}
	s.childInfo = ChildInfo{}
}

func validIOEvents(events IOEvents) error {
	if events == 0 || events&^interestMask != 0 {
		return invalidArgument("io events must be a non-empty combination of read and write, got %v", events)
	}
	return nil
}
