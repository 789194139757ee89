package reactor

import (
	"syscall"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Infinite may be passed to [Reactor.Run] to wait without a bound.
const Infinite time.Duration = -1

// maxSignal is the largest valid signal number.
const maxSignal = 64

// Reactor is a single-threaded event reactor, dispatching callbacks for file
// descriptor readiness, timers, signals, child processes and deferred work,
// in priority order.
//
// A Reactor is not safe for concurrent use. All methods, and all methods of
// its sources, must be called from the goroutine driving it (including from
// within callbacks).
type Reactor struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	backend Backend
	clock   Clock
	signals *signalNotifier

	// fdInterest mirrors the events registered with the backend, per fd
	fdInterest map[int]IOEvents
	events     []BackendEvent
	batch      []*Source
	prepared   []*Source

	reg     registry
	now     clockSnapshot
	latency latencyRecorder
	stats   Stats
	quit    quitController

	refs     int
	npending int
	policy   CallbackErrorPolicy
	state    ReactorState

	// childScan requests a poll of every child source after the next wait
	childScan bool
	// dispatching is set while any callback is running
	dispatching bool
	closed      bool
}

// New creates a reactor, with one reference held by the caller.
func New(opts ...Option) (*Reactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newErrorLimiter(cfg.errorLogRate)
	if err != nil {
		return nil, err
	}

	backend := cfg.backend
	if backend == nil {
		if backend, err = NewBackend(); err != nil {
			return nil, err
		}
	}

	signals, err := newSignalNotifier()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	if err := backend.Add(signals.readFD, EventRead); err != nil {
		signals.close()
		_ = backend.Close()
		return nil, osError("watch signal fd", err)
	}

	r := &Reactor{
		logger:     cfg.logger,
		limiter:    limiter,
		backend:    backend,
		clock:      cfg.clock,
		signals:    signals,
		fdInterest: make(map[int]IOEvents),
		events:     make([]BackendEvent, cfg.maxEvents),
		reg:        newRegistry(),
		refs:       1,
		policy:     cfg.policy,
	}

	r.logger.Debug().
		Int("max_events", cfg.maxEvents).
		Str("policy", cfg.policy.String()).
		Log("reactor created")

	return r, nil
}

// Ref adds a reference to the reactor.
func (r *Reactor) Ref() {
	r.refs++
}

// Unref drops a reference to the reactor, closing it once none remain.
func (r *Reactor) Unref() error {
	if r.refs <= 0 {
		return ErrReactorClosed
	}
	if r.refs == 1 {
		if err := r.Close(); err != nil {
			return err
		}
	}
	r.refs--
	return nil
}

// Close releases every source and the OS resources of the reactor. Sources
// keep their caller references, but are no longer enabled. It is idempotent,
// and may not be called from within a callback.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	if r.dispatching {
		return ErrReentrant
	}
	r.closed = true
	for _, s := range r.reg.slots {
		r.detach(s)
	}
	r.reg.compact()
	r.signals.close()
	err := r.backend.Close()
	r.logger.Debug().Log("reactor closed")
	return err
}

// State returns the lifecycle state.
func (r *Reactor) State() ReactorState {
	return r.state
}

// Now returns the time of the last wake-up on the given clock, i.e. the time
// against which timers were last evaluated. Before the first wait, it
// returns the current time.
func (r *Reactor) Now(clock ClockID) time.Time {
	if r.now.valid && clock.valid() {
		return r.now.times[clock]
	}
	return r.clock.Now(clock)
}

// RequestQuit makes [Reactor.Loop] return code once the current batch is
// complete. A later request replaces the code. It has no effect on
// [Reactor.Run].
func (r *Reactor) RequestQuit(code int) error {
	if r.closed {
		return ErrReactorClosed
	}
	if r.state == StateFinished {
		return ErrFinished
	}
	r.quit.request(code)
	r.logger.Debug().
		Int("code", code).
		Log("quit requested")
	return nil
}

// QuitRequested returns whether a quit was requested, and the code.
func (r *Reactor) QuitRequested() (bool, int) {
	return r.quit.requested, r.quit.code
}

// Stats returns a snapshot of runtime statistics.
func (r *Reactor) Stats() Stats {
	stats := r.stats
	stats.Sources = r.reg.len()
	stats.Pending = r.npending
	stats.Latency = r.latency.summary()
	return stats
}

// --- Registration ---

func (r *Reactor) checkAdd(hasHandler bool) error {
	if r.closed {
		return ErrReactorClosed
	}
	if r.state == StateFinished {
		return ErrFinished
	}
	if !hasHandler {
		return invalidArgument("nil handler")
	}
	return nil
}

// AddIO watches fd for the given events, which must be a combination of
// [EventRead] and [EventWrite]. Several sources may watch the same fd. The
// reactor never closes fd, and a source must be released before its fd is
// closed.
func (r *Reactor) AddIO(fd int, events IOEvents, h IOHandler) (*Source, error) {
	if err := r.checkAdd(h != nil); err != nil {
		return nil, err
	}
	if fd < 0 {
		return nil, invalidArgument("negative fd %d", fd)
	}
	if fd == r.signals.readFD {
		return nil, invalidArgument("fd %d is reserved", fd)
	}
	if err := validIOEvents(events); err != nil {
		return nil, err
	}
	if err := r.applyFD(fd, r.reg.fdInterest(fd)|events); err != nil {
		return nil, err
	}
	s := r.newSource(KindIO, h)
	s.fd = fd
	s.events = events
	r.reg.insert(s)
	r.logAdded(s)
	return s, nil
}

// AddTimer adds a timer that becomes ready once deadline passes on clock.
// The zero deadline is always expired.
func (r *Reactor) AddTimer(clock ClockID, deadline time.Time, h TimerHandler) (*Source, error) {
	if err := r.checkAdd(h != nil); err != nil {
		return nil, err
	}
	var kind Kind
	switch clock {
	case Monotonic:
		kind = KindTimerMonotonic
	case Realtime:
		kind = KindTimerRealtime
	default:
		return nil, invalidArgument("unknown clock %v", clock)
	}
	s := r.newSource(kind, h)
	s.deadline = deadline
	r.reg.insert(s)
	r.logAdded(s)
	return s, nil
}

// AddMonotonic is AddTimer(Monotonic, deadline, h).
func (r *Reactor) AddMonotonic(deadline time.Time, h TimerHandler) (*Source, error) {
	return r.AddTimer(Monotonic, deadline, h)
}

// AddRealtime is AddTimer(Realtime, deadline, h).
func (r *Reactor) AddRealtime(deadline time.Time, h TimerHandler) (*Source, error) {
	return r.AddTimer(Realtime, deadline, h)
}

// AddSignal takes over delivery of sig, using os/signal. At most one source
// may watch a given signal. Releasing the source restores the default
// behavior of sig, unless a child source still requires SIGCHLD.
func (r *Reactor) AddSignal(sig syscall.Signal, h SignalHandler) (*Source, error) {
	if err := r.checkAdd(h != nil); err != nil {
		return nil, err
	}
	if sig <= 0 || sig > maxSignal {
		return nil, invalidArgument("signal %d out of range", int(sig))
	}
	if !catchable(sig) {
		return nil, invalidArgument("signal %v cannot be caught", sig)
	}
	if other, ok := r.reg.bySignal[sig]; ok {
		return nil, invalidArgument("signal %v already watched by %s", sig, other)
	}
	r.signals.watch(sig)
	s := r.newSource(KindSignal, h)
	s.signal = sig
	r.reg.insert(s)
	r.logAdded(s)
	return s, nil
}

// AddChild watches the child process pid for the state changes in mask.
// Termination is always reported, and reaps the child, after which the
// source never fires again. At most one source may watch a given pid, and
// the process must not be waited on by anything else (e.g. os.Process.Wait).
func (r *Reactor) AddChild(pid int, mask WaitMask, h ChildHandler) (*Source, error) {
	if err := r.checkAdd(h != nil); err != nil {
		return nil, err
	}
	if sigChild == 0 {
		return nil, ErrUnsupported
	}
	if pid <= 0 {
		return nil, invalidArgument("invalid pid %d", pid)
	}
	if err := validWaitMask(mask); err != nil {
		return nil, err
	}
	if other, ok := r.reg.byPid[pid]; ok {
		return nil, invalidArgument("pid %d already watched by %s", pid, other)
	}
	r.signals.watch(sigChild)
	s := r.newSource(KindChild, h)
	s.pid = pid
	s.waitMask = mask
	r.reg.insert(s)
	// the child may have changed state before SIGCHLD was subscribed
	r.childScan = true
	r.logAdded(s)
	return s, nil
}

// AddDefer adds a source that is ready on every iteration, typically set to
// [MuteOneShot] to run once.
func (r *Reactor) AddDefer(h DeferHandler) (*Source, error) {
	if err := r.checkAdd(h != nil); err != nil {
		return nil, err
	}
	s := r.newSource(KindDefer, h)
	r.reg.insert(s)
	r.logAdded(s)
	return s, nil
}

func (r *Reactor) newSource(kind Kind, h callback) *Source {
	return &Source{
		reactor: r,
		handler: h,
		kind:    kind,
		refs:    1,
		fd:      -1,
	}
}

// --- Source state ---

func (r *Reactor) markPending(s *Source) {
	if !s.pending {
		s.pending = true
		r.npending++
	}
}

func (r *Reactor) clearPending(s *Source) {
	if s.pending {
		s.pending = false
		r.npending--
		s.resetFired()
	}
}

// release is called once the last caller reference to s is dropped.
func (r *Reactor) release(s *Source) {
	if s.detached {
		return
	}
	r.detach(s)
	r.logReleased(s)
}

// detach releases the OS resources tied to s and tombstones it. It happens
// exactly once per source.
func (r *Reactor) detach(s *Source) {
	if s.detached {
		return
	}
	s.detached = true
	r.clearPending(s)
	r.reg.unindex(s)
	switch s.kind {
	case KindIO:
		if !r.closed {
			if err := r.syncFD(s.fd); err != nil {
				r.logOSError("unwatch fd", err, s)
			}
		}
	case KindSignal:
		r.signals.unwatch(s.signal)
	case KindChild:
		r.signals.unwatch(sigChild)
	}
}

// rearm applies a change of mute state.
func (r *Reactor) rearm(s *Source) error {
	if s.mute == MuteMuted {
		r.clearPending(s)
	}
	switch s.kind {
	case KindIO:
		return r.syncFD(s.fd)
	case KindChild:
		if s.mute != MuteMuted {
			r.childScan = true
		}
	}
	return nil
}

// syncFD updates the backend interest of fd to the union of its sources.
func (r *Reactor) syncFD(fd int) error {
	return r.applyFD(fd, r.reg.fdInterest(fd))
}

func (r *Reactor) applyFD(fd int, events IOEvents) error {
	current, registered := r.fdInterest[fd]
	switch {
	case events == 0:
		if !registered {
			return nil
		}
		delete(r.fdInterest, fd)
		// a closed fd has already left the backend
		if err := r.backend.Remove(fd); err != nil && !isNotExistErr(err) {
			return osError("unwatch fd", err)
		}
		return nil

	case !registered:
		err := r.backend.Add(fd, events)
		if err != nil && isExistErr(err) {
			err = r.backend.Modify(fd, events)
		}
		if err != nil {
			return osError("watch fd", err)
		}

	case current != events:
		err := r.backend.Modify(fd, events)
		if err != nil && isNotExistErr(err) {
			err = r.backend.Add(fd, events)
		}
		if err != nil {
			return osError("watch fd", err)
		}

	default:
		return nil
	}
	r.fdInterest[fd] = events
	return nil
}

// --- Run and Loop ---

// enter guards the entry points.
func (r *Reactor) enter() error {
	switch {
	case r.closed:
		return ErrReactorClosed
	case r.dispatching:
		return ErrReentrant
	case r.state == StateFinished:
		return ErrFinished
	}
	if r.state == StateInitial {
		r.state = StateRunning
	}
	return nil
}

// Run performs one iteration: it runs the prepare callbacks, waits for at
// most timeout ([Infinite] for no bound) until a source is ready, then
// dispatches one batch, the pending sources sharing the lowest priority
// value. Pending sources of other priorities are left for later calls.
//
// It returns the number of callbacks dispatched, or 0 if timeout elapsed
// first. A callback error aborts the rest of the batch, and is returned as a
// [*CallbackError], unless the [DisableSource] policy is in effect.
//
// A quit request has no effect on Run.
func (r *Reactor) Run(timeout time.Duration) (int, error) {
	if err := r.enter(); err != nil {
		return 0, err
	}
	return r.iterate(timeout)
}

// Loop runs iterations until a quit is requested, checked after each batch,
// then returns the requested code. After that the reactor is finished, and
// Run and Loop return [ErrFinished]. On error, Loop returns immediately, and
// may be called again.
func (r *Reactor) Loop() (int, error) {
	if err := r.enter(); err != nil {
		return 0, err
	}
	for !r.quit.requested {
		if _, err := r.iterate(Infinite); err != nil {
			return 0, err
		}
	}
	r.state = StateQuitting
	r.logger.Debug().
		Int("code", r.quit.code).
		Log("loop quitting")
	r.state = StateFinished
	return r.quit.code, nil
}

// iterate runs prepare, wait and collect until something is pending or the
// bound elapses, then dispatches one batch.
func (r *Reactor) iterate(timeout time.Duration) (int, error) {
	r.reg.compact()
	defer r.reg.compact()

	var start time.Time
	if timeout > 0 {
		start = r.clock.Now(Monotonic)
	}
	for {
		if err := r.prepare(); err != nil {
			return 0, err
		}

		wait := timeout
		if timeout > 0 {
			wait -= r.clock.Now(Monotonic).Sub(start)
			if wait < 0 {
				wait = 0
			}
		}
		if err := r.poll(r.waitTimeout(wait)); err != nil {
			return 0, err
		}

		if r.npending > 0 {
			return r.dispatch()
		}
		if timeout == 0 || (timeout > 0 && r.clock.Now(Monotonic).Sub(start) >= timeout) {
			return 0, nil
		}
	}
}

// callbackFailed applies the error policy to a failed callback. It returns
// the error to surface, or nil if the batch may continue.
func (r *Reactor) callbackFailed(s *Source, phase CallbackPhase, err error) error {
	r.stats.CallbackErrors++
	e := &CallbackError{Source: s, Phase: phase, Err: err}
	if r.policy != DisableSource {
		r.logCallbackError(e, false)
		return e
	}
	if !s.detached && s.mute != MuteMuted {
		s.mute = MuteMuted
		if err := r.rearm(s); err != nil {
			r.logOSError("mute source", err, s)
		}
	}
	r.logCallbackError(e, true)
	return nil
}
