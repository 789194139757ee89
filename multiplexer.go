package reactor

import (
	"time"
)

// waitTimeout computes how long the next wait may block, given the caller's
// remaining bound (negative for none). It is zero whenever something is
// already pending, a defer source is armed or children must be polled, and
// otherwise bounded by the nearest armed timer.
func (r *Reactor) waitTimeout(bound time.Duration) time.Duration {
	if r.npending > 0 || r.childScan || bound == 0 {
		return 0
	}

	timeout := bound
	var snap clockSnapshot
	for _, s := range r.reg.slots {
		if s.pending || !s.active() {
			continue
		}
		switch s.kind {
		case KindDefer:
			return 0
		case KindTimerMonotonic, KindTimerRealtime:
			if !snap.valid {
				snap.take(r.clock)
			}
			d := snap.until(s.Clock(), s.deadline)
			if timeout < 0 || d < timeout {
				timeout = d
			}
		}
	}
	return timeout
}

// poll blocks in the backend for at most timeout, then marks every source
// that became ready as pending. Interrupted waits are retried with the
// remaining time.
func (r *Reactor) poll(timeout time.Duration) error {
	var start time.Time
	if timeout > 0 {
		start = r.clock.Now(Monotonic)
	}
	for {
		n, err := r.backend.Wait(timeout, r.events)
		if err != nil {
			if isInterrupted(err) {
				if timeout > 0 {
					timeout = max(0, timeout-r.clock.Now(Monotonic).Sub(start))
				}
				continue
			}
			err = osError("wait", err)
			r.logger.Err().
				Err(err).
				Log("backend wait failed")
			return err
		}
		r.stats.Iterations++
		if n > 0 {
			r.stats.Wakeups++
		}
		r.now.take(r.clock)
		r.collect(r.events[:n])
		return nil
	}
}

// collect marks ready sources as pending.
func (r *Reactor) collect(events []BackendEvent) {
	for _, ev := range events {
		if ev.FD == r.signals.readFD {
			r.deliverSignals()
			continue
		}
		for _, s := range r.reg.byFD[ev.FD] {
			if !s.active() {
				continue
			}
			if got := ev.Events & (s.events | EventError | EventHangup); got != 0 {
				s.revents |= got
				r.markPending(s)
			}
		}
	}

	if r.childScan {
		r.childScan = false
		r.scanChildren()
	}

	for _, s := range r.reg.slots {
		if s.pending || !s.active() {
			continue
		}
		switch s.kind {
		case KindDefer:
			r.markPending(s)
		case KindTimerMonotonic, KindTimerRealtime:
			if r.now.expired(s.Clock(), s.deadline) {
				r.markPending(s)
			}
		}
	}
}

// deliverSignals matches queued signal deliveries to sources. Deliveries for
// muted or released sources are discarded.
func (r *Reactor) deliverSignals() {
	for _, sig := range r.signals.drain() {
		if sig == sigChild {
			r.childScan = true
		}
		s, ok := r.reg.bySignal[sig]
		if !ok || !s.active() {
			continue
		}
		s.sigInfo.Signal = sig
		s.sigInfo.Count++
		r.markPending(s)
	}
}

// scanChildren polls every armed child source.
func (r *Reactor) scanChildren() {
	for _, s := range r.reg.slots {
		if s.kind != KindChild || s.pending || s.reaped || !s.active() {
			continue
		}
		info, ok, err := waitChild(s.pid, s.waitMask)
		if err != nil {
			// typically ECHILD, the pid is not a child, or was already reaped
			s.reaped = true
			r.logOSError("wait4", err, s)
			continue
		}
		if !ok {
			continue
		}
		if info.State.Terminated() {
			s.reaped = true
		}
		s.childInfo = info
		r.markPending(s)
	}
}
