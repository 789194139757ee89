package reactor

// prepare invokes the prepare callbacks, in dispatch order, from a snapshot
// taken before the first is called. Sources muted or released by an earlier
// callback of the same phase are skipped.
func (r *Reactor) prepare() error {
	r.prepared = prepareOrder(r.reg.slots, r.prepared)
	if len(r.prepared) == 0 {
		return nil
	}
	defer clear(r.prepared)

	r.dispatching = true
	defer func() { r.dispatching = false }()

	for _, s := range r.prepared {
		if s.prepare == nil || !s.active() {
			continue
		}
		r.stats.Prepared++
		fn := s.prepare
		if err := r.safeInvoke(func() error { return fn(s) }); err != nil {
			if err := r.callbackFailed(s, PhasePrepare, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch invokes the callbacks of one batch, see nextBatch. It returns the
// number of callbacks invoked.
func (r *Reactor) dispatch() (int, error) {
	r.batch = nextBatch(r.reg.slots, r.batch)
	defer clear(r.batch)

	r.state = StateDispatching
	r.dispatching = true
	start := r.clock.Now(Monotonic)
	defer func() {
		r.dispatching = false
		r.state = StateRunning
		r.latency.record(r.clock.Now(Monotonic).Sub(start))
	}()

	var n int
	for _, s := range r.batch {
		// released, muted or re-armed by an earlier callback of this batch
		if !s.pending || !s.active() {
			continue
		}

		// cleared before muting, so the fired data stays readable by the
		// callback until it returns
		s.pending = false
		r.npending--

		if s.mute == MuteOneShot {
			s.mute = MuteMuted
			if err := r.rearm(s); err != nil {
				r.logOSError("mute source", err, s)
			}
		}

		n++
		r.stats.Dispatched++
		r.logDispatch(s)

		err := r.safeInvoke(func() error { return s.handler.invoke(s) })

		s.resetFired()
		if s.kind == KindChild && !s.reaped && s.active() {
			r.childScan = true
		}

		if err != nil {
			if err := r.callbackFailed(s, PhaseDispatch, err); err != nil {
				r.stats.LastBatch = n
				return n, err
			}
		}
	}
	r.stats.LastBatch = n
	return n, nil
}

// safeInvoke calls fn, converting a panic into a [PanicError].
func (r *Reactor) safeInvoke(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = PanicError{Value: v}
		}
	}()
	return fn()
}
