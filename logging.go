package reactor

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// newErrorLimiter builds the limiter used for callback failure warnings. An
// empty rates map disables limiting.
func newErrorLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter = nil
			err = invalidArgument("error log rate: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// logFields attaches the identifying fields of the source.
func (s *Source) logFields(b *logiface.Builder[logiface.Event]) {
	b.Uint64("source", s.id).
		Str("kind", s.kind.String())
	switch s.kind {
	case KindIO:
		b.Int("fd", s.fd).Str("events", s.events.String())
	case KindTimerMonotonic, KindTimerRealtime:
		b.Time("deadline", s.deadline)
	case KindSignal:
		b.Int("signal", int(s.signal))
	case KindChild:
		b.Int("pid", s.pid).Str("wait_mask", s.waitMask.String())
	}
	if s.priority != 0 {
		b.Int("priority", s.priority)
	}
	if s.description != "" {
		b.Str("description", s.description)
	}
}

func (r *Reactor) logAdded(s *Source) {
	r.logger.Debug().
		Call(s.logFields).
		Log("source added")
}

func (r *Reactor) logReleased(s *Source) {
	r.logger.Debug().
		Call(s.logFields).
		Log("source released")
}

func (r *Reactor) logDispatch(s *Source) {
	r.logger.Trace().
		Call(s.logFields).
		Str("mute", s.mute.String()).
		Log("dispatching source")
}

// logCallbackError reports a failed callback. Warnings are rate limited per
// source, since a failing source will typically fail on every iteration.
func (r *Reactor) logCallbackError(e *CallbackError, disabled bool) {
	if !disabled {
		r.logger.Debug().
			Call(e.Source.logFields).
			Str("phase", e.Phase.String()).
			Err(e.Err).
			Log("callback failed, aborting batch")
		return
	}
	b := r.logger.Warning()
	if !b.Enabled() {
		return
	}
	if _, ok := r.limiter.Allow(e.Source.id); !ok {
		b.Release()
		return
	}
	b.Call(e.Source.logFields).
		Str("phase", e.Phase.String()).
		Err(e.Err).
		Log("callback failed, source muted")
}

// logOSError reports a failure of an OS call that is not returned to a
// caller, e.g. while releasing a source.
func (r *Reactor) logOSError(op string, err error, s *Source) {
	b := r.logger.Err()
	if !b.Enabled() {
		return
	}
	if s != nil {
		b.Call(s.logFields)
	}
	b.Str("op", op).
		Err(err).
		Log(op + " failed")
}
