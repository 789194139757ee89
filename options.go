// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// CallbackErrorPolicy controls what happens when a callback returns a non-nil
// error, or panics.
type CallbackErrorPolicy uint8

const (
	// AbortBatch stops dispatching the remainder of the current batch, and
	// returns a [CallbackError] from Run or Loop. Effects of callbacks that
	// already completed are kept. This is the default.
	AbortBatch CallbackErrorPolicy = iota
	// DisableSource mutes the failing source, logs a (rate limited) warning,
	// and continues with the rest of the batch.
	DisableSource
)

// String returns a human-readable representation of the policy.
func (p CallbackErrorPolicy) String() string {
	switch p {
	case AbortBatch:
		return "AbortBatch"
	case DisableSource:
		return "DisableSource"
	default:
		return fmt.Sprintf("CallbackErrorPolicy(%d)", uint8(p))
	}
}

// defaultMaxEvents is the size of the backend event buffer.
const defaultMaxEvents = 256

// reactorOptions holds configuration options for Reactor creation.
type reactorOptions struct {
	logger       *logiface.Logger[logiface.Event]
	backend      Backend
	clock        Clock
	errorLogRate map[time.Duration]int
	maxEvents    int
	policy       CallbackErrorPolicy
}

// --- Reactor Options ---

// Option configures a Reactor instance.
type Option interface {
	applyReactor(*reactorOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyReactorFunc func(*reactorOptions) error
}

func (o *optionImpl) applyReactor(opts *reactorOptions) error {
	return o.applyReactorFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithBackend replaces the OS readiness backend (see [NewBackend]). The
// reactor takes ownership, and will close it.
func WithBackend(backend Backend) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if backend == nil {
			return invalidArgument("nil backend")
		}
		opts.backend = backend
		return nil
	}}
}

// WithClock replaces the clock used to evaluate timer deadlines.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if clock == nil {
			return invalidArgument("nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithCallbackErrorPolicy sets the policy applied when a callback fails.
func WithCallbackErrorPolicy(policy CallbackErrorPolicy) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		switch policy {
		case AbortBatch, DisableSource:
		default:
			return invalidArgument("unknown callback error policy %d", uint8(policy))
		}
		opts.policy = policy
		return nil
	}}
}

// WithMaxEvents sets how many backend events may be received per wait.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if n <= 0 {
			return invalidArgument("max events must be positive, got %d", n)
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithErrorLogRate sets the sliding windows used to rate limit warnings
// about failing callbacks, per source. See catrate.NewLimiter for the
// format. An empty map disables rate limiting.
func WithErrorLogRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		opts.errorLogRate = rates
		return nil
	}}
}

// resolveOptions applies Option instances to reactorOptions.
func resolveOptions(opts []Option) (*reactorOptions, error) {
	cfg := &reactorOptions{
		clock:     SystemClock{},
		maxEvents: defaultMaxEvents,
		errorLogRate: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyReactor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
