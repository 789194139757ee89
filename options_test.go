package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
)

func TestResolveOptions_Defaults(t *testing.T) {
	cfg, err := resolveOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.maxEvents != defaultMaxEvents {
		t.Errorf("expected %d max events, got %d", defaultMaxEvents, cfg.maxEvents)
	}
	if cfg.policy != AbortBatch {
		t.Errorf("expected AbortBatch, got %v", cfg.policy)
	}
	if _, ok := cfg.clock.(SystemClock); !ok {
		t.Errorf("expected SystemClock, got %T", cfg.clock)
	}
	if cfg.logger != nil || cfg.backend != nil {
		t.Error("expected no logger or backend")
	}
	if len(cfg.errorLogRate) == 0 {
		t.Error("expected a default error log rate")
	}
}

func TestResolveOptions(t *testing.T) {
	logger := logiface.New[logiface.Event]()
	clock := ClockFunc(func(ClockID) time.Time { return time.Time{} })
	cfg, err := resolveOptions([]Option{
		nil,
		WithLogger(logger),
		WithClock(clock),
		WithCallbackErrorPolicy(DisableSource),
		WithMaxEvents(16),
		WithErrorLogRate(map[time.Duration]int{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.logger != logger {
		t.Error("logger not applied")
	}
	if cfg.policy != DisableSource {
		t.Errorf("expected DisableSource, got %v", cfg.policy)
	}
	if cfg.maxEvents != 16 {
		t.Errorf("expected 16 max events, got %d", cfg.maxEvents)
	}
	if len(cfg.errorLogRate) != 0 {
		t.Error("expected rate limiting to be disabled")
	}
}

func TestResolveOptions_Invalid(t *testing.T) {
	for name, opt := range map[string]Option{
		"nil backend":    WithBackend(nil),
		"nil clock":      WithClock(nil),
		"unknown policy": WithCallbackErrorPolicy(CallbackErrorPolicy(9)),
		"zero events":    WithMaxEvents(0),
	} {
		opt := opt
		t.Run(name, func(t *testing.T) {
			if _, err := resolveOptions([]Option{opt}); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCallbackErrorPolicy_String(t *testing.T) {
	if AbortBatch.String() != "AbortBatch" || DisableSource.String() != "DisableSource" {
		t.Error("unexpected policy names")
	}
	if got := CallbackErrorPolicy(7).String(); got != "CallbackErrorPolicy(7)" {
		t.Errorf("unexpected %q", got)
	}
}
