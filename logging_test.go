//go:build linux || darwin

package reactor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(buf)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// logLines decodes the JSON lines written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		lines = append(lines, m)
	}
	return lines
}

func filterMsg(lines []map[string]any, msg string) []map[string]any {
	var out []map[string]any
	for _, m := range lines {
		if m["msg"] == msg {
			out = append(out, m)
		}
	}
	return out
}

func TestLogging_Lifecycle(t *testing.T) {
	var buf bytes.Buffer
	r := testNew(t, WithLogger(newTestLogger(&buf, logiface.LevelTrace)))

	s, err := r.AddDefer(nopDefer)
	require.NoError(t, err)
	require.NoError(t, s.SetDescription("tick"))
	require.NoError(t, s.SetPriority(3))
	_, err = r.Run(0)
	require.NoError(t, err)
	require.NoError(t, s.Unref())

	lines := logLines(t, &buf)
	require.Len(t, filterMsg(lines, "reactor created"), 1)
	require.Len(t, filterMsg(lines, "source added"), 1)

	dispatched := filterMsg(lines, "dispatching source")
	require.Len(t, dispatched, 1)
	assert.Equal(t, "defer", dispatched[0]["kind"])
	assert.Equal(t, "tick", dispatched[0]["description"])
	assert.Equal(t, "Active", dispatched[0]["mute"])

	released := filterMsg(lines, "source released")
	require.Len(t, released, 1)
	assert.Equal(t, "1", released[0]["source"])
}

func TestLogging_DisabledSourceRateLimited(t *testing.T) {
	var buf bytes.Buffer
	r := testNew(t,
		WithLogger(newTestLogger(&buf, logiface.LevelWarning)),
		WithCallbackErrorPolicy(DisableSource),
		WithErrorLogRate(map[time.Duration]int{time.Hour: 1}),
	)

	s, err := r.AddDefer(func(*Source) error { return errors.New("nope") })
	require.NoError(t, err)
	defer s.Unref()

	for i := 0; i < 3; i++ {
		n, err := r.Run(0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, MuteMuted, s.Mute())
		require.NoError(t, s.SetMute(MuteActive))
	}
	assert.Equal(t, uint64(3), r.Stats().CallbackErrors)

	warnings := filterMsg(logLines(t, &buf), "callback failed, source muted")
	require.Len(t, warnings, 1)
	assert.Equal(t, "warning", warnings[0]["lvl"])
	assert.Equal(t, "dispatch", warnings[0]["phase"])
	assert.Equal(t, "nope", warnings[0]["err"])
}

func TestLogging_RateLimitDisabled(t *testing.T) {
	var buf bytes.Buffer
	r := testNew(t,
		WithLogger(newTestLogger(&buf, logiface.LevelWarning)),
		WithCallbackErrorPolicy(DisableSource),
		WithErrorLogRate(nil),
	)
	assert.Nil(t, r.limiter)

	s, err := r.AddDefer(func(*Source) error { return errors.New("nope") })
	require.NoError(t, err)
	defer s.Unref()

	for i := 0; i < 3; i++ {
		_, err := r.Run(0)
		require.NoError(t, err)
		require.NoError(t, s.SetMute(MuteActive))
	}
	assert.Len(t, filterMsg(logLines(t, &buf), "callback failed, source muted"), 3)
}

func TestNewErrorLimiter_Invalid(t *testing.T) {
	_, err := New(WithErrorLogRate(map[time.Duration]int{-time.Second: 1}))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLogging_NilLogger(t *testing.T) {
	r := testNew(t, WithCallbackErrorPolicy(DisableSource))
	s, err := r.AddDefer(func(*Source) error { panic("ignored") })
	require.NoError(t, err)
	defer s.Unref()

	n, err := r.Run(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, MuteMuted, s.Mute())
}
