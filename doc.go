// Package reactor provides a single-threaded event reactor, multiplexing
// file descriptor readiness, timers on the monotonic and realtime clocks,
// signal delivery, child process state changes and deferred work into one
// priority ordered dispatch loop.
//
// # Sources
//
// Each registration returns a [Source], holding one caller reference:
//   - [Reactor.AddIO]: readiness of a file descriptor
//   - [Reactor.AddTimer], [Reactor.AddMonotonic], [Reactor.AddRealtime]: a deadline
//   - [Reactor.AddSignal]: delivery of a signal, taken over using os/signal
//   - [Reactor.AddChild]: state changes of a child process, using wait4
//   - [Reactor.AddDefer]: every iteration
//
// A source is configured with [Source.SetPriority] (lower values dispatch
// first, ties in registration order), [Source.SetMute] and
// [Source.SetPrepare]. Dropping the last reference with [Source.Unref]
// releases it, which is safe from within any callback.
//
// # Execution Model
//
// Each iteration:
//  1. Prepare callbacks run, in dispatch order.
//  2. The reactor waits in its [Backend] (epoll on Linux, kqueue on Darwin),
//     bounded by the nearest timer, and not at all if anything is pending.
//  3. Ready sources are marked pending.
//  4. One batch is dispatched: the pending sources sharing the lowest
//     priority value, in order.
//
// [Reactor.Run] performs one iteration, waiting again if a wake-up produced
// nothing to dispatch. [Reactor.Loop] repeats until [Reactor.RequestQuit] is
// observed, after a batch.
//
// # Mute States
//
//   - [MuteActive]: dispatched whenever ready
//   - [MuteOneShot]: dispatched once, becoming [MuteMuted] before the callback
//   - [MuteMuted]: never dispatched, readiness is drained
//
// # Thread Safety
//
// None. A reactor, and its sources, must only be used from the goroutine
// driving it. Callbacks run to completion on that goroutine, and may not call
// [Reactor.Run] or [Reactor.Loop] ([ErrReentrant]).
//
// # Usage
//
//	r, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	_, err = r.AddMonotonic(time.Now().Add(100*time.Millisecond), func(s *reactor.Source, deadline time.Time) error {
//	    fmt.Println("Hello after 100ms")
//	    return s.Reactor().RequestQuit(0)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	code, err := r.Loop()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("exit code", code)
//
// # Error Types
//
//   - [IOError]: failure of the backend, or another OS call
//   - [CallbackError]: a callback returned an error, or panicked ([PanicError])
//   - [ErrInvalidArgument], [ErrResourceExhausted]: registration failures
package reactor
