package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// signalBuffer is the capacity of each os/signal channel. Deliveries of the
// same signal coalesce anyway, so a small buffer is enough.
const signalBuffer = 8

// signalNotifier carries signal deliveries into the reactor's wait.
//
// Each watched signal has its own os/signal channel and forwarding goroutine,
// so that stopping one never resets the disposition of another. Forwarders
// append to a mutex guarded queue, then write the wake fd, which the reactor
// watches through its backend like any other fd.
type signalNotifier struct {
	watches map[syscall.Signal]*signalWatch
	queue   []syscall.Signal
	drained []syscall.Signal
	mu      sync.Mutex
	wg      sync.WaitGroup
	buf     [8]byte
	readFD  int
	writeFD int
}

type signalWatch struct {
	ch   chan os.Signal
	stop chan struct{}
	refs int
}

func newSignalNotifier() (*signalNotifier, error) {
	readFD, writeFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &signalNotifier{
		watches: make(map[syscall.Signal]*signalWatch),
		readFD:  readFD,
		writeFD: writeFD,
	}, nil
}

// watch subscribes to sig. Calls are counted, and must be balanced by unwatch.
func (n *signalNotifier) watch(sig syscall.Signal) {
	if w, ok := n.watches[sig]; ok {
		w.refs++
		return
	}
	w := &signalWatch{
		ch:   make(chan os.Signal, signalBuffer),
		stop: make(chan struct{}),
		refs: 1,
	}
	n.watches[sig] = w
	signal.Notify(w.ch, sig)
	n.wg.Add(1)
	go n.forward(sig, w)
}

// unwatch drops one subscription to sig, restoring its default disposition
// once none remain. Deliveries already queued are still reported by drain.
func (n *signalNotifier) unwatch(sig syscall.Signal) {
	w, ok := n.watches[sig]
	if !ok {
		return
	}
	w.refs--
	if w.refs > 0 {
		return
	}
	delete(n.watches, sig)
	signal.Stop(w.ch)
	close(w.stop)
}

// watching reports whether sig is subscribed.
func (n *signalNotifier) watching(sig syscall.Signal) bool {
	_, ok := n.watches[sig]
	return ok
}

func (n *signalNotifier) forward(sig syscall.Signal, w *signalWatch) {
	defer n.wg.Done()
	for {
		select {
		case <-w.ch:
			n.mu.Lock()
			n.queue = append(n.queue, sig)
			n.mu.Unlock()
			writeWake(n.writeFD)
		case <-w.stop:
			return
		}
	}
}

// drain consumes the wake fd, then returns every queued delivery, in order.
// The result is only valid until the next call.
func (n *signalNotifier) drain() []syscall.Signal {
	// the fd must be drained first: a delivery queued after that point will
	// write it again
	drainWake(n.readFD, n.buf[:])
	n.mu.Lock()
	n.queue, n.drained = n.drained[:0], n.queue
	n.mu.Unlock()
	return n.drained
}

// close stops every subscription, waits for the forwarders and closes the
// wake fd.
func (n *signalNotifier) close() {
	for sig, w := range n.watches {
		delete(n.watches, sig)
		signal.Stop(w.ch)
		close(w.stop)
	}
	n.wg.Wait()
	closeWake(n.readFD, n.writeFD)
}
