//go:build darwin

package reactor

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend implements [Backend] using kqueue (Darwin).
//
// A single fd may be reported twice per wait, once per filter, which the
// reactor merges.
type kqueueBackend struct {
	fds      map[int]IOEvents
	eventBuf []unix.Kevent_t
	kq       int
	closed   bool
}

// NewBackend returns the native [Backend] for the current platform.
func NewBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, osError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:  kq,
		fds: make(map[int]IOEvents),
	}, nil
}

func (p *kqueueBackend) Add(fd int, events IOEvents) error {
	if p.closed {
		return ErrReactorClosed
	}
	if _, ok := p.fds[fd]; ok {
		return unix.EEXIST
	}
	if kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}
	p.fds[fd] = events
	return nil
}

func (p *kqueueBackend) Modify(fd int, events IOEvents) error {
	if p.closed {
		return ErrReactorClosed
	}
	oldEvents, ok := p.fds[fd]
	if !ok {
		return unix.ENOENT
	}

	if oldEvents&^events != 0 {
		if delKevents := eventsToKevents(fd, oldEvents&^events, unix.EV_DELETE); len(delKevents) > 0 {
			_, _ = unix.Kevent(p.kq, delKevents, nil, nil) // Ignore errors
		}
	}

	if events&^oldEvents != 0 {
		if addKevents := eventsToKevents(fd, events&^oldEvents, unix.EV_ADD|unix.EV_ENABLE); len(addKevents) > 0 {
			if _, err := unix.Kevent(p.kq, addKevents, nil, nil); err != nil {
				return err
			}
		}
	}

	p.fds[fd] = events
	return nil
}

func (p *kqueueBackend) Remove(fd int) error {
	if p.closed {
		return ErrReactorClosed
	}
	events, ok := p.fds[fd]
	if !ok {
		return unix.ENOENT
	}
	delete(p.fds, fd)
	if kevents := eventsToKevents(fd, events, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil) // Ignore errors on delete
	}
	return nil
}

func (p *kqueueBackend) Wait(timeout time.Duration, events []BackendEvent) (int, error) {
	if p.closed {
		return 0, ErrReactorClosed
	}
	if len(p.eventBuf) < len(events) {
		p.eventBuf = make([]unix.Kevent_t, len(events))
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(int64(timeout))
		ts = &spec
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:len(events)], ts)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = BackendEvent{
			FD:     int(p.eventBuf[i].Ident),
			Events: keventToEvents(&p.eventBuf[i]),
		}
	}
	return n, nil
}

func (p *kqueueBackend) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.fds = nil
	return unix.Close(p.kq)
}

// eventsToKevents converts IOEvents to kqueue kevent structures.
func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t

	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}

	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}

	return kevents
}

// keventToEvents converts kqueue event to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}

func isExistErr(err error) bool {
	return errors.Is(err, unix.EEXIST)
}

func isNotExistErr(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF)
}
