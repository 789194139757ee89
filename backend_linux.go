//go:build linux

package reactor

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend implements [Backend] using epoll (Linux).
//
// It is level-triggered, which is what lets a muted IO source be drained
// simply by dropping its interest: the fd no longer wakes the wait.
type epollBackend struct {
	fds      map[int]IOEvents
	eventBuf []unix.EpollEvent
	epfd     int
	closed   bool
}

// NewBackend returns the native [Backend] for the current platform.
func NewBackend() (Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, osError("epoll_create1", err)
	}
	return &epollBackend{
		epfd: epfd,
		fds:  make(map[int]IOEvents),
	}, nil
}

func (p *epollBackend) Add(fd int, events IOEvents) error {
	if p.closed {
		return ErrReactorClosed
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = events
	return nil
}

func (p *epollBackend) Modify(fd int, events IOEvents) error {
	if p.closed {
		return ErrReactorClosed
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = events
	return nil
}

func (p *epollBackend) Remove(fd int) error {
	if p.closed {
		return ErrReactorClosed
	}
	delete(p.fds, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollBackend) Wait(timeout time.Duration, events []BackendEvent) (int, error) {
	if p.closed {
		return 0, ErrReactorClosed
	}
	if len(p.eventBuf) < len(events) {
		p.eventBuf = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:len(events)], timeoutMillis(timeout))
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = BackendEvent{
			FD:     int(p.eventBuf[i].Fd),
			Events: epollToEvents(p.eventBuf[i].Events),
		}
	}
	return n, nil
}

func (p *epollBackend) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.fds = nil
	return unix.Close(p.epfd)
}

// eventsToEpoll converts IOEvents to epoll event flags.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}

// isExistErr reports whether an Add failed because the fd is already watched.
func isExistErr(err error) bool {
	return errors.Is(err, unix.EEXIST)
}

// isNotExistErr reports whether a Modify or Remove failed because the fd is
// not watched, e.g. because it was closed, which drops it from epoll.
func isNotExistErr(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF)
}
