//go:build darwin

package asyncrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// kqueueWatcher implements FdWatcher on Darwin via kqueue.
//
// PERFORMANCE: registration state lives in a map rather than a
// fixed array (unlike the Linux epoll adapter) since Darwin's default
// per-process fd limit is typically far lower and growth is cheap.
type kqueueWatcher struct { // betteralign:ignore
	_        [64]byte // cache line padding //nolint:unused
	kq       int32
	_        [60]byte // pad to cache line //nolint:unused
	eventBuf []unix.Kevent_t
	fds      map[int]uint8 // fd -> bitmask of registered directions
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

const (
	kqDirReadBit  = 1 << 0
	kqDirWriteBit = 1 << 1
)

func newKqueueWatcher(backlog int) (*kqueueWatcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueWatcher{kq: int32(kq), fds: make(map[int]uint8), eventBuf: make([]unix.Kevent_t, backlog)}, nil
}

func dirToKqFilter(dir Direction) int16 {
	if dir == DirWrite {
		return unix.EVFILT_WRITE
	}
	return unix.EVFILT_READ
}

func dirToKqBit(dir Direction) uint8 {
	if dir == DirWrite {
		return kqDirWriteBit
	}
	return kqDirReadBit
}

func (p *kqueueWatcher) Register(fd int, dir Direction) error {
	if p.closed.Load() {
		return errWatcherClosed
	}
	bit := dirToKqBit(dir)

	p.fdMu.Lock()
	if p.fds[fd]&bit != 0 {
		p.fdMu.Unlock()
		return &TypeError{Message: "asyncrt: fd already registered for that direction"}
	}
	p.fds[fd] |= bit
	p.fdMu.Unlock()

	kev := unix.Kevent_t{Ident: uint64(fd), Filter: dirToKqFilter(dir), Flags: unix.EV_ADD | unix.EV_ENABLE}
	_, err := unix.Kevent(int(p.kq), []unix.Kevent_t{kev}, nil, nil)
	if err != nil {
		p.fdMu.Lock()
		p.fds[fd] &^= bit
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *kqueueWatcher) Unregister(fd int, dir Direction) error {
	bit := dirToKqBit(dir)

	p.fdMu.Lock()
	if p.fds[fd]&bit == 0 {
		p.fdMu.Unlock()
		return nil
	}
	p.fds[fd] &^= bit
	if p.fds[fd] == 0 {
		delete(p.fds, fd)
	}
	p.fdMu.Unlock()

	kev := unix.Kevent_t{Ident: uint64(fd), Filter: dirToKqFilter(dir), Flags: unix.EV_DELETE}
	_, err := unix.Kevent(int(p.kq), []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueueWatcher) Poll(timeoutMs int) ([]WatchEvent, error) {
	if p.closed.Load() {
		return nil, errWatcherClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	out := make([]WatchEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		dir := DirRead
		if ev.Filter == unix.EVFILT_WRITE {
			dir = DirWrite
		}
		readiness := Ready
		if ev.Flags&unix.EV_ERROR != 0 {
			readiness = BadFd
		}
		out = append(out, WatchEvent{FdID: fd, Dir: dir, Readiness: readiness})
	}
	return out, nil
}

func (p *kqueueWatcher) Close() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

// newPlatformWatcher returns the Darwin FdWatcher implementation.
func newPlatformWatcher(backlog int) (FdWatcher, error) {
	return newKqueueWatcher(backlog)
}
