//go:build windows

package asyncrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

// maxWatchedFDsWindows is the maximum handle value supported with direct
// array indexing, mirroring the Linux epoll watcher's fixed layout.
const maxWatchedFDsWindows = 65536

const (
	winDirReadBit  uint8 = 1 << 0
	winDirWriteBit uint8 = 1 << 1
)

// iocpWatcher implements FdWatcher on Windows via an I/O completion port.
//
// This is a shape-complete adapter rather than a fully general IOCP
// driver: the runtime's Fd model (explicit readiness subscriptions
// surfaced through Poll) maps onto IOCP's completion-packet model by
// associating each handle with the port on first registration and
// calling GetQueuedCompletionStatus once per Poll (one packet per call),
// matching the
// registration/poll shape the Linux and Darwin adapters share.
type iocpWatcher struct { // betteralign:ignore
	_      [64]byte // cache line padding //nolint:unused
	iocp   windows.Handle
	_      [56]byte // pad to cache line //nolint:unused
	fds    [maxWatchedFDsWindows]watchedFdWin
	fdMu   sync.RWMutex
	closed atomic.Bool
}

type watchedFdWin struct {
	mask  uint8
	valid bool
}

// newIOCPWatcher creates the completion port. backlog has no effect here:
// GetQueuedCompletionStatus drains one packet per call rather than a
// batch, unlike the epoll/kqueue adapters' array-backed Poll.
func newIOCPWatcher(backlog int) (*iocpWatcher, error) {
	_ = backlog
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &iocpWatcher{iocp: iocp}, nil
}

func dirToWinBit(dir Direction) uint8 {
	if dir == DirWrite {
		return winDirWriteBit
	}
	return winDirReadBit
}

func (p *iocpWatcher) Register(fd int, dir Direction) error {
	if p.closed.Load() {
		return errWatcherClosed
	}
	if fd < 0 || fd >= maxWatchedFDsWindows {
		return &RangeError{Message: "asyncrt: fd out of range for iocp watcher"}
	}

	bit := dirToWinBit(dir)

	p.fdMu.Lock()
	cur := p.fds[fd]
	if cur.valid && cur.mask&bit != 0 {
		p.fdMu.Unlock()
		return &TypeError{Message: "asyncrt: fd already registered for that direction"}
	}
	if !cur.valid {
		if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.iocp, 0, 0); err != nil {
			p.fdMu.Unlock()
			return err
		}
	}
	p.fds[fd] = watchedFdWin{mask: cur.mask | bit, valid: true}
	p.fdMu.Unlock()
	return nil
}

func (p *iocpWatcher) Unregister(fd int, dir Direction) error {
	if fd < 0 || fd >= maxWatchedFDsWindows {
		return &RangeError{Message: "asyncrt: fd out of range for iocp watcher"}
	}
	bit := dirToWinBit(dir)

	p.fdMu.Lock()
	defer p.fdMu.Unlock()
	cur := p.fds[fd]
	if !cur.valid || cur.mask&bit == 0 {
		return nil
	}
	newMask := cur.mask &^ bit
	if newMask == 0 {
		p.fds[fd] = watchedFdWin{}
		return nil
	}
	p.fds[fd] = watchedFdWin{mask: newMask, valid: true}
	return nil
}

// Poll drains queued completion packets, blocking for up to timeoutMs.
//
// NOTE: this stub reports readiness by presence of a completion packet
// for a given handle, rather than decoding OVERLAPPED-per-direction
// bookkeeping — a real production build would carry per-operation
// OVERLAPPED buffers keyed by direction; this is deliberately the
// thinnest adapter that exercises the IOCP surface and satisfies
// FdWatcher's contract on the platform this module does not primarily
// target.
func (p *iocpWatcher) Poll(timeoutMs int) ([]WatchEvent, error) {
	if p.closed.Load() {
		return nil, errWatcherClosed
	}

	ms := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		ms = uint32(timeoutMs)
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, ms)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return nil, nil
		}
		return nil, err
	}
	if overlapped == nil {
		return nil, nil
	}

	fd := int(key)
	p.fdMu.RLock()
	cur := p.fds[fd]
	p.fdMu.RUnlock()
	if !cur.valid {
		return nil, nil
	}

	out := make([]WatchEvent, 0, 2)
	if cur.mask&winDirReadBit != 0 {
		out = append(out, WatchEvent{FdID: fd, Dir: DirRead, Readiness: Ready})
	}
	if cur.mask&winDirWriteBit != 0 {
		out = append(out, WatchEvent{FdID: fd, Dir: DirWrite, Readiness: Ready})
	}
	return out, nil
}

func (p *iocpWatcher) Close() error {
	p.closed.Store(true)
	if p.iocp != 0 {
		return windows.CloseHandle(p.iocp)
	}
	return nil
}

// newPlatformWatcher returns the Windows FdWatcher implementation.
func newPlatformWatcher(backlog int) (FdWatcher, error) {
	return newIOCPWatcher(backlog)
}
