//go:build linux || darwin

package asyncrt

import (
	"golang.org/x/sys/unix"
)

// closeRawFD closes a raw file descriptor on Unix systems.
func closeRawFD(fd int) error {
	return unix.Close(fd)
}

// readRawFD reads from a raw file descriptor on Unix systems.
func readRawFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeRawFD writes to a raw file descriptor on Unix systems.
func writeRawFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// setNonblock sets or clears O_NONBLOCK on a raw file descriptor.
func setNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}
