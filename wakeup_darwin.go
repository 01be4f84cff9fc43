//go:build darwin

package asyncrt

import (
	"syscall"
)

// createWakeFd creates a self-pipe for cross-goroutine wake-up
// notifications. Returns the read end and the write end.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	cleanup := func() {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	if err := syscall.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

// closeWakeFd closes the pipe's read and write fds.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = syscall.Close(wakeFd)
	}
	if wakeWriteFd >= 0 && wakeWriteFd != wakeFd {
		_ = syscall.Close(wakeWriteFd)
	}
	return nil
}

// drainWakeFd drains every pending wake-up posted to fd.
func drainWakeFd(fd int) error {
	var buf [64]byte
	for {
		_, err := syscall.Read(fd, buf[:])
		if err != nil {
			return nil
		}
	}
}

// writeWakeFd posts one wake-up to fd.
func writeWakeFd(fd int) error {
	_, err := syscall.Write(fd, []byte{1})
	return err
}
