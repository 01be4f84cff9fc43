//go:build windows

package asyncrt

import "golang.org/x/sys/windows"

// createWakeFd returns -1, -1: Windows has no wake descriptor, so
// Scheduler.wake does nothing there and a blocked Poll returns only when
// a completion arrives or its timeout expires. wakeIOCP below is not
// called anywhere in the package.
func createWakeFd() (int, int, error) {
	return -1, -1, nil
}

func closeWakeFd(wakeFd, wakeWriteFd int) error {
	return nil
}

func drainWakeFd(fd int) error {
	return nil
}

func writeWakeFd(fd int) error {
	return nil
}

// wakeIOCP posts a NULL completion to iocp, causing a blocked
// GetQueuedCompletionStatus to return immediately with a nil overlapped.
func wakeIOCP(iocp windows.Handle) error {
	return windows.PostQueuedCompletionStatus(iocp, 0, 0, nil)
}
