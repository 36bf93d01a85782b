package session

import "golang.org/x/sys/unix"

// StubSeat is a Seat that opens device nodes directly with unix.Open
// and is always active, for callers that do not need a real logind
// session to acquire device fds (spec §2 L2: only the DRM backend
// goes through a privileged seat in the strict sense).
type StubSeat struct{}

func (StubSeat) OpenDevice(path string) (fd int, paused bool, err error) {
	fd, err = unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, false, err
	}
	return fd, false, nil
}

func (StubSeat) CloseDevice(fd int) error { return unix.Close(fd) }

func (StubSeat) Active() bool { return true }

func (StubSeat) Close() error { return nil }
