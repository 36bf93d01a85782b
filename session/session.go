// Package session acquires privileged file descriptors for DRM and
// input devices from the host seat (logind-like interface), and
// signals the core when the seat becomes active or inactive (spec
// §2 L1, §4.2 "On session resume").
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gviegas/kmscore/internal/event"
)

// ErrSeatUnavailable is returned by Open when no seat backend (logind,
// direct-VT, or a stub for headless testing) could be reached.
var ErrSeatUnavailable = errors.New("session: no seat backend available")

// ErrTimeout is returned by WaitActive when the seat has not become
// active within the deadline.
var ErrTimeout = errors.New("session: timed out waiting for active seat")

// Seat is the privileged-fd backend a Session wraps: logind over
// D-Bus, a direct VT ioctl path, or a no-op stub for headless/nested
// backends that never need real device fds.
type Seat interface {
	// OpenDevice opens path and returns a privileged fd plus whether
	// the device is currently paused by the seat.
	OpenDevice(path string) (fd int, paused bool, err error)
	// CloseDevice releases a previously opened fd.
	CloseDevice(fd int) error
	// Active reports whether this seat currently holds the VT.
	Active() bool
	// Close releases the seat connection.
	Close() error
}

// Session tracks seat activation state and fans out pause/resume
// notifications to the backends that opened devices through it (spec
// §4.2 "On session resume").
type Session struct {
	mu     sync.Mutex
	seat   Seat
	log    *log.Logger
	active bool

	// ActiveSignal fires with the new active state whenever the seat
	// transitions; VT-switch handling subscribes here.
	ActiveSignal event.Signal[bool]

	waiters []chan struct{}
}

// Open connects to seat and returns a Session tracking its initial
// activation state.
func Open(seat Seat, logger *log.Logger) (*Session, error) {
	if seat == nil {
		return nil, ErrSeatUnavailable
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Session{seat: seat, log: logger, active: seat.Active()}, nil
}

// Active reports the last known seat activation state.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive updates the tracked activation state and emits
// ActiveSignal on a transition. Called by the VT-switch signal
// handler when the kernel notifies the process via SIGUSR1/SIGUSR2 or
// the logind PropertiesChanged signal (wiring left to the caller's
// event-loop integration; this package only tracks the resulting
// boolean).
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	changed := active != s.active
	s.active = active
	waiters := s.waiters
	if active {
		s.waiters = nil
	}
	s.mu.Unlock()

	if changed {
		s.log.Printf("session: active=%v", active)
		s.ActiveSignal.Emit(active)
	}
	if active {
		for _, w := range waiters {
			close(w)
		}
	}
}

// WaitActive blocks until the session becomes active or ctx expires,
// dispatching ctx's deadline as the up-to-10s bound named in spec
// §4.1 "Autocreate contract" (the caller supplies that bound via
// ctx; this function does not hardcode it so tests can use a much
// shorter one).
func (s *Session) WaitActive(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// OpenDevice opens path through the seat backend; if the seat rejects
// it, the seat's own error is returned wrapped with the path.
func (s *Session) OpenDevice(path string) (fd int, paused bool, err error) {
	fd, paused, err = s.seat.OpenDevice(path)
	if err != nil {
		return -1, false, fmt.Errorf("session: open %s: %w", path, err)
	}
	return fd, paused, nil
}

// CloseDevice releases fd back to the seat.
func (s *Session) CloseDevice(fd int) error {
	return s.seat.CloseDevice(fd)
}

// Close tears down the seat connection.
func (s *Session) Close() error {
	return s.seat.Close()
}

// WaitActiveTimeout is a convenience wrapper around WaitActive using
// a plain duration instead of a context, for the common "block up to
// N seconds" call site (spec §4.1: "up to 10s").
func (s *Session) WaitActiveTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.WaitActive(ctx)
}
