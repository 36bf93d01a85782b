// Package libinput implements the input-only backend.Backend named in
// spec §4.8 "Input device enumeration": one device-add event per device
// found at Start, with capability bits and a stable sysname; no removal
// events are emitted. It dispatches no input events
// (spec §1 Non-goals: "seat input dispatch beyond device enumeration"),
// the same enumerate-and-signal shape as the DRM backend's connector
// hot-plug scan (spec §4.2).
package libinput

import (
	"os"
	"strings"

	"github.com/gviegas/kmscore/backend"
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
)

func init() {
	backend.Register("libinput", func(lib any) (backend.Backend, error) {
		return New(SysfsEnumerator{Dir: "/sys/class/input"}), nil
	})
}

// Enumerator lists the input devices currently present on the host. A
// real libinput integration (cgo, out of pack) implements this by
// wrapping libinput_get_event/LIBINPUT_EVENT_DEVICE_ADDED; tests and
// nested backends can substitute a fixed device list instead, the way
// session.Seat is substitutable for the privileged-fd source.
type Enumerator interface {
	Enumerate() ([]backend.InputDevice, error)
}

// SysfsEnumerator lists /sys/class/input/event* nodes and reports every
// one as pointer+keyboard (see classify); it inspects neither the device
// name nor the sysfs capability files. A coarse but dependency-free
// stand-in for libinput's own probing since no cgo libinput binding is
// in the retrieval pack.
type SysfsEnumerator struct {
	Dir string
}

func (e SysfsEnumerator) Enumerate() ([]backend.InputDevice, error) {
	entries, err := os.ReadDir(e.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var devs []backend.InputDevice
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		devs = append(devs, backend.InputDevice{Sysname: name, Caps: classify(name)})
	}
	return devs, nil
}

// classify is a placeholder: it ignores name and returns
// InputPointer|InputKeyboard for every device. The sibling
// "capabilities/*" sysfs files are not parsed.
func classify(name string) backend.InputCap {
	return backend.InputPointer | backend.InputKeyboard
}

// Backend enumerates input devices via an Enumerator and emits one
// NewInput event per device found, once, at Start.
type Backend struct {
	enum    Enumerator
	started bool

	newOutput event.Signal[*output.Output]
	newInput  event.Signal[backend.InputDevice]
}

// New returns a Backend driven by enum.
func New(enum Enumerator) *Backend { return &Backend{enum: enum} }

// Start enumerates every currently-present input device and emits
// NewInput for each (spec §4.8: "device add... events").
func (b *Backend) Start() bool {
	devs, err := b.enum.Enumerate()
	if err != nil {
		return false
	}
	b.started = true
	for _, d := range devs {
		b.newInput.Emit(d)
	}
	return true
}

// Destroy is a no-op: this backend holds no device fds of its own,
// only the enumeration snapshot.
func (b *Backend) Destroy() { b.started = false }

func (b *Backend) NewOutput() *event.Signal[*output.Output]    { return &b.newOutput }
func (b *Backend) NewInput() *event.Signal[backend.InputDevice] { return &b.newInput }

// DRMFD reports none: an input-only backend never owns a render node.
func (b *Backend) DRMFD() (int, bool) { return 0, false }

// BufferCaps reports none: an input-only backend produces no buffers.
func (b *Backend) BufferCaps() buffer.Caps { return 0 }

// PresentationClock reports none: input devices carry no presentation
// timeline.
func (b *Backend) PresentationClock() (backend.ClockID, bool) { return backend.ClockUnknown, false }
