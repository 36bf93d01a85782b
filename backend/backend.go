// Package backend abstracts acquisition of displays and input devices
// behind a uniform event stream, regardless of whether the host is
// bare-metal KMS, a nested Wayland/X11 window, or headless (spec §2
// L2, §4.1 "Backend and Multi-Backend").
package backend

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
)

// ErrUnavailable is returned by a Factory when its backend kind cannot
// be used on the current host (e.g. no Wayland socket, no DRM render
// nodes).
var ErrUnavailable = errors.New("backend: unavailable on this host")

// ErrSessionTimeout is returned by Autocreate's DRM path when the seat
// session does not become active within the 10s bound (spec §4.1
// "Autocreate contract": "failure to become active is fatal for the
// DRM path only").
var ErrSessionTimeout = errors.New("backend: session did not become active in time")

// ClockID names the clock domain backing a backend's presentation
// timestamps (spec §3.1 "Presentation-clock identifiers").
type ClockID int

const (
	ClockUnknown ClockID = iota
	ClockMonotonic
	ClockHardware
)

// InputCap is a bitfield of the device classes an InputDevice may
// report, matching the capability bits libinput itself exposes (spec
// §4.8 "Input device enumeration").
type InputCap uint

const (
	InputPointer InputCap = 1 << iota
	InputKeyboard
	InputTouch
	InputTablet
	InputSwitch
)

// InputDevice is the enumeration-only record a Backend emits on
// NewInput: a stable name and its capability bits. Dispatching actual
// input events is a named non-goal (spec §1 "seat input dispatch
// beyond device enumeration"); a compositor wires its own seat/input
// stack on top of this handle.
type InputDevice struct {
	Sysname string
	Caps    InputCap
}

// Backend presents two event streams (new input device, new output)
// and a start/destroy lifecycle, with a few capabilities that only
// some backend kinds support (spec §4.1 "Responsibility").
type Backend interface {
	// Start begins emitting events. It returns false if the backend
	// could not initialize (the caller should not call Destroy in
	// that case: Start leaves the Backend in its pre-start state).
	Start() bool

	// Destroy tears the backend down. Idempotent.
	Destroy()

	// NewOutput is emitted once per display the backend discovers,
	// including every display already present when Start is called.
	NewOutput() *event.Signal[*output.Output]

	// NewInput is emitted once per input device the backend discovers.
	NewInput() *event.Signal[InputDevice]

	// DRMFD returns the render-node fd backing this backend, if any.
	DRMFD() (fd int, ok bool)

	// BufferCaps reports which buffer backing representations this
	// backend's outputs can scan out or import.
	BufferCaps() buffer.Caps

	// PresentationClock reports the clock domain this backend
	// timestamps present events against, if known.
	PresentationClock() (ClockID, bool)
}

// baseBackend implements the signal plumbing and capability defaults
// every concrete Backend embeds, the way output.Output centralizes its
// own signal fields rather than each caller wiring its own.
type baseBackend struct {
	newOutput event.Signal[*output.Output]
	newInput  event.Signal[InputDevice]
}

func (b *baseBackend) NewOutput() *event.Signal[*output.Output] { return &b.newOutput }
func (b *baseBackend) NewInput() *event.Signal[InputDevice]     { return &b.newInput }

// Multi aggregates several backends into one, exposing the union of
// their events (spec §4.1 "Multi exposes the union of its children's
// events; destroying it destroys all children").
type Multi struct {
	baseBackend
	children []Backend
	primary  Backend // the first DRM sub-backend added, if any
}

// NewMulti returns an empty Multi ready for Add.
func NewMulti() *Multi { return &Multi{} }

// Add attaches child to m, forwarding its future events into m's own
// signals. isDRM marks child as a DRM sub-backend for primary-GPU
// bookkeeping (spec §4.1 "the first one designated primary").
func (m *Multi) Add(child Backend, isDRM bool) {
	m.children = append(m.children, child)
	if isDRM && m.primary == nil {
		m.primary = child
	}
	child.NewOutput().Connect(func(o *output.Output) { m.newOutput.Emit(o) })
	child.NewInput().Connect(func(d InputDevice) { m.newInput.Emit(d) })
}

// Children returns m's constituent backends in the order they were
// added.
func (m *Multi) Children() []Backend {
	out := make([]Backend, len(m.children))
	copy(out, m.children)
	return out
}

// Primary returns the first DRM sub-backend added to m, or nil if none
// (spec §4.3 "Multi-GPU": the non-primary ones blit to it).
func (m *Multi) Primary() Backend { return m.primary }

// Start starts every child, including those after one that fails, and
// reports false if any child failed to start; children that did start
// are left running since partial output availability is still useful
// to the caller (a real multi-GPU boot continues with whichever GPUs
// came up).
func (m *Multi) Start() bool {
	ok := true
	for _, c := range m.children {
		if !c.Start() {
			ok = false
		}
	}
	return ok
}

// Destroy destroys every child backend.
func (m *Multi) Destroy() {
	for _, c := range m.children {
		c.Destroy()
	}
}

// DRMFD returns the primary DRM sub-backend's fd, if any.
func (m *Multi) DRMFD() (int, bool) {
	if m.primary == nil {
		return 0, false
	}
	return m.primary.DRMFD()
}

// BufferCaps returns the union of every child's buffer capabilities.
func (m *Multi) BufferCaps() buffer.Caps {
	var caps buffer.Caps
	for _, c := range m.children {
		caps |= c.BufferCaps()
	}
	return caps
}

// PresentationClock returns the primary DRM sub-backend's clock, if
// any, else the first child that reports one.
func (m *Multi) PresentationClock() (ClockID, bool) {
	if m.primary != nil {
		if id, ok := m.primary.PresentationClock(); ok {
			return id, true
		}
	}
	for _, c := range m.children {
		if id, ok := c.PresentationClock(); ok {
			return id, true
		}
	}
	return ClockUnknown, false
}

// Factory constructs one named backend kind for the BACKENDS env list
// and the Autocreate fallback ladder. lib carries the logger/config a
// concrete backend needs; it is typed as any here to avoid an import
// cycle with the top-level Library handle, and type-asserted by each
// Factory to the concrete config it expects.
type Factory func(lib any) (Backend, error)

var factories = make(map[string]Factory)

// Register records factory under name for BACKENDS env parsing and
// Autocreate probing (mirrors the teacher's driver.Register/Drivers
// pattern: concrete backend packages call this from an init so that
// only imported backends are ever considered).
func Register(name string, factory Factory) {
	factories[name] = factory
}

// lookup returns the factory registered under name, if any.
func lookup(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// AutocreateEnv is the host environment Autocreate consults, injected
// so tests do not depend on process-wide env vars.
type AutocreateEnv struct {
	Backends          string // $BACKENDS, comma-separated
	WaylandDisplay    string // $WAYLAND_DISPLAY
	X11Display        string // $DISPLAY
	NoInputDevices    bool   // $NO_INPUT_DEVICES set
	SessionWait       time.Duration
	Logger            *log.Logger
}

// EnvFromProcess reads AutocreateEnv from the real process
// environment (spec §4.1 "Autocreate contract", §6 env var table).
func EnvFromProcess() AutocreateEnv {
	_, noInput := os.LookupEnv("NO_INPUT_DEVICES")
	return AutocreateEnv{
		Backends:       os.Getenv("BACKENDS"),
		WaylandDisplay: os.Getenv("WAYLAND_DISPLAY"),
		X11Display:     os.Getenv("DISPLAY"),
		NoInputDevices: noInput,
		SessionWait:    10 * time.Second,
	}
}

// Autocreate chooses a backend per the precedence order in
// spec §4.1 "Autocreate contract": an explicit $BACKENDS list, else
// nested-Wayland if available, else nested-X11 if available, else a
// session-backed DRM Multi with an optional libinput sub-backend.
// The returned backend is not started; the caller calls Start on it.
// lib is passed through to every Factory (see Factory's doc).
func Autocreate(env AutocreateEnv, lib any) (Backend, error) {
	logger := env.Logger
	if logger == nil {
		logger = log.Default()
	}

	if env.Backends != "" {
		m := NewMulti()
		for _, name := range strings.Split(env.Backends, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			factory, ok := lookup(name)
			if !ok {
				return nil, fmt.Errorf("backend: unknown backend %q in BACKENDS", name)
			}
			b, err := factory(lib)
			if err != nil {
				return nil, fmt.Errorf("backend: starting %q: %w", name, err)
			}
			m.Add(b, name == "drm")
		}
		logger.Printf("backend: BACKENDS=%q aggregated into Multi", env.Backends)
		return m, nil
	}

	if env.WaylandDisplay != "" {
		if factory, ok := lookup("wayland"); ok {
			if b, err := factory(lib); err == nil {
				logger.Print("backend: nested Wayland display found, using it")
				return b, nil
			} else if !errors.Is(err, ErrUnavailable) {
				return nil, err
			}
		}
	}

	if env.X11Display != "" {
		if factory, ok := lookup("x11"); ok {
			if b, err := factory(lib); err == nil {
				logger.Print("backend: nested X11 display found, using it")
				return b, nil
			} else if !errors.Is(err, ErrUnavailable) {
				return nil, err
			}
		}
	}

	return autocreateDRM(env, lib, logger)
}

// sessionWaiter is the narrow interface a Factory-provided session
// handle implements for the DRM fallback's activation wait, avoiding
// an import of the concrete session package from this file.
type sessionWaiter interface {
	WaitActiveTimeout(d time.Duration) error
}

// autocreateDRM drives the session+libinput+per-GPU DRM path (spec
// §4.1 step 4). drmFactory is expected to return a *Multi (or a single
// Backend) aggregating one sub-backend per probed GPU, with session
// activation already awaited by the time it returns a non-error
// result; this function performs the bounded wait itself when the
// returned backend also implements sessionWaiter so the 10s bound is
// enforced uniformly regardless of how a concrete drmbackend chooses
// to expose its session.
func autocreateDRM(env AutocreateEnv, lib any, logger *log.Logger) (Backend, error) {
	m := NewMulti()

	if !env.NoInputDevices {
		if factory, ok := lookup("libinput"); ok {
			if b, err := factory(lib); err == nil {
				m.Add(b, false)
			} else if !errors.Is(err, ErrUnavailable) {
				logger.Printf("backend: libinput probe failed: %v", err)
			}
		}
	}

	factory, ok := lookup("drm")
	if !ok {
		return nil, fmt.Errorf("backend: no drm backend registered")
	}
	b, err := factory(lib)
	if err != nil {
		return nil, fmt.Errorf("backend: drm: %w", err)
	}
	if sw, ok := b.(sessionWaiter); ok {
		wait := env.SessionWait
		if wait <= 0 {
			wait = 10 * time.Second
		}
		if err := sw.WaitActiveTimeout(wait); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionTimeout, err)
		}
	}
	m.Add(b, true)
	return m, nil
}
