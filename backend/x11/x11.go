// Package x11 implements the nested-X11 backend.Backend named in spec
// §2 L2 "nested (Wayland/X11 window)": a single top-level window on an
// existing X server, presented as one Output whose commits are
// blitted into the window with core-protocol PutImage requests.
//
// Only the core X11 protocol is used (github.com/jezek/xgb and its
// xproto subpackage); the MIT-SHM extension is deliberately avoided
// since this module has no reference usage of its wire format to
// build against.
package x11

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/gviegas/kmscore/alloc/shm"
	"github.com/gviegas/kmscore/backend"
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
)

func init() {
	backend.Register("x11", func(lib any) (backend.Backend, error) {
		return New(Config{})
	})
}

// Config sizes the window this backend creates.
type Config struct {
	Width, Height int // defaults to 1280x720
}

// Backend owns one X connection and one top-level window, presented
// as a single Output (spec §4.1 "nested backend kinds present exactly
// the outputs their host window system gives them").
type Backend struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	win    xproto.Window
	gc     xproto.Gcontext
	wmDeleteWindow xproto.Atom

	output *output.Output

	started bool
	done    chan struct{}

	newOutput event.Signal[*output.Output]
	newInput  event.Signal[backend.InputDevice]
}

// New connects to the X server named by $DISPLAY and creates (but
// does not yet map) a top-level window of the configured size.
func New(cfg Config) (*Backend, error) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	setup := xproto.Setup(conn)
	if setup == nil || len(setup.Roots) == 0 {
		conn.Close()
		return nil, fmt.Errorf("%w: no X11 screen", backend.ErrUnavailable)
	}
	screen := &setup.Roots[0]

	win, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		screen.WhitePixel,
		uint32(xproto.EventMaskExposure | xproto.EventMaskStructureNotify),
	}
	err = xproto.CreateWindowChecked(
		conn, screen.RootDepth, win, screen.Root,
		0, 0, uint16(w), uint16(h), 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		mask, values,
	).Check()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(win), 0, nil).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create gc: %w", err)
	}

	protocolsAtom, err := internAtom(conn, "WM_PROTOCOLS")
	if err != nil {
		conn.Close()
		return nil, err
	}
	deleteAtom, err := internAtom(conn, "WM_DELETE_WINDOW")
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = xproto.ChangePropertyChecked(
		conn, xproto.PropModeReplace, win, protocolsAtom, xproto.AtomAtom, 32,
		1, atomToBytes(deleteAtom),
	).Check()

	b := &Backend{
		conn:           conn,
		screen:         screen,
		win:            win,
		gc:             gc,
		wmDeleteWindow: deleteAtom,
		done:           make(chan struct{}),
	}
	b.output = b.newOutputHandle(w, h)
	return b, nil
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func atomToBytes(a xproto.Atom) []byte {
	return []byte{byte(a), byte(a >> 8), byte(a >> 16), byte(a >> 24)}
}

// committer blits a commit's SHM-backed buffer into the window with
// core PutImage requests; every Test succeeds unconditionally since a
// nested window never refuses a mode or format the backend itself
// advertised (spec §7 "Hardware refused" does not apply to a nested
// backend).
type committer struct{ b *Backend }

func (committer) Test(o *output.Output, s *output.State) (bool, error) { return true, nil }

func (c committer) Commit(o *output.Output, s *output.State) (bool, error) {
	if !s.Has(output.CommittedBuffer) || s.Buffer == nil {
		return true, nil
	}
	view := s.Buffer.SHM()
	if view == nil {
		return false, errors.New("x11: nested backend only scans out SHM-backed buffers")
	}
	const zPixmapFormat = 2 // xproto.ImageFormatZPixmap
	err := xproto.PutImageChecked(
		c.b.conn, zPixmapFormat, xproto.Drawable(c.b.win), c.b.gc,
		uint16(s.Buffer.Width()), uint16(s.Buffer.Height()), 0, 0, 0,
		c.b.screen.RootDepth, view.Data,
	).Check()
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) newOutputHandle(w, h int) *output.Output {
	o := output.New("X11-1", committer{b: b})
	o.Width, o.Height = w, h
	o.RenderFormat = buffer.FormatXRGB8888
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatXRGB8888, buffer.ModifierLinear)
	o.DisplayFormats = formats
	o.Swapchain = output.NewSwapchain(shm.New(), w, h, buffer.FormatXRGB8888, formats)
	return o
}

// Start maps the window and begins pumping the X event queue,
// emitting NewOutput for the single Output this backend owns.
func (b *Backend) Start() bool {
	if err := xproto.MapWindowChecked(b.conn, b.win).Check(); err != nil {
		return false
	}
	b.started = true
	go b.eventLoop()
	b.newOutput.Emit(b.output)
	return true
}

// eventLoop drains X events until the connection closes or the window
// manager asks the window to close (WM_DELETE_WINDOW), requesting a
// frame redraw on Expose and reporting the new size on
// ConfigureNotify (spec §4.4 "frame" event, §3 mode-switch semantics).
func (b *Backend) eventLoop() {
	for {
		ev, err := b.conn.WaitForEvent()
		if err != nil {
			return
		}
		if ev == nil {
			return
		}
		switch e := ev.(type) {
		case xproto.ExposeEvent:
			b.output.ScheduleFrame()
		case xproto.ConfigureNotifyEvent:
			b.output.Width, b.output.Height = int(e.Width), int(e.Height)
		case xproto.ClientMessageEvent:
			if xproto.Atom(e.Data.Data32[0]) == b.wmDeleteWindow {
				close(b.done)
				return
			}
		}
	}
}

// Destroy closes the X connection, tearing down the window with it.
func (b *Backend) Destroy() {
	if !b.started {
		b.conn.Close()
		return
	}
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	b.output.Destroy()
	b.conn.Close()
	b.started = false
}

func (b *Backend) NewOutput() *event.Signal[*output.Output]     { return &b.newOutput }
func (b *Backend) NewInput() *event.Signal[backend.InputDevice] { return &b.newInput }

// DRMFD reports none: a nested X11 window has no render node of its
// own to hand the compositor's renderer.
func (b *Backend) DRMFD() (int, bool) { return 0, false }

// BufferCaps reports only mappable buffers: PutImage only accepts a
// linear pixel array, never a DMA-BUF handle.
func (b *Backend) BufferCaps() buffer.Caps { return buffer.CapDataPtr }

// PresentationClock reports no real clock domain: a nested window's
// Expose events carry no presentation timestamp.
func (b *Backend) PresentationClock() (backend.ClockID, bool) { return backend.ClockUnknown, false }
