// Package wayland implements the nested-Wayland backend.Backend named
// in spec §2 L2 "nested (Wayland/X11 window)": one xdg-shell toplevel
// on an existing Wayland compositor, presented as a single Output
// whose commits are copied into a wl_shm pool and attached to the
// surface.
//
// Bound against honnef.co/go/libwayland, a cgo client binding; this
// backend's scope matches what that binding itself covers (wl_compositor,
// wl_shm, xdg_wm_base) rather than every Wayland protocol extension.
package wayland

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	wl "honnef.co/go/libwayland"

	"github.com/gviegas/kmscore/backend"
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
)

func init() {
	backend.Register("wayland", func(lib any) (backend.Backend, error) {
		return New(Config{})
	})
}

// Config sizes the toplevel this backend creates.
type Config struct {
	Width, Height int // defaults to 1280x720
}

// Backend owns one Wayland connection, one xdg-shell toplevel and the
// single wl_shm pool backing its buffer (spec §4.1 "nested backend
// kinds present exactly the outputs their host window system gives
// them").
type Backend struct {
	dsp      *wl.Display
	reg      *wl.Registry
	comp     *wl.Compositor
	shm      *wl.Shm
	wmBase   *wl.XdgWmBase
	surf     *wl.Surface
	xdgSurf  *wl.XdgSurface
	toplevel *wl.XdgToplevel

	poolFD   int
	poolData []byte
	buf      *wl.Buffer
	width, height int
	stride        int

	configured bool
	started    bool
	done       chan struct{}

	output *output.Output

	newOutput event.Signal[*output.Output]
	newInput  event.Signal[backend.InputDevice]
}

// New connects to the compositor named by $WAYLAND_DISPLAY, binds the
// globals this backend needs, and creates (but does not map) one
// xdg-shell toplevel of the configured size.
func New(cfg Config) (*Backend, error) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}

	dsp, err := wl.Connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	b := &Backend{dsp: dsp, width: w, height: h, stride: w * 4, done: make(chan struct{})}

	b.reg = dsp.Registry()
	b.reg.OnGlobal = func(name uint32, iface string, version uint32) {
		switch iface {
		case "wl_compositor":
			b.comp = b.reg.BindCompositor(name, version)
		case "wl_shm":
			b.shm = b.reg.BindShm(name, version)
		case "xdg_wm_base":
			b.wmBase = b.reg.BindXdgWmBase(name, version)
		}
	}
	if _, err := dsp.Roundtrip(); err != nil {
		dsp.Disconnect()
		return nil, err
	}
	if b.comp == nil || b.shm == nil || b.wmBase == nil {
		dsp.Disconnect()
		return nil, fmt.Errorf("%w: compositor does not advertise wl_compositor/wl_shm/xdg_wm_base", backend.ErrUnavailable)
	}
	b.wmBase.OnPing = func(serial uint32) { b.wmBase.Pong(serial) }

	if err := b.createSurface(); err != nil {
		dsp.Disconnect()
		return nil, err
	}
	if err := b.createPool(); err != nil {
		dsp.Disconnect()
		return nil, err
	}

	b.output = b.newOutputHandle()
	return b, nil
}

func (b *Backend) createSurface() error {
	b.surf = b.comp.CreateSurface()
	b.xdgSurf = b.wmBase.XdgSurface(b.surf)
	b.xdgSurf.OnConfigure = func(serial uint32) {
		b.xdgSurf.AckConfigure(serial)
		b.configured = true
	}
	b.toplevel = b.xdgSurf.Toplevel()
	b.toplevel.SetTitle("kmscore")
	b.toplevel.OnConfigure = func(w, h int32, states []uint32) {
		if w > 0 && h > 0 {
			b.width, b.height = int(w), int(h)
			if b.output != nil {
				b.output.Width, b.output.Height = b.width, b.height
			}
		}
	}
	b.toplevel.OnClose = func() {
		select {
		case <-b.done:
		default:
			close(b.done)
		}
	}
	// Triggers the compositor's first xdg_surface.configure (spec
	// §4.4 "frame" event: a nested backend's first frame waits for
	// this before it may attach a buffer).
	b.surf.Commit()
	return nil
}

// createPool allocates the anonymous shared-memory pool this
// backend's single wl_buffer is carved from, mirroring alloc/shm's own
// memfd + mmap allocation (spec §2 L5 "mappable" backing).
func (b *Backend) createPool() error {
	size := b.stride * b.height
	fd, err := unix.MemfdCreate("kmscore-wl-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return err
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return err
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return err
	}
	pool := b.shm.CreatePool(int32(fd), int32(size))
	b.buf = pool.CreateBuffer(0, int32(b.width), int32(b.height), int32(b.stride), wl.ShmFormatXrgb8888)
	pool.Destroy() // the pool object is no longer needed once the buffer is created
	b.poolFD, b.poolData = fd, data
	return nil
}

func (b *Backend) newOutputHandle() *output.Output {
	o := output.New("wayland-1", committer{b: b})
	o.Width, o.Height = b.width, b.height
	o.RenderFormat = buffer.FormatXRGB8888
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatXRGB8888, buffer.ModifierLinear)
	o.DisplayFormats = formats
	return o
}

// committer copies a commit's SHM-backed buffer into the pool and
// attaches it to the surface; every Test succeeds unconditionally,
// the same as the nested X11 backend (spec §7 "Hardware refused"
// does not apply to a nested backend).
type committer struct{ b *Backend }

func (committer) Test(o *output.Output, s *output.State) (bool, error) { return true, nil }

func (c committer) Commit(o *output.Output, s *output.State) (bool, error) {
	if !s.Has(output.CommittedBuffer) || s.Buffer == nil {
		return true, nil
	}
	view := s.Buffer.SHM()
	if view == nil {
		return false, errors.New("wayland: nested backend only scans out SHM-backed buffers")
	}
	if s.Buffer.Width() != c.b.width || s.Buffer.Height() != c.b.height {
		return false, fmt.Errorf("wayland: committed buffer %dx%d does not match toplevel size %dx%d",
			s.Buffer.Width(), s.Buffer.Height(), c.b.width, c.b.height)
	}
	copy(c.b.poolData, view.Data)
	c.b.surf.Attach(c.b.buf)
	c.b.surf.Damage(0, 0, int32(c.b.width), int32(c.b.height))
	c.b.surf.Frame(func(uint32) { c.b.output.ScheduleFrame() })
	c.b.surf.Commit()
	return true, nil
}

// Start maps the toplevel (by dispatching until the compositor's
// first configure lands) and begins pumping the connection's event
// queue.
func (b *Backend) Start() bool {
	for i := 0; i < 10 && !b.configured; i++ {
		if _, err := b.dsp.Roundtrip(); err != nil {
			return false
		}
	}
	if !b.configured {
		return false
	}
	b.started = true
	go b.eventLoop()
	b.newOutput.Emit(b.output)
	return true
}

func (b *Backend) eventLoop() {
	for {
		select {
		case <-b.done:
			return
		default:
		}
		if b.dsp.Dispatch() < 0 {
			return
		}
	}
}

// Destroy releases the toplevel, surface and shared-memory pool and
// disconnects from the compositor.
func (b *Backend) Destroy() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	if b.output != nil {
		b.output.Destroy()
	}
	if b.buf != nil {
		b.buf.Destroy()
	}
	if b.toplevel != nil {
		b.toplevel.Destroy()
	}
	if b.xdgSurf != nil {
		b.xdgSurf.Destroy()
	}
	if b.surf != nil {
		b.surf.Destroy()
	}
	if b.wmBase != nil {
		b.wmBase.Destroy()
	}
	if b.shm != nil {
		b.shm.Destroy()
	}
	if b.comp != nil {
		b.comp.Destroy()
	}
	if b.reg != nil {
		b.reg.Destroy()
	}
	if b.poolData != nil {
		unix.Munmap(b.poolData)
	}
	if b.poolFD != 0 {
		unix.Close(b.poolFD)
	}
	b.dsp.Disconnect()
	b.started = false
}

func (b *Backend) NewOutput() *event.Signal[*output.Output]     { return &b.newOutput }
func (b *Backend) NewInput() *event.Signal[backend.InputDevice] { return &b.newInput }

// DRMFD reports none: a nested Wayland surface has no render node of
// its own to hand the compositor's renderer.
func (b *Backend) DRMFD() (int, bool) { return 0, false }

// BufferCaps reports only mappable buffers: the wl_shm path only
// accepts a linear pixel array, never a DMA-BUF handle (this binding
// does not cover linux-dmabuf-v1).
func (b *Backend) BufferCaps() buffer.Caps { return buffer.CapDataPtr }

// PresentationClock reports no real clock domain: wl_surface.frame
// callbacks carry no presentation timestamp on their own.
func (b *Backend) PresentationClock() (backend.ClockID, bool) { return backend.ClockUnknown, false }
