// Package drmbackend implements the backend.Backend that drives real
// display hardware through the kernel's DRM/KMS interfaces: one
// backend instance owns one or more drm.Device GPUs, rescans
// connectors on hot-plug, and blits a secondary GPU's submitted
// buffers to its own scanout memory before committing them (spec §2
// L2 "DRM (real hardware)", §4.2, §4.3 "Multi-GPU").
package drmbackend

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/gviegas/kmscore/backend"
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/drm"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
	"github.com/gviegas/kmscore/session"
)

// ErrNoDevices is returned when PathEnumerator finds no GPU device
// nodes to open.
var ErrNoDevices = errors.New("drmbackend: no DRM device nodes found")

func init() {
	backend.Register("drm", func(lib any) (backend.Backend, error) {
		cfg, ok := lib.(Config)
		if !ok {
			return nil, fmt.Errorf("%w: drmbackend requires a drmbackend.Config passed as Autocreate's lib argument", backend.ErrUnavailable)
		}
		return New(cfg)
	})
}

// Config bundles everything New needs to open real hardware. A
// compositor supplies the privileged opener (backed by real ioctls,
// not part of this module, the same contract boundary as
// session.Seat and libinput.Enumerator) and a session to track VT
// activation.
type Config struct {
	Session *session.Session
	Opener  DeviceOpener
	Paths   PathEnumerator // defaults to DRIEnumerator{} if nil
	Logger  *log.Logger
}

// PathEnumerator lists candidate GPU device node paths (spec §4.1
// "probe all GPUs").
type PathEnumerator interface {
	Enumerate() ([]string, error)
}

// DRIEnumerator lists /dev/dri/card* nodes in ascending index order,
// the conventional primary-GPU-first ordering (card0 is virtually
// always the boot GPU).
type DRIEnumerator struct{ Dir string }

func (e DRIEnumerator) Enumerate() ([]string, error) {
	dir := e.Dir
	if dir == "" {
		dir = "/dev/dri"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), "card") {
			paths = append(paths, dir+"/"+ent.Name())
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i] < paths[j]
	})
	return paths, nil
}

// OpenedDevice is what a DeviceOpener hands back for one device node:
// the raw ioctl surface (KMS), the capability bits probed at open
// time, a Prober to enumerate its connectors/CRTCs/planes, and the
// render-node fd itself (for backend.Backend.DRMFD and for PRIME
// export to a secondary GPU).
type OpenedDevice struct {
	FD     int
	KMS    drm.KMS
	Caps   drm.Caps
	Prober Prober
}

// Prober enumerates the hardware resources of one opened device (spec
// §3 "DRM connector / CRTC / plane"). Real resource discovery goes
// through DRM_IOCTL_MODE_GETRESOURCES/GETCONNECTOR/GETCRTC/GETPLANE,
// which this module does not encode directly (no Go ioctl binding for
// it appears anywhere in the retrieval pack); Prober is the seam a
// concrete ioctl-backed implementation plugs into, exactly as
// session.Seat stands in for the logind D-Bus surface.
type Prober interface {
	Probe() (conns []*drm.Connector, crtcs []*drm.CRTC, planes []*drm.Plane, err error)
}

// DeviceOpener opens one DRM device node, asserting the capabilities
// spec §4.2 requires (PRIME import/export, universal planes, vblank
// event, monotonic timestamps) and returning the surfaces
// drm.NewDevice and Prober consume.
type DeviceOpener interface {
	Open(path string, secondary bool) (OpenedDevice, error)
}

// fbKey is the addon.Key under which a GPU caches the kernel
// framebuffer id it AddFB'd for a given client buffer, so repeated
// commits of the same buffer do not re-register it with the kernel
// every frame (spec §3 "Plane": "framebuffer reference").
var fbKey = new(int)

type cachedFB struct {
	id     uint32
	format buffer.FourCC
	mod    uint64
}

// gpu is one managed DRM device: its resource model, its outputs
// (one per matched connector), and — for a secondary GPU — the
// renderer used to blit a primary-GPU buffer into this GPU's own
// scanout memory before committing it (spec §4.3 "Multi-GPU").
type gpu struct {
	path      string
	fd        int
	dev       *drm.Device
	prober    Prober
	secondary bool

	// mgpuRenderer blits a primary-GPU buffer into a buffer allocated
	// on this GPU; nil on the primary GPU, which never blits.
	mgpuRenderer render.Renderer
	mgpuAlloc    buffer.Allocator

	outputs map[uint32]*output.Output // connector id -> Output
	prevMap map[uint32]uint32          // connector id -> crtc id, for the solver's stability tie-break
}

// Backend manages every GPU found on the host, aggregating their
// connectors into Output handles and rescanning on hot-plug (spec §2
// L2 "DRM").
type Backend struct {
	cfg     Config
	log     *log.Logger
	gpus    []*gpu
	primary *gpu

	started bool

	newOutput event.Signal[*output.Output]
	newInput  event.Signal[backend.InputDevice]

	resumeObserver *event.Observer
}

// New probes every GPU cfg.Paths names (defaulting to DRIEnumerator),
// opening the first successfully-opened one as primary and every
// other as secondary (spec §4.1 step 4 "add one DRM sub-backend per
// GPU, with the first one designated primary").
func New(cfg Config) (*Backend, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("%w: drmbackend.Config.Opener must be set", backend.ErrUnavailable)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	paths := cfg.Paths
	if paths == nil {
		paths = DRIEnumerator{}
	}
	found, err := paths.Enumerate()
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoDevices, backend.ErrUnavailable)
	}

	b := &Backend{cfg: cfg, log: logger}
	for _, path := range found {
		secondary := b.primary != nil
		opened, err := cfg.Opener.Open(path, secondary)
		if err != nil {
			logger.Printf("drmbackend: skipping %s: %v", path, err)
			continue
		}
		dev, err := drm.NewDevice(path, opened.KMS, opened.Caps, secondary, logger)
		if err != nil {
			logger.Printf("drmbackend: skipping %s: %v", path, err)
			continue
		}
		g := &gpu{path: path, fd: opened.FD, dev: dev, prober: opened.Prober, secondary: secondary, outputs: make(map[uint32]*output.Output)}
		b.gpus = append(b.gpus, g)
		if !secondary {
			b.primary = g
		}
	}
	if b.primary == nil {
		return nil, fmt.Errorf("%w: no GPU could be opened", ErrNoDevices)
	}
	if cfg.Session != nil {
		b.resumeObserver = cfg.Session.ActiveSignal.Connect(b.onSessionActive)
	}
	return b, nil
}

// SetSecondaryRenderer binds the renderer+allocator a secondary GPU
// uses to blit primary-GPU buffers into its own scanout memory (spec
// §4.3 "a mgpu_renderer bound to the secondary device"). No-op if g is
// the primary GPU or not managed by b.
func (b *Backend) SetSecondaryRenderer(path string, r render.Renderer, alloc buffer.Allocator) {
	for _, g := range b.gpus {
		if g.path == path && g.secondary {
			g.mgpuRenderer, g.mgpuAlloc = r, alloc
		}
	}
}

// Start rescans every managed GPU's connectors, matches them to CRTCs
// via drm.Solve, and emits NewOutput for each match (spec §4.1
// "Start() returns bool").
func (b *Backend) Start() bool {
	ok := true
	for _, g := range b.gpus {
		if err := b.scan(g); err != nil {
			b.log.Printf("drmbackend: %s: scan failed: %v", g.path, err)
			ok = false
		}
	}
	b.started = ok
	return ok
}

// Destroy tears down every managed GPU.
func (b *Backend) Destroy() {
	if b.resumeObserver != nil {
		b.resumeObserver.Disconnect()
	}
	for _, g := range b.gpus {
		for _, o := range g.outputs {
			o.Destroy()
		}
		g.dev.Close()
	}
	b.gpus = nil
	b.started = false
}

// scan re-enumerates g's connectors/CRTCs/planes, re-solves the
// connector→CRTC mapping, and creates/destroys Output handles to
// match (spec §4.2 "Hot-plug events cause a connector scan").
func (b *Backend) scan(g *gpu) error {
	conns, crtcs, planes, err := g.prober.Probe()
	if err != nil {
		return err
	}
	g.dev.ScanConnectors(conns)
	g.dev.CRTCs = crtcs
	g.dev.Planes = planes

	mapping, ok := drm.Solve(conns, crtcs, g.prevMap)
	if !ok {
		b.log.Printf("drmbackend: %s: solver found no valid mapping, keeping previous", g.path)
		return nil
	}
	g.prevMap = mapping
	g.dev.ApplyMapping(mapping)

	byID := make(map[uint32]*drm.CRTC, len(crtcs))
	for _, c := range crtcs {
		byID[c.ID] = c
	}

	matched := make(map[uint32]bool, len(mapping))
	for _, conn := range conns {
		crtcID, isMatched := mapping[conn.ID]
		matched[conn.ID] = isMatched
		if !isMatched {
			if o, had := g.outputs[conn.ID]; had {
				o.Destroy()
				delete(g.outputs, conn.ID)
			}
			continue
		}
		crtc := byID[crtcID]
		if _, had := g.outputs[conn.ID]; !had {
			o := b.newOutputFor(g, conn, crtc)
			g.outputs[conn.ID] = o
			b.newOutput.Emit(o)
		}
	}
	for connID, o := range g.outputs {
		if !matched[connID] {
			o.Destroy()
			delete(g.outputs, connID)
		}
	}
	return nil
}

// newOutputFor builds the compositor-facing Output for conn, now
// bound to crtc, wiring its Committer to g.
func (b *Backend) newOutputFor(g *gpu, conn *drm.Connector, crtc *drm.CRTC) *output.Output {
	o := output.New(conn.Name(), &drmCommitter{backend: b, gpu: g, conn: conn})
	if crtc.Primary != nil {
		o.DisplayFormats = crtc.Primary.Formats
	}
	o.SetGammaSize(crtc.GammaSize)
	return o
}

// onSessionActive reasserts every managed GPU's connector state when
// the seat regains the VT (spec §4.2 "On session resume").
func (b *Backend) onSessionActive(active bool) {
	if !active {
		return
	}
	for _, g := range b.gpus {
		g.dev.Resume(
			func() map[*drm.Connector]*drm.CRTC {
				mapping, ok := drm.Solve(g.dev.Connectors, g.dev.CRTCs, g.prevMap)
				if !ok {
					return nil
				}
				byConnID := make(map[uint32]*drm.Connector, len(g.dev.Connectors))
				for _, c := range g.dev.Connectors {
					byConnID[c.ID] = c
				}
				byCrtcID := make(map[uint32]*drm.CRTC, len(g.dev.CRTCs))
				for _, c := range g.dev.CRTCs {
					byCrtcID[c.ID] = c
				}
				out := make(map[*drm.Connector]*drm.CRTC, len(mapping))
				for connID, crtcID := range mapping {
					out[byConnID[connID]] = byCrtcID[crtcID]
				}
				g.prevMap = mapping
				return out
			},
			func(conn *drm.Connector) {
				if o, ok := g.outputs[conn.ID]; ok {
					o.RequestStateSignal.Emit(struct{}{})
				}
			},
		)
	}
}

// DRMFD returns the primary GPU's render-node fd.
func (b *Backend) DRMFD() (int, bool) {
	if b.primary == nil {
		return 0, false
	}
	return b.primary.fd, true
}

func (b *Backend) NewOutput() *event.Signal[*output.Output]     { return &b.newOutput }
func (b *Backend) NewInput() *event.Signal[backend.InputDevice] { return &b.newInput }

// BufferCaps reports DMA-BUF: every DRM output scans out DMA-BUF
// backed buffers.
func (b *Backend) BufferCaps() buffer.Caps { return buffer.CapDMABuf }

// PresentationClock reports the monotonic clock DRM page-flip events
// are timestamped against (spec §4.2 "TIMESTAMP_MONOTONIC").
func (b *Backend) PresentationClock() (backend.ClockID, bool) { return backend.ClockMonotonic, true }

// drmCommitter adapts one (gpu, connector) pair to output.Committer,
// translating an output.State into drm.CommitInput and, for a
// secondary GPU, blitting the submitted buffer into local scanout
// memory first (spec §4.4 step 5, §4.3 "Multi-GPU").
type drmCommitter struct {
	backend *Backend
	gpu     *gpu
	conn    *drm.Connector
}

func (c *drmCommitter) Test(o *output.Output, s *output.State) (bool, error) {
	in, flags, err := c.translate(o, s, true)
	if err != nil {
		return false, err
	}
	return c.gpu.dev.CommitConnector(c.conn, in, flags, true)
}

func (c *drmCommitter) Commit(o *output.Output, s *output.State) (bool, error) {
	in, flags, err := c.translate(o, s, false)
	if err != nil {
		return false, err
	}
	return c.gpu.dev.CommitConnector(c.conn, in, flags, false)
}

// translate reduces s to a drm.CommitInput, resolving the primary
// buffer to a kernel framebuffer id (blitting through g.mgpuRenderer
// first on a secondary GPU) unless testOnly, since a test commit must
// not perform real GPU work.
func (c *drmCommitter) translate(o *output.Output, s *output.State, testOnly bool) (drm.CommitInput, drm.Flags, error) {
	in := drm.CommitInput{
		ModeChanged:          s.Has(output.CommittedMode) || s.Has(output.CommittedCustomMode),
		Active:               s.Enabled,
		RenderFormat:         s.RenderFormat,
		GammaChanged:         s.Has(output.CommittedGamma),
		CursorChanged:        false,
		AdaptiveSync:         s.AdaptiveSyncEnabled,
		TearingPageFlip:      s.TearingPageFlip,
		AllowReconfiguration: s.AllowReconfiguration,
	}
	if s.Has(output.CommittedMode) {
		in.Mode = s.Mode
	}
	if s.Has(output.CommittedGamma) {
		in.Gamma = s.Gamma
	}
	if s.Has(output.CommittedBuffer) && s.Buffer != nil {
		buf := s.Buffer
		if c.gpu.secondary && !testOnly {
			blitted, err := c.blit(buf)
			if err != nil {
				return drm.CommitInput{}, 0, fmt.Errorf("drmbackend: multi-GPU blit: %w", err)
			}
			buf = blitted
		}
		fb, err := c.resolveFB(buf, testOnly)
		if err != nil {
			return drm.CommitInput{}, 0, err
		}
		in.Primary = &drm.LayerFB{
			FB:   fb,
			DstW: o.Width, DstH: o.Height,
			SrcW: fb.Width, SrcH: fb.Height,
			Damage: s.Damage,
		}
	}

	flags := drm.FlagPageFlipEvent
	if s.TearingPageFlip {
		flags |= drm.FlagPageFlipAsync
	}
	return in, flags, nil
}

// blit copies buf (allocated on the primary GPU) into a buffer
// allocated on this secondary GPU via mgpuRenderer, the per-frame step
// spec §4.3 names: "the primary GPU's buffer is blitted into a
// secondary-GPU buffer via the secondary renderer before the atomic
// commit".
func (c *drmCommitter) blit(buf *buffer.Buffer) (*buffer.Buffer, error) {
	if c.gpu.mgpuRenderer == nil || c.gpu.mgpuAlloc == nil {
		return nil, fmt.Errorf("drmbackend: no secondary renderer bound for %s", c.gpu.path)
	}
	// Implicit modifiers are forbidden on the cross-device hop: the
	// secondary device must be able to name the exact memory layout it
	// scans out (spec §4.3 "Multi-GPU": "no implicit modifiers").
	formats := c.gpu.mgpuRenderer.GetRenderFormats().WithoutImplicit()
	dst, err := c.gpu.mgpuAlloc.Allocate(buf.Width(), buf.Height(), formats)
	if err != nil {
		return nil, err
	}
	tex, err := c.gpu.mgpuRenderer.TextureFromBuffer(buf)
	if err != nil {
		return nil, err
	}
	pass, err := c.gpu.mgpuRenderer.BeginBufferPass(dst, render.PassOptions{})
	if err != nil {
		return nil, err
	}
	full := render.Rect{X: 0, Y: 0, W: buf.Width(), H: buf.Height()}
	pass.AddTexture(tex, full, full, output.TransformNormal, nil, render.FilterNearest, render.BlendNone, 1)
	if err := pass.Submit(); err != nil {
		return nil, err
	}
	return dst, nil
}

// resolveFB returns the kernel framebuffer id for buf, reusing a
// cached one from a previous commit of the same buffer when present.
// Skipped entirely for a test-only commit: AddFB is real kernel state
// and must not be mutated by test_state (spec §4.4 "test_state...
// never mutates the output").
func (c *drmCommitter) resolveFB(buf *buffer.Buffer, testOnly bool) (*drm.FB, error) {
	dma := buf.DMABuf()
	if dma == nil {
		return nil, fmt.Errorf("drmbackend: scan-out requires a DMA-BUF backed buffer")
	}
	mod := dma.Modifier
	if !c.gpu.dev.Caps.AddFB2Modifiers {
		mod = 0
	}
	if v, ok := buf.Addons().Get(buf, fbKey); ok {
		cached := v.(*cachedFB)
		if cached.format == dma.Format && cached.mod == mod {
			return &drm.FB{ID: cached.id, Buf: buf, Format: dma.Format, Mod: mod, Width: buf.Width(), Height: buf.Height()}, nil
		}
	}
	if testOnly {
		// A not-yet-registered buffer cannot be validated without a
		// real AddFB; report it provisionally unresolved rather than
		// mutate kernel state during a test.
		return &drm.FB{Buf: buf, Format: dma.Format, Mod: dma.Modifier, Width: buf.Width(), Height: buf.Height()}, nil
	}
	planes := make([]drm.FBPlane, len(dma.Planes))
	for i, p := range dma.Planes {
		planes[i] = drm.FBPlane{Handle: uint32(p.FD), Offset: p.Offset, Pitch: p.Stride}
	}
	id, err := c.gpu.dev.KMS.AddFB(buf.Width(), buf.Height(), uint32(dma.Format), mod, planes)
	if err != nil {
		return nil, err
	}
	// TODO: hook buffer destruction to KMS.RmFB(id); Buffer has no
	// destroy signal yet for an addon to subscribe to, so a committed
	// buffer's framebuffer currently outlives it until the GPU itself
	// is closed.
	buf.Addons().Set(buf, fbKey, &cachedFB{id: id, format: dma.Format, mod: mod})
	return &drm.FB{ID: id, Buf: buf, Format: dma.Format, Mod: mod, Width: buf.Width(), Height: buf.Height()}, nil
}
