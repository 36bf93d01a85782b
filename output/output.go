package output

import (
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/drm"
	"github.com/gviegas/kmscore/internal/addon"
	"github.com/gviegas/kmscore/internal/event"
)

// Lifecycle is one of the three states an Output moves through,
// driven exclusively by commit_state (spec §4.4 "States").
type Lifecycle int

const (
	Disabled Lifecycle = iota
	Configuring
	Live
)

// Committer is the backend-specific half of a commit: it receives an
// already-validated State (plus any back buffer the generic algorithm
// allocated) and either tests or applies it against real hardware (a
// drm.Device) or a nested window system. The generic commit_state/
// test_state algorithm in commit.go is backend-agnostic; only this
// interface varies per backend (spec §4.4 step 5 "Call the
// backend-specific commit(output, state)").
type Committer interface {
	Test(o *Output, s *State) (bool, error)
	Commit(o *Output, s *State) (bool, error)
}

// PresentFlags encode how a present event was produced (spec §4.4
// "Page-flip event").
type PresentFlags uint

const (
	PresentVSync PresentFlags = 1 << iota
	PresentHWClock
	PresentHWCompletion
	PresentZeroCopy // only set on the primary GPU
)

// PresentEvent is the payload of Output.PresentSignal (spec §6
// "Output" events "present").
type PresentEvent struct {
	CommitSeq  uint64
	RefreshNs  int64
	HWClockNs  int64
	Flags      PresentFlags
}

// Output is the compositor-facing handle for one physical display
// (spec §3 "Output").
type Output struct {
	Name        string // stable, unique for this Output's lifetime
	Description string

	Make, Model, Serial string
	PhysWidthMM, PhysHeightMM int

	lifecycle Lifecycle

	CurrentMode          *drm.Mode
	Width, Height        int
	RefreshMHz           int
	Scale                float64
	Transform            Transform
	Subpixel             Subpixel
	AdaptiveSyncStatus   AdaptiveSyncStatus
	RenderFormat         buffer.FourCC

	CommitSeq uint64

	Swapchain *Swapchain
	Cursor    *Cursor
	Layers    []Layer

	// DisplayFormats is the format set the output's primary plane
	// advertises, set by the backend that created this Output.
	DisplayFormats *buffer.FormatSet

	Addons addon.Set

	needsFrame            bool
	lockSoftwareCursors   bool
	lockAttachRender      bool
	allowDirectScanout    bool
	gammaSize             int

	committer Committer

	FrameSignal        event.Signal[struct{}]
	DamageSignal       event.Signal[[]drm.Rect]
	NeedsFrameSignal    event.Signal[struct{}]
	PrecommitSignal     event.Signal[*State]
	CommitSignal        event.Signal[*State]
	PresentSignal       event.Signal[PresentEvent]
	RequestStateSignal  event.Signal[struct{}]
	DestroySignal       event.Signal[struct{}]
}

// New creates a Disabled output named name, backed by committer for
// its actual hardware/window-system commits.
func New(name string, committer Committer) *Output {
	return &Output{
		Name:               name,
		committer:          committer,
		Scale:              1,
		allowDirectScanout: true,
	}
}

// Lifecycle returns the output's current state.
func (o *Output) Lifecycle() Lifecycle { return o.lifecycle }

// NeedsFrame reports whether the compositor owes this output a new
// frame (spec §4.4 step 6 "If the commit includes a buffer, clear
// needs_frame").
func (o *Output) NeedsFrame() bool { return o.needsFrame }

// ScheduleFrame requests a future `frame` event even if no commit is
// pending (spec §6 "Output" operation "schedule_frame").
func (o *Output) ScheduleFrame() {
	o.needsFrame = true
	o.NeedsFrameSignal.Emit(struct{}{})
}

// LockSoftwareCursors forces (spec §6 "lock_software_cursors(bool)")
// software cursor compositing for this output.
func (o *Output) LockSoftwareCursors(v bool) {
	o.lockSoftwareCursors = v
	if o.Cursor != nil {
		o.Cursor.LockSoftware(v)
	}
}

// LockAttachRender disables the direct scan-out path while a
// compositor-side effect (e.g. a screen-share capture) requires every
// frame to pass through a render pass (spec §4.5 "Direct scan-out
// test" condition ii).
func (o *Output) LockAttachRender(v bool) { o.lockAttachRender = v }

// AllowsDirectScanout reports whether the direct scan-out path may be
// attempted this frame (spec §4.5 condition ii).
func (o *Output) AllowsDirectScanout() bool {
	return o.allowDirectScanout && !o.lockAttachRender
}

// SetCursor sets the cursor image and hotspot (spec §6
// "set_cursor(buffer, hotspot)").
func (o *Output) SetCursor(buf *buffer.Buffer, hotspotX, hotspotY int) {
	if o.Cursor != nil {
		o.Cursor.Set(buf, hotspotX, hotspotY)
	}
}

// MoveCursor repositions the cursor (spec §6 "move_cursor(x, y)").
func (o *Output) MoveCursor(x, y int) {
	if o.Cursor != nil {
		o.Cursor.Move(x, y)
	}
}

// GetPrimaryFormats returns the primary plane's advertised format
// set unchanged when caps includes CapDMABuf, and an empty set
// otherwise; no per-modifier filtering is done (spec §6
// "get_primary_formats(caps)"). caps is the DMA-BUF/DATA-PTR
// capability bitfield the caller's renderer/allocator can produce.
func (o *Output) GetPrimaryFormats(caps buffer.Caps) *buffer.FormatSet {
	if o.DisplayFormats == nil || caps&buffer.CapDMABuf == 0 {
		// Scan-out always binds a DMA-BUF to the primary plane; a
		// caller without DMA-BUF capability cannot use any of them.
		return buffer.NewFormatSet()
	}
	return o.DisplayFormats
}

// SetGammaSize records the legacy gamma ramp size reported by the
// backend (e.g. CRTC.GammaSize for a DRM output).
func (o *Output) SetGammaSize(n int) { o.gammaSize = n }

// GetGammaSize returns the legacy gamma ramp size, 0 if unknown
// (spec §6 "get_gamma_size()").
func (o *Output) GetGammaSize() int { return o.gammaSize }

// Destroy destroys the output's swapchain and emits DestroySignal; the
// cursor's state, including its swapchain, is left as it is.
func (o *Output) Destroy() {
	if o.Swapchain != nil {
		o.Swapchain.Destroy()
	}
	o.DestroySignal.Emit(struct{}{})
}
