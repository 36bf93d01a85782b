package drm

import "github.com/gviegas/kmscore/buffer"

// Flags are the caller-supplied page-flip flags named in spec §4.3.
// Atomic-only flags are derived by each Interface implementation from
// the CommitInput rather than being set by the caller.
type Flags uint

const (
	// FlagPageFlipEvent requests a completion event for this commit.
	FlagPageFlipEvent Flags = 1 << iota
	// FlagPageFlipAsync requests a tearing (non-VSYNC) flip.
	FlagPageFlipAsync
)

// GammaLUT is the R/G/B ramp carried by OutputState.gamma_lut (spec
// §3).
type GammaLUT struct {
	R, G, B []uint16
}

// LayerFB is one ordered plane overlay in a commit (spec §3
// "OutputState.layers").
type LayerFB struct {
	Plane           *Plane
	FB              *FB
	SrcX, SrcY      int // source origin in pixels; planeProps converts to 16.16
	SrcW, SrcH      int // source extent in pixels; planeProps converts to 16.16
	DstX, DstY      int
	DstW, DstH      int
	Damage          []Rect // buffer-local, only if plane supports FB_DAMAGE_CLIPS
}

// Rect is an integer rectangle, used for damage clips and cursor/
// plane destination boxes.
type Rect struct {
	X, Y, W, H int
}

// CommitInput is the backend-facing reduction of output.OutputState:
// exactly the fields a DrmInterface needs to build a commit, with the
// double-buffering and validation already resolved by the output
// package (spec §4.4 "commit_state").
type CommitInput struct {
	ModeChanged bool
	Mode        *Mode // nil if Active is false

	Active bool

	RenderFormat buffer.FourCC
	Primary      *LayerFB // nil if no buffer this commit (gamma/cursor-only commit)

	Gamma       *GammaLUT
	GammaChanged bool

	Cursor        *LayerFB // nil disables the cursor plane
	CursorChanged bool

	Layers []LayerFB // overlay planes, ordered back-to-front

	AdaptiveSync bool

	TearingPageFlip      bool
	AllowReconfiguration bool
}

// Interface is the contract each of the three commit strategies
// (atomic, legacy, liftoff-assisted atomic) implements (spec §4.3
// "Contract").
type Interface interface {
	// Init performs one-time setup against dev.
	Init(dev *Device) error

	// Finish performs one-time teardown.
	Finish(dev *Device)

	// CrtcCommit applies (or, if testOnly, merely validates) in as
	// the new state of conn's current CRTC. It returns false (with a
	// descriptive error) if the kernel refused the commit; on
	// success and unless testOnly, the connector/CRTC/plane current
	// state is updated per spec §4.3 step 4.
	CrtcCommit(conn *Connector, in CommitInput, flags Flags, testOnly bool) (bool, error)
}
