// Package output implements the compositor-facing Output handle: its
// double-buffered OutputState, the test_state/commit_state algorithm,
// the swapchain ring, and cursor sub-state (spec §3 "OutputState"/
// "Output", §4.4).
package output

import (
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/drm"
)

// Transform is one of the eight output rotations/flips.
type Transform int

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Subpixel is the subpixel geometry hint for an output.
type Subpixel int

const (
	SubpixelUnknown Subpixel = iota
	SubpixelNone
	SubpixelHorizontalRGB
	SubpixelHorizontalBGR
	SubpixelVerticalRGB
	SubpixelVerticalBGR
)

// AdaptiveSyncStatus reports whether VRR is in use.
type AdaptiveSyncStatus int

const (
	AdaptiveSyncDisabled AdaptiveSyncStatus = iota
	AdaptiveSyncEnabled
)

// Committed is a bitfield naming which OutputState fields are
// present, mirroring spec §3 "a bitfield `committed` indicating which
// are present".
type Committed uint32

const (
	CommittedEnabled Committed = 1 << iota
	CommittedMode
	CommittedCustomMode
	CommittedScale
	CommittedTransform
	CommittedAdaptiveSync
	CommittedRenderFormat
	CommittedSubpixel
	CommittedBuffer
	CommittedDamage
	CommittedGamma
	CommittedLayers
	CommittedTearingPageFlip
	CommittedAllowReconfiguration
)

// CustomMode is a mode described by raw width/height/refresh instead
// of a reference to one of the output's advertised modes.
type CustomMode struct {
	Width, Height int
	RefreshMHz    int
}

// Layer is one overlay plane assignment in OutputState.layers.
type Layer struct {
	Buf        *buffer.Buffer
	SrcX, SrcY int
	SrcW, SrcH int
	DstX, DstY int
	DstW, DstH int
}

// State is the pending (double-buffered) configuration a caller
// builds up with the Set* setters and submits via test_state or
// commit_state (spec §3 "OutputState").
type State struct {
	committed Committed

	Enabled bool

	Mode       *drm.Mode
	CustomMode CustomMode

	Scale     float64
	Transform Transform

	AdaptiveSyncEnabled bool
	RenderFormat        buffer.FourCC
	Subpixel            Subpixel

	Buffer *buffer.Buffer
	Damage []drm.Rect

	Gamma *drm.GammaLUT

	Layers []Layer

	TearingPageFlip      bool
	AllowReconfiguration bool
}

// NewState returns an empty pending state with nothing committed.
func NewState() *State { return &State{} }

// Has reports whether field(s) c are present in this state.
func (s *State) Has(c Committed) bool { return s.committed&c == c }

// Clear removes field(s) c from this state, dropping the no-op as
// spec §4.4 commit_state step 1 requires ("drop fields that would be
// no-ops").
func (s *State) Clear(c Committed) { s.committed &^= c }

// Empty reports whether no field is set.
func (s *State) Empty() bool { return s.committed == 0 }

func (s *State) SetEnabled(v bool) *State {
	s.Enabled = v
	s.committed |= CommittedEnabled
	return s
}

func (s *State) SetMode(m *drm.Mode) *State {
	s.Mode = m
	s.committed |= CommittedMode
	s.committed &^= CommittedCustomMode
	return s
}

func (s *State) SetCustomMode(m CustomMode) *State {
	s.CustomMode = m
	s.committed |= CommittedCustomMode
	s.committed &^= CommittedMode
	return s
}

func (s *State) SetScale(v float64) *State {
	s.Scale = v
	s.committed |= CommittedScale
	return s
}

func (s *State) SetTransform(t Transform) *State {
	s.Transform = t
	s.committed |= CommittedTransform
	return s
}

func (s *State) SetAdaptiveSync(v bool) *State {
	s.AdaptiveSyncEnabled = v
	s.committed |= CommittedAdaptiveSync
	return s
}

func (s *State) SetRenderFormat(f buffer.FourCC) *State {
	s.RenderFormat = f
	s.committed |= CommittedRenderFormat
	return s
}

func (s *State) SetSubpixel(v Subpixel) *State {
	s.Subpixel = v
	s.committed |= CommittedSubpixel
	return s
}

func (s *State) SetBuffer(b *buffer.Buffer, damage []drm.Rect) *State {
	s.Buffer = b
	s.Damage = damage
	s.committed |= CommittedBuffer | CommittedDamage
	return s
}

func (s *State) SetGamma(g *drm.GammaLUT) *State {
	s.Gamma = g
	s.committed |= CommittedGamma
	return s
}

func (s *State) SetLayers(layers []Layer) *State {
	s.Layers = layers
	s.committed |= CommittedLayers
	return s
}

func (s *State) SetTearingPageFlip(v bool) *State {
	s.TearingPageFlip = v
	s.committed |= CommittedTearingPageFlip
	return s
}

func (s *State) SetAllowReconfiguration(v bool) *State {
	s.AllowReconfiguration = v
	s.committed |= CommittedAllowReconfiguration
	return s
}
