package scene

import (
	"github.com/gviegas/kmscore/drm"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

// SceneOutput binds one output.Output into a Scene's layout space: a
// position (the output's top-left corner in layout coordinates) plus
// the per-output damage history the direct/composited commit paths
// consume (spec §4.5 "Scene", §4.6 "DamageRing").
type SceneOutput struct {
	Output *output.Output
	X, Y   int

	// index is this output's bit position in every buffer node's
	// active_outputs mask, assigned on AddOutput and freed on
	// RemoveOutput; bitvec.V's first-fit search hands the lowest free
	// index to the next AddOutput, so a freed index is reused.
	index int
	ring   *DamageRing
}

// Ring returns so's damage history.
func (so *SceneOutput) Ring() *DamageRing { return so.ring }

// Bit returns the single-bit mask identifying so in a node's
// active_outputs bitmask.
func (so *SceneOutput) Bit() uint64 { return 1 << uint(so.index) }

// layoutRect returns so's box in layout space.
func (so *SceneOutput) layoutRect() render.Rect {
	return render.Rect{X: so.X, Y: so.Y, W: so.Output.Width, H: so.Output.Height}
}

// AddOutput registers o at position (x, y) in layout space, returning
// the SceneOutput handle used for commits and hit-testing (spec §4.5
// "Scene" "add_output(output, position)").
func (s *Scene) AddOutput(o *output.Output, x, y int) *SceneOutput {
	if s.outputIdx.Rem() == 0 {
		s.outputIdx.Grow(1)
	}
	idx, ok := s.outputIdx.Search()
	if !ok {
		panic("scene: unexpected failure from bitvec.V.Search")
	}
	s.outputIdx.Set(idx)
	so := &SceneOutput{
		Output: o,
		X:      x,
		Y:      y,
		index:  idx,
		ring:   NewDamageRing(drm.Rect{X: 0, Y: 0, W: o.Width, H: o.Height}),
	}
	s.outputs = append(s.outputs, so)
	return so
}

// RemoveOutput unregisters so, clearing its bit from every buffer
// node's active_outputs mask (spec §4.5 "remove_output(output)").
func (s *Scene) RemoveOutput(so *SceneOutput) {
	for i, x := range s.outputs {
		if x == so {
			s.outputs = append(s.outputs[:i], s.outputs[i+1:]...)
			break
		}
	}
	s.outputIdx.Unset(so.index)
	for i := range s.data {
		s.data[i].activeOutputs &^= so.Bit()
		if s.data[i].primaryOutput == so {
			s.data[i].primaryOutput = nil
		}
	}
}

// MoveOutput repositions so in layout space, e.g. after the
// compositor's output layout changes.
func (s *Scene) MoveOutput(so *SceneOutput, x, y int) {
	so.X, so.Y = x, y
	s.recomputeAllActiveOutputs()
}
