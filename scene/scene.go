// Package scene implements the retained 2D tree a compositor attaches
// client buffers and solid-color rects to, and the machinery that
// turns it into per-output commits: damage propagation, active-output
// tracking, render-list construction and the direct scan-out test
// (spec §4.5 "Scene graph").
package scene

import (
	"errors"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/bitvec"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

var (
	errNilNode = errors.New("scene: Nil node")
	errCycle   = errors.New("scene: reparenting would create a cycle")
	errKind    = errors.New("scene: operation not valid for this node kind")
)

// nodeData is a node's payload: the fields vary by Kind, with the
// irrelevant ones simply left at their zero value (a KindSubtree node
// never looks at color, a KindRect node never looks at buf).
type nodeData struct {
	node    Node
	kind    Kind
	enabled bool

	localX, localY int // offset from the parent's origin
	w, h           int // own box size; 0x0 for a bare KindSubtree

	// KindRect.
	color render.Color
	blend render.BlendMode

	// KindBuffer.
	buf       *buffer.Buffer
	srcBox    render.Rect
	transform output.Transform
	opaque    bool // the node's whole box is known fully opaque

	activeOutputs uint64
	primaryOutput *SceneOutput
	lastFeedback  *Feedback
}

// NodeOutputEvent is the payload of Scene.EnterSignal/LeaveSignal
// (spec §4.5 "A buffer node... enters/leaves an output").
type NodeOutputEvent struct {
	Node   Node
	Output *SceneOutput
}

// Scene is a retained tree of subtree/rect/buffer nodes rendered onto
// a set of outputs (spec §3 "Scene").
type Scene struct {
	tree
	outputs    []*SceneOutput
	outputIdx  bitvec.V[uint64]
	debugHighlight bool // force the GPU path, used to visualize damage
	renderer   rendererFormats // set via SetRenderer; nil suppresses feedback

	EnterSignal   event.Signal[NodeOutputEvent]
	LeaveSignal   event.Signal[NodeOutputEvent]
	FeedbackSignal event.Signal[NodeFeedbackEvent]
}

// New creates an empty Scene.
func New() *Scene { return &Scene{} }

// InsertSubtree adds a grouping node with no paint of its own, a
// convenient anchor for moving several children together.
func (s *Scene) InsertSubtree(parent Node) Node { return s.insert(KindSubtree, parent) }

// InsertRect adds a flat-colored box node.
func (s *Scene) InsertRect(parent Node) Node { return s.insert(KindRect, parent) }

// InsertBuffer adds a client-buffer node.
func (s *Scene) InsertBuffer(parent Node) Node { return s.insert(KindBuffer, parent) }

// Remove deletes n and its subtree.
func (s *Scene) Remove(n Node) {
	if n == Nil {
		return
	}
	// Buffer nodes leaving the tree also leave every output they
	// were active on.
	s.walkSubtree(n, func(cur Node) {
		d := s.get(cur)
		if d.kind == KindBuffer {
			s.setActiveOutputs(cur, 0, nil)
		}
	})
	s.remove(n)
}

// Kind reports n's node kind.
func (s *Scene) Kind(n Node) Kind { return s.get(n).kind }

// Enabled reports whether n currently participates in render-list
// construction.
func (s *Scene) Enabled(n Node) bool { return s.get(n).enabled }

// SetEnabled toggles whether n (and its subtree) is visible.
func (s *Scene) SetEnabled(n Node, v bool) {
	d := s.get(n)
	if d.enabled == v {
		return
	}
	old := s.WorldRect(n)
	d.enabled = v
	updated := old
	if !v {
		updated = render.Rect{}
	}
	s.damageNode(n, old, updated)
}

// SetPosition sets n's offset relative to its parent's origin (spec
// §3 "position").
func (s *Scene) SetPosition(n Node, x, y int) {
	d := s.get(n)
	old := s.WorldRect(n)
	d.localX, d.localY = x, y
	updated := s.WorldRect(n)
	s.damageNode(n, old, updated)
}

// SetSize sets a KindRect or KindBuffer node's own box size.
func (s *Scene) SetSize(n Node, w, h int) {
	d := s.get(n)
	if d.kind == KindSubtree {
		panic(errKind)
	}
	old := s.WorldRect(n)
	d.w, d.h = w, h
	updated := s.WorldRect(n)
	s.damageNode(n, old, updated)
}

// SetRect configures a KindRect node's paint.
func (s *Scene) SetRect(n Node, color render.Color, blend render.BlendMode) {
	d := s.get(n)
	if d.kind != KindRect {
		panic(errKind)
	}
	d.color, d.blend = color, blend
	s.damageNode(n, s.WorldRect(n), s.WorldRect(n))
}

// SetBuffer attaches buf (with the given source crop and transform)
// to a KindBuffer node. srcBox empty means "the whole buffer" (spec
// §3 "an unset src_box means the whole buffer").
func (s *Scene) SetBuffer(n Node, buf *buffer.Buffer, srcBox render.Rect, transform output.Transform) {
	d := s.get(n)
	if d.kind != KindBuffer {
		panic(errKind)
	}
	old := s.WorldRect(n)
	d.buf, d.srcBox, d.transform = buf, srcBox, transform
	if buf != nil {
		d.w, d.h = buf.Width(), buf.Height()
	} else {
		d.w, d.h = 0, 0
	}
	updated := s.WorldRect(n)
	s.damageNode(n, old, updated)
	s.updateActiveOutputs(n)
}

// SetOpaque marks whether a KindBuffer or KindRect node's whole box
// is known fully opaque, letting render-list construction prune
// anything behind it (spec §4.5 "Render-list construction").
func (s *Scene) SetOpaque(n Node, v bool) {
	d := s.get(n)
	if d.kind == KindSubtree {
		panic(errKind)
	}
	d.opaque = v
}

// Reparent moves n (and its subtree) under newParent, becoming the
// new sibling-chain head there. It is an error for newParent to be n
// or one of n's descendants.
func (s *Scene) Reparent(n, newParent Node) error {
	old := s.WorldRect(n)
	if err := s.reparent(n, newParent); err != nil {
		return err
	}
	updated := s.WorldRect(n)
	s.damageNode(n, old, updated)
	return nil
}

// WorldRect returns n's box in layout space.
func (s *Scene) WorldRect(n Node) render.Rect {
	x, y := s.worldPos(n)
	d := s.get(n)
	return render.Rect{X: x, Y: y, W: d.w, H: d.h}
}

// ActiveOutputs returns the bitmask of SceneOutputs a buffer node
// currently intersects (spec §4.5 "active_outputs").
func (s *Scene) ActiveOutputs(n Node) uint64 { return s.get(n).activeOutputs }

// PrimaryOutput returns the SceneOutput a buffer node has the largest
// intersection area with, or nil (spec §4.5 "primary_output").
func (s *Scene) PrimaryOutput(n Node) *SceneOutput { return s.get(n).primaryOutput }

// walkSubtree calls fn for n and every descendant of n.
func (s *Scene) walkSubtree(n Node, fn func(Node)) {
	fn(n)
	sub := s.nodes[n-1].sub
	if sub == Nil {
		return
	}
	stk := []Node{sub}
	for len(stk) > 0 {
		c := stk[len(stk)-1]
		stk = stk[:len(stk)-1]
		fn(c)
		if x := s.nodes[c-1].next; x != Nil {
			stk = append(stk, x)
		}
		if x := s.nodes[c-1].sub; x != Nil {
			stk = append(stk, x)
		}
	}
}

// damageNode unions old and updated into every output's damage ring
// (spec §4.5 "Damage propagation": a node change damages the union of
// its rect before and after the change).
func (s *Scene) damageNode(n Node, old, updated render.Rect) {
	region := unionRenderRect(old, updated)
	if region.Empty() {
		return
	}
	for _, so := range s.outputs {
		clipped, ok := intersectRenderRect(region, so.layoutRect())
		if !ok {
			continue
		}
		so.ring.Add(toDRMRect(localizeToOutput(clipped, so)))
	}
	if s.get(n).kind == KindBuffer {
		s.updateActiveOutputs(n)
	}
}

// updateActiveOutputs recomputes a buffer node's active_outputs mask
// and primary_output, emitting Enter/LeaveSignal only for outputs
// whose membership actually changed (spec §4.5).
func (s *Scene) updateActiveOutputs(n Node) {
	wr := s.WorldRect(n)
	var mask uint64
	var primary *SceneOutput
	var primaryArea int
	for _, so := range s.outputs {
		clipped, ok := intersectRenderRect(wr, so.layoutRect())
		if !ok {
			continue
		}
		mask |= so.Bit()
		area := clipped.W * clipped.H
		if area > primaryArea {
			primaryArea, primary = area, so
		}
	}
	s.setActiveOutputs(n, mask, primary)
}

func (s *Scene) setActiveOutputs(n Node, mask uint64, primary *SceneOutput) {
	d := s.get(n)
	old := d.activeOutputs
	oldPrimary := d.primaryOutput
	entered := mask &^ old
	left := old &^ mask
	d.activeOutputs = mask
	d.primaryOutput = primary
	for _, so := range s.outputs {
		if entered&so.Bit() != 0 {
			s.EnterSignal.Emit(NodeOutputEvent{Node: n, Output: so})
		}
		if left&so.Bit() != 0 {
			s.LeaveSignal.Emit(NodeOutputEvent{Node: n, Output: so})
		}
	}
	if primary != oldPrimary {
		s.sendFeedback(n, primary)
	}
}

func (s *Scene) recomputeAllActiveOutputs() {
	for i := range s.data {
		if s.data[i].kind == KindBuffer {
			s.updateActiveOutputs(s.data[i].node)
		}
	}
}

// SetDebugHighlight forces every commit through the GPU compositing
// path, skipping the direct scan-out test; used to visualize damage
// regions (spec §9 debug aid, mirrors wlroots' WLR_SCENE_DEBUG_DAMAGE).
func (s *Scene) SetDebugHighlight(v bool) { s.debugHighlight = v }
