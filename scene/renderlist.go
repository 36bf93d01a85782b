package scene

import (
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/render"
)

// RenderItem is one entry of a render list: a single paintable node
// clipped to an output's box and translated to that output's local
// pixel space (spec §4.5 "Render-list construction").
type RenderItem struct {
	Node Node
	Kind Kind
	Rect render.Rect // destination box, output-local
}

// buildRenderList walks the tree front-to-back (sibling-chain heads
// first, matching insertion order) collecting every enabled, visible
// node that intersects so, and stops early the moment it passes a
// fully opaque node: everything behind an opaque node is invisible
// and need not be drawn (spec §4.5 "Render-list construction").
func (s *Scene) buildRenderList(so *SceneOutput) []RenderItem {
	outRect := so.layoutRect()
	var list []RenderItem
	pruned := false

	var walk func(n Node)
	walk = func(n Node) {
		for cur := n; cur != Nil && !pruned; cur = s.nodes[cur-1].next {
			d := &s.data[s.nodes[cur-1].data]
			if !d.enabled {
				continue
			}
			switch d.kind {
			case KindSubtree:
				if sub := s.nodes[cur-1].sub; sub != Nil {
					walk(sub)
				}
			case KindRect:
				if d.w <= 0 || d.h <= 0 || d.color.A <= 0 {
					continue
				}
				wr := s.WorldRect(cur)
				clipped, ok := intersectRenderRect(wr, outRect)
				if !ok {
					continue
				}
				list = append(list, RenderItem{Node: cur, Kind: KindRect, Rect: localizeToOutput(clipped, so)})
				if d.opaque && d.color.A >= 1 {
					pruned = true
					return
				}
			case KindBuffer:
				if d.buf == nil {
					continue
				}
				wr := s.WorldRect(cur)
				clipped, ok := intersectRenderRect(wr, outRect)
				if !ok {
					continue
				}
				list = append(list, RenderItem{Node: cur, Kind: KindBuffer, Rect: localizeToOutput(clipped, so)})
				if d.opaque {
					pruned = true
					return
				}
			}
		}
	}
	walk(s.next)
	return list
}

// directScanoutTest evaluates the six conditions of spec §4.5 "Direct
// scan-out test" against a freshly built render list, returning the
// client buffer to hand straight to the backend when every condition
// holds.
func (s *Scene) directScanoutTest(so *SceneOutput, list []RenderItem) (buf *buffer.Buffer, ok bool) {
	if s.debugHighlight {
		return nil, false
	}
	if len(list) != 1 || list[0].Kind != KindBuffer {
		return nil, false
	}
	if !so.Output.AllowsDirectScanout() {
		return nil, false
	}
	item := list[0]
	outRect := render.Rect{X: 0, Y: 0, W: so.Output.Width, H: so.Output.Height}
	if item.Rect != outRect {
		return nil, false
	}
	d := &s.data[s.nodes[item.Node-1].data]
	if d.transform != so.Output.Transform {
		return nil, false
	}
	if !d.srcBox.Empty() {
		full := render.Rect{X: 0, Y: 0, W: d.buf.Width(), H: d.buf.Height()}
		if d.srcBox != full {
			return nil, false
		}
	}
	return d.buf, true
}
