package scene

import (
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

// Commit builds so's render list and drives a single output commit:
// a direct scan-out when the six-condition test passes and the
// backend accepts it, falling back to GPU compositing through r
// otherwise (spec §4.5 "Direct scan-out test", "GPU compositing").
func (s *Scene) Commit(so *SceneOutput, r render.Renderer) (bool, error) {
	list := s.buildRenderList(so)

	if buf, ok := s.directScanoutTest(so, list); ok {
		st := output.NewState().SetBuffer(buf, so.ring.GetBufferDamage(1))
		testOK, err := so.Output.TestState(st)
		if err != nil {
			return false, err
		}
		if testOK {
			committed, err := so.Output.CommitState(st)
			if err != nil {
				return false, err
			}
			if committed {
				so.ring.Rotate()
			}
			return committed, nil
		}
		// The backend refused a direct scan-out it could accept in
		// principle (e.g. a plane it cannot currently allocate);
		// fall through to the composited path for this frame.
	}

	return s.compositeAndCommit(so, list, r)
}

// compositeAndCommit renders list into a swapchain back buffer with r
// and commits that buffer (spec §4.5 "GPU compositing").
func (s *Scene) compositeAndCommit(so *SceneOutput, list []RenderItem, r render.Renderer) (bool, error) {
	buf, age, err := so.Output.Swapchain.Acquire()
	if err != nil {
		return false, err
	}

	pass, err := r.BeginBufferPass(buf, render.PassOptions{})
	if err != nil {
		so.Output.Swapchain.Release(buf)
		return false, err
	}

	damage := so.ring.GetBufferDamage(age)

	// A black background covers the damaged area first; any node
	// drawn on top (including an opaque one that pruned the list)
	// naturally paints over it, so there is no need to subtract
	// opaque regions from the fill itself (spec §4.5 "draw a black
	// background in the damaged area minus opaque nodes").
	black := render.Color{R: 0, G: 0, B: 0, A: 1}
	for _, dr := range damage {
		pass.AddRect(render.Rect{X: dr.X, Y: dr.Y, W: dr.W, H: dr.H}, black, render.BlendNone, nil)
	}

	// list is front-to-back (for pruning); submit back-to-front so
	// later draws correctly paint over earlier ones.
	for i := len(list) - 1; i >= 0; i-- {
		item := list[i]
		d := &s.data[s.nodes[item.Node-1].data]
		switch d.kind {
		case KindRect:
			pass.AddRect(item.Rect, d.color, d.blend, nil)
		case KindBuffer:
			tex, err := r.TextureFromBuffer(d.buf)
			if err != nil {
				continue
			}
			pass.AddTexture(tex, d.srcBox, item.Rect, d.transform, nil, render.FilterLinear, d.blend, 1)
		}
	}
	s.drawSoftwareCursor(so, r, pass)

	if err := pass.Submit(); err != nil {
		so.Output.Swapchain.Release(buf)
		return false, err
	}

	st := output.NewState().SetBuffer(buf, damage)
	committed, err := so.Output.CommitState(st)
	if err != nil {
		so.Output.Swapchain.Release(buf)
		return false, err
	}
	if committed {
		so.ring.Rotate()
	} else {
		so.Output.Swapchain.Release(buf)
	}
	return committed, nil
}

// drawSoftwareCursor composites the cursor image on top of the frame
// when the output has degraded to software cursor rendering (spec
// §4.4 "If hardware placement fails... the cursor degrades to a
// software cursor", P6).
func (s *Scene) drawSoftwareCursor(so *SceneOutput, r render.Renderer, pass render.RenderPass) {
	c := so.Output.Cursor
	if c == nil || !c.Enabled() || c.UseHardware() {
		return
	}
	tex, err := r.TextureFromBuffer(c.Buffer())
	if err != nil {
		return
	}
	hx, hy := c.Hotspot()
	dst := render.Rect{X: hx, Y: hy, W: tex.Width(), H: tex.Height()}
	pass.AddTexture(tex, render.Rect{}, dst, output.TransformNormal, nil, render.FilterLinear, render.BlendPremultiplied, 1)
}
