package scene

import "github.com/gviegas/kmscore/buffer"

// Feedback is the Linux DMA-BUF feedback sent to a buffer node's
// client: the renderer's general import formats (main device tranche)
// and the formats that would let this node go through direct scan-out
// on its current primary output (scan-out tranche) (spec §4.5 "Linux
// DMA-BUF feedback").
type Feedback struct {
	MainFormats    *buffer.FormatSet
	ScanoutFormats *buffer.FormatSet
}

// equal reports whether fb and other carry the same formats, used to
// suppress repeat feedback with unchanged content.
func (fb Feedback) equal(other Feedback) bool {
	return formatSetEqual(fb.MainFormats, other.MainFormats) &&
		formatSetEqual(fb.ScanoutFormats, other.ScanoutFormats)
}

func formatSetEqual(a, b *buffer.FormatSet) bool {
	if a == nil || b == nil {
		return a == b
	}
	af, bf := a.Formats(), b.Formats()
	if len(af) != len(bf) {
		return false
	}
	for i, f := range af {
		if f != bf[i] {
			return false
		}
		am, bm := a.Modifiers(f), b.Modifiers(f)
		if len(am) != len(bm) {
			return false
		}
		for j := range am {
			if am[j] != bm[j] {
				return false
			}
		}
	}
	return true
}

// NodeFeedbackEvent is the payload of Scene.FeedbackSignal.
type NodeFeedbackEvent struct {
	Node     Node
	Feedback Feedback
}

// SetRenderer records the renderer whose import formats back
// SendFeedback. A Scene with no renderer set never emits feedback.
func (s *Scene) SetRenderer(r rendererFormats) { s.renderer = r }

// rendererFormats is the subset of render.Renderer feedback needs; a
// plain interface (rather than importing render.Renderer by name)
// keeps this file usable with any renderer implementation, including
// test fakes that only stub the format queries.
type rendererFormats interface {
	GetDMABufTextureFormats() *buffer.FormatSet
}

// sendFeedback computes and, unless identical to the last feedback
// sent for n, emits the DMA-BUF feedback for n's new primary output.
// Called whenever a buffer node's primary_output changes (spec §4.5:
// "When a buffer node's primary output changes...").
func (s *Scene) sendFeedback(n Node, primary *SceneOutput) {
	if s.renderer == nil {
		return
	}
	d := s.get(n)
	if primary == nil {
		d.lastFeedback = nil
		return
	}
	main := s.renderer.GetDMABufTextureFormats()
	scanout := buffer.Intersect(primary.Output.GetPrimaryFormats(buffer.CapDMABuf), main)
	fb := Feedback{MainFormats: main, ScanoutFormats: scanout}
	if d.lastFeedback != nil && d.lastFeedback.equal(fb) {
		return
	}
	d.lastFeedback = &fb
	s.FeedbackSignal.Emit(NodeFeedbackEvent{Node: n, Feedback: fb})
}
