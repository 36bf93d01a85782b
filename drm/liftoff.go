package drm

import (
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
)

// LayerFeedback reports, for one scene layer that could not be
// assigned a hardware plane this frame, the DMA-BUF formats that
// candidate planes would accept, so the client can reallocate into a
// scan-out-capable layout next frame (spec §4.3 "Liftoff-assisted").
type LayerFeedback struct {
	Layer            int // index into the CommitInput.Layers slice
	NeedsComposition bool
	Candidates       *buffer.FormatSet
}

// candidateFormats unions the format sets of every overlay plane on
// crtc, for use as LayerFeedback.Candidates.
func candidateFormats(crtc *CRTC) *buffer.FormatSet {
	out := buffer.NewFormatSet()
	for _, p := range crtc.Overlays {
		if p.Formats == nil {
			continue
		}
		for _, f := range p.Formats.Formats() {
			for _, m := range p.Formats.Modifiers(f) {
				out.Add(f, m)
			}
		}
	}
	return out
}

// liftoffInterface implements Interface by running a greedy overlay
// assignment over in.Layers only to produce per-layer feedback, then
// committing through atomicInterface unchanged (spec §4.3
// "Liftoff-assisted path"). The assignment is not applied: overlay
// planes are never programmed, only the primary and cursor planes.
type liftoffInterface struct {
	atomic *atomicInterface

	// LayerFeedbackSignal fires once per commit with the feedback
	// for every layer that did not get a hardware plane.
	LayerFeedbackSignal event.Signal[[]LayerFeedback]
}

func newLiftoffInterface() *liftoffInterface {
	return &liftoffInterface{atomic: newAtomicInterface()}
}

func (l *liftoffInterface) Init(dev *Device) error  { return l.atomic.Init(dev) }
func (l *liftoffInterface) Finish(dev *Device)      { l.atomic.Finish(dev) }

// assignOverlays greedily assigns each layer in in.Layers to the
// first free overlay plane on crtc whose format set accepts the
// layer's framebuffer, in list order (front-to-back callers should
// pre-sort in.Layers so the most important layers win scarce planes).
// Layers that get no plane are reported as needing composition.
func assignOverlays(crtc *CRTC, layers []LayerFB) (assigned map[int]*Plane, feedback []LayerFeedback) {
	assigned = make(map[int]*Plane)
	used := make(map[uint32]bool)
	for i, l := range layers {
		var picked *Plane
		for _, p := range crtc.Overlays {
			if used[p.ID] {
				continue
			}
			if l.FB != nil && p.CanBind(l.FB.Format, l.FB.Mod) {
				picked = p
				break
			}
		}
		if picked != nil {
			assigned[i] = picked
			used[picked.ID] = true
		} else {
			feedback = append(feedback, LayerFeedback{
				Layer:            i,
				NeedsComposition: true,
				Candidates:       candidateFormats(crtc),
			})
		}
	}
	return
}

func (l *liftoffInterface) CrtcCommit(conn *Connector, in CommitInput, flags Flags, testOnly bool) (bool, error) {
	crtc := conn.CurrentCRTC
	if crtc == nil {
		return false, ErrHardwareRefused
	}
	_, feedback := assignOverlays(crtc, in.Layers)
	ok, err := l.atomic.CrtcCommit(conn, in, flags, testOnly)
	if ok && !testOnly {
		l.LayerFeedbackSignal.Emit(feedback)
	}
	return ok, err
}
