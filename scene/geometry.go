package scene

import (
	"github.com/gviegas/kmscore/drm"
	"github.com/gviegas/kmscore/render"
)

func intersectRenderRect(a, b render.Rect) (render.Rect, bool) {
	x0, y0 := max(a.X, b.X), max(a.Y, b.Y)
	x1, y1 := min(a.X+a.W, b.X+b.W), min(a.Y+a.H, b.Y+b.H)
	if x1 <= x0 || y1 <= y0 {
		return render.Rect{}, false
	}
	return render.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

func unionRenderRect(a, b render.Rect) render.Rect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	x0, y0 := min(a.X, b.X), min(a.Y, b.Y)
	x1, y1 := max(a.X+a.W, b.X+b.W), max(a.Y+a.H, b.Y+b.H)
	return render.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// localizeToOutput translates a rect already clipped to so's layout
// box into pixel coordinates local to so (spec §4.6's damage ring and
// render-list entries both live in output-local space, not layout
// space).
func localizeToOutput(r render.Rect, so *SceneOutput) render.Rect {
	return render.Rect{X: r.X - so.X, Y: r.Y - so.Y, W: r.W, H: r.H}
}

func toDRMRect(r render.Rect) drm.Rect {
	return drm.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
}
