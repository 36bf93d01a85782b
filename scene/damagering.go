package scene

import "github.com/gviegas/kmscore/drm"

// damageRingLen is the fixed history depth N named in spec §4.6,
// sized to match the swapchain's own small ring capacity: a buffer
// can be at most that many frames stale before it is recycled.
const damageRingLen = 4

// damageRectCap is the rectangle-count cap named in spec §4.6 ("e.g.
// 20"); past this many distinct rectangles tracking each one
// separately costs more than just repainting their bounding box.
const damageRectCap = 20

// DamageRing tracks a pending damage region plus a fixed-size
// circular history of previously committed regions, giving
// get_buffer_damage(age) the information needed to repaint a stale
// swapchain slot correctly (spec §4.6).
type DamageRing struct {
	bounds   drm.Rect
	current  []drm.Rect
	previous [damageRingLen][]drm.Rect
	idx      int
}

// NewDamageRing creates a ring clamped to bounds (the output's pixel
// rectangle).
func NewDamageRing(bounds drm.Rect) *DamageRing {
	return &DamageRing{bounds: bounds}
}

// SetBounds updates the clamp rectangle, e.g. after a mode change
// resizes the output.
func (r *DamageRing) SetBounds(b drm.Rect) { r.bounds = b }

// Add clamps region to the output bounds and unions it into the
// current pending damage.
func (r *DamageRing) Add(region drm.Rect) {
	clamped, ok := intersectRect(region, r.bounds)
	if !ok {
		return
	}
	r.current = append(r.current, clamped)
}

// Rotate pushes the current pending region into the history ring and
// clears it; called after a successful commit (spec §4.6).
func (r *DamageRing) Rotate() {
	r.idx = (r.idx - 1 + damageRingLen) % damageRingLen
	r.previous[r.idx] = r.current
	r.current = nil
}

// GetBufferDamage returns the region that must be repainted for a
// swapchain slot last submitted age frames ago. age<=0 or age >
// damageRingLen means "assume nothing is valid", i.e. the whole
// output (spec §4.6).
func (r *DamageRing) GetBufferDamage(age int) []drm.Rect {
	if age <= 0 || age > damageRingLen {
		return []drm.Rect{r.bounds}
	}
	out := append([]drm.Rect{}, r.current...)
	for i := 0; i < age-1; i++ {
		j := (r.idx + i) % damageRingLen
		out = append(out, r.previous[j]...)
	}
	if len(out) == 0 {
		return nil
	}
	if len(out) > damageRectCap {
		out = []drm.Rect{boundingBox(out)}
	}
	return out
}

func intersectRect(a, b drm.Rect) (drm.Rect, bool) {
	x0, y0 := max(a.X, b.X), max(a.Y, b.Y)
	x1, y1 := min(a.X+a.W, b.X+b.W), min(a.Y+a.H, b.Y+b.H)
	if x1 <= x0 || y1 <= y0 {
		return drm.Rect{}, false
	}
	return drm.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

func boundingBox(rects []drm.Rect) drm.Rect {
	if len(rects) == 0 {
		return drm.Rect{}
	}
	minX, minY := rects[0].X, rects[0].Y
	maxX, maxY := rects[0].X+rects[0].W, rects[0].Y+rects[0].H
	for _, r := range rects[1:] {
		minX, minY = min(minX, r.X), min(minY, r.Y)
		maxX, maxY = max(maxX, r.X+r.W), max(maxY, r.Y+r.H)
	}
	return drm.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
