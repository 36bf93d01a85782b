package drm

// CRTC pairs a mode with a set of planes to produce a scanout signal
// (spec §3 "DRM connector / CRTC / plane", GLOSSARY "CRTC").
type CRTC struct {
	ID          uint32
	Index       int // bit position in PossibleCRTCs masks
	ModeBlobID  uint32
	GammaBlobID uint32
	Primary     *Plane
	Cursor      *Plane // optional
	Overlays    []*Plane
	GammaSize   int // legacy gamma ramp size

	owner       *Connector // nil if unmatched
	leaseHolder *Lease
}

// Owner returns the Connector currently bound to this CRTC, or nil.
func (c *CRTC) Owner() *Connector { return c.owner }

// Leased reports whether a lease holder currently owns this CRTC.
func (c *CRTC) Leased() bool { return c.leaseHolder != nil }

// bind assigns connector as this CRTC's owner, maintaining the
// invariant that a CRTC is referenced by at most one connector and a
// connector references at most one CRTC (spec §3 invariant).
func (c *CRTC) bind(conn *Connector) {
	if c.owner != nil && c.owner.CurrentCRTC == c {
		c.owner.CurrentCRTC = nil
	}
	c.owner = conn
	if conn != nil {
		conn.CurrentCRTC = c
	}
}

// Planes returns every plane owned by this CRTC: primary, cursor (if
// present) and overlays, in that order.
func (c *CRTC) Planes() []*Plane {
	ps := make([]*Plane, 0, 2+len(c.Overlays))
	if c.Primary != nil {
		ps = append(ps, c.Primary)
	}
	if c.Cursor != nil {
		ps = append(ps, c.Cursor)
	}
	ps = append(ps, c.Overlays...)
	return ps
}
