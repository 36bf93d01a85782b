package drm

import "github.com/gviegas/kmscore/buffer"

// PlaneType is the kernel's DRM_PLANE_TYPE_*.
type PlaneType int

const (
	PlanePrimary PlaneType = iota
	PlaneCursor
	PlaneOverlay
)

func (t PlaneType) String() string {
	switch t {
	case PlanePrimary:
		return "primary"
	case PlaneCursor:
		return "cursor"
	default:
		return "overlay"
	}
}

// FB identifies a kernel framebuffer object bound to a plane.
type FB struct {
	ID     uint32
	Buf    *buffer.Buffer
	Format buffer.FourCC
	Mod    uint64
	Width, Height int
}

// Plane is a hardware layer on a CRTC (spec §3 "DRM connector / CRTC
// / plane").
type Plane struct {
	ID              uint32
	Type            PlaneType
	Formats         *buffer.FormatSet
	PossibleCRTCs   uint32 // bitmask of CRTC indices this plane can be bound to
	ownerCRTC       uint32 // id of the CRTC currently owning this plane, 0 if none
	leaseHolder     *Lease

	Current *FB
	Queued  *FB
	Pending *FB
}

// Leased reports whether a lease holder currently owns this plane.
func (p *Plane) Leased() bool { return p.leaseHolder != nil }

// CanBind reports whether format/modifier is acceptable for this
// plane's framebuffer (spec §3 invariant: "format/modifier for a
// plane's framebuffer must be in its supported set").
func (p *Plane) CanBind(format buffer.FourCC, mod uint64) bool {
	if p.Formats == nil {
		return false
	}
	return p.Formats.Has(format, mod)
}

// OwnerCRTC returns the id of the CRTC that currently owns this
// plane, or 0 if unowned.
func (p *Plane) OwnerCRTC() uint32 { return p.ownerCRTC }
