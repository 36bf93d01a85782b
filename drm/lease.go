package drm

import "fmt"

// CreateLease packages conn's CRTC, primary plane and (if present)
// cursor plane into a new kernel lease, and marks every object leased
// so the core refuses to touch them (spec §4.3 "DRM leases", §5
// "Shared resources").
//
// conn must currently be bound to a CRTC; the lease always includes
// the connector, its CRTC, and the CRTC's primary plane, plus the
// cursor plane when withCursor is true.
func (d *Device) CreateLease(conn *Connector, withCursor bool) (*Lease, error) {
	crtc := conn.CurrentCRTC
	if crtc == nil {
		return nil, fmt.Errorf("drm: connector %s has no CRTC to lease", conn.Name())
	}
	if conn.Leased() || crtc.Leased() {
		return nil, ErrLeased
	}

	objIDs := []uint32{conn.ID, crtc.ID}
	if crtc.Primary != nil {
		objIDs = append(objIDs, crtc.Primary.ID)
	}
	if withCursor && crtc.Cursor != nil {
		objIDs = append(objIDs, crtc.Cursor.ID)
	}

	fd, leaseID, err := d.KMS.CreateLease(objIDs)
	if err != nil {
		return nil, err
	}

	l := &Lease{id: leaseID, fd: fd, objects: objIDs}
	conn.LeaseHolder = l
	crtc.leaseHolder = l
	if crtc.Primary != nil {
		crtc.Primary.leaseHolder = l
	}
	if withCursor && crtc.Cursor != nil {
		crtc.Cursor.leaseHolder = l
	}
	return l, nil
}

// FD returns the lease file descriptor handed to the DRM lease client
// (e.g. a nested compositor or VR runtime), for passing across a
// domain socket.
func (l *Lease) FD() int { return l.fd }

// RevokeLease terminates l, clearing the leased flag on every object
// it covered so the core may use them again.
func (d *Device) RevokeLease(l *Lease) error {
	if err := d.KMS.RevokeLease(l.id); err != nil {
		return err
	}
	for _, conn := range d.Connectors {
		if conn.LeaseHolder == l {
			conn.LeaseHolder = nil
		}
	}
	for _, crtc := range d.CRTCs {
		if crtc.leaseHolder == l {
			crtc.leaseHolder = nil
		}
		if crtc.Primary != nil && crtc.Primary.leaseHolder == l {
			crtc.Primary.leaseHolder = nil
		}
		if crtc.Cursor != nil && crtc.Cursor.leaseHolder == l {
			crtc.Cursor.leaseHolder = nil
		}
	}
	return nil
}
