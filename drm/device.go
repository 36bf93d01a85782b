// Package drm models one DRM device's resources (connectors, CRTCs,
// planes) and the three commit strategies (atomic, legacy,
// liftoff-assisted atomic) a compositor core picks between, plus the
// CRTC allocation solver and DRM lease lifecycle (spec §4.2-§4.3).
package drm

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gviegas/kmscore/buffer"
)

// ErrCapability is returned when a DRM device lacks a capability the
// core requires unconditionally (spec §4.2).
var ErrCapability = errors.New("drm: required capability not supported")

// Caps records the capability bits probed at device-open time (spec
// §4.2).
type Caps struct {
	PrimeImport        bool
	PrimeExport        bool // required only for secondary GPUs
	UniversalPlanes     bool
	CrtcInVBlankEvent   bool
	TimestampMonotonic  bool
	AddFB2Modifiers     bool
	Atomic              bool
	AsyncPageFlip       bool
}

// Device is per-DRM-device state: its connectors, CRTCs and planes,
// the Interface implementation in use, and process-wide environment
// gating (spec §2 L3, §4.2).
type Device struct {
	Path      string
	Secondary bool // true for a non-primary GPU in a multi-GPU setup

	KMS  KMS
	Caps Caps
	Impl Interface

	Connectors []*Connector
	CRTCs      []*CRTC
	Planes     []*Plane

	log *log.Logger

	inFlight map[uint32]bool // connector id -> non-blocking commit pending
}

// NewDevice opens dev against kms, asserting the capabilities spec
// §4.2 requires unconditionally (PRIME import, universal planes,
// CRTC_IN_VBLANK_EVENT, TIMESTAMP_MONOTONIC), requiring PRIME export
// additionally when secondary is true, and picking an Interface per
// the env gating table in spec §6 (DRM_NO_ATOMIC, DRM_FORCE_LIBLIFTOFF).
func NewDevice(path string, kms KMS, caps Caps, secondary bool, logger *log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.Default()
	}
	if !caps.PrimeImport || !caps.UniversalPlanes || !caps.CrtcInVBlankEvent || !caps.TimestampMonotonic {
		return nil, fmt.Errorf("%w: missing PRIME_IMPORT/UNIVERSAL_PLANES/CRTC_IN_VBLANK_EVENT/TIMESTAMP_MONOTONIC", ErrCapability)
	}
	if secondary && !caps.PrimeExport {
		return nil, fmt.Errorf("%w: secondary GPU requires PRIME_EXPORT", ErrCapability)
	}
	if _, ok := os.LookupEnv("DRM_NO_MODIFIERS"); ok {
		caps.AddFB2Modifiers = false
	}

	d := &Device{
		Path:      path,
		Secondary: secondary,
		KMS:       kms,
		Caps:      caps,
		log:       logger,
		inFlight:  make(map[uint32]bool),
	}

	_, forceLiftoff := os.LookupEnv("DRM_FORCE_LIBLIFTOFF")
	_, noAtomic := os.LookupEnv("DRM_NO_ATOMIC")

	switch {
	case noAtomic || !caps.Atomic:
		d.Impl = newLegacyInterface()
		d.log.Printf("drm: using legacy interface for %s", path)
	case forceLiftoff:
		d.Impl = newLiftoffInterface()
		d.log.Printf("drm: using liftoff-assisted interface for %s", path)
	default:
		d.Impl = newAtomicInterface()
		d.log.Printf("drm: using atomic interface for %s", path)
	}
	if err := d.Impl.Init(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Close tears down the Interface implementation.
func (d *Device) Close() {
	if d.Impl != nil {
		d.Impl.Finish(d)
	}
}

// CommitConnector is the entry point output.Output calls into: apply
// or test in as the new state of conn's current CRTC, refusing leased
// objects (spec §5 "Shared resources") and non-blocking commits that
// would race an in-flight flip (spec §4.3 "Flags").
func (d *Device) CommitConnector(conn *Connector, in CommitInput, flags Flags, testOnly bool) (bool, error) {
	if conn.Leased() || (conn.CurrentCRTC != nil && conn.CurrentCRTC.Leased()) {
		return false, ErrLeased
	}
	blocking := in.ModeChanged || in.GammaChanged
	if !testOnly && !blocking && d.inFlight[conn.ID] {
		return false, ErrInFlight
	}
	ok, err := d.Impl.CrtcCommit(conn, in, flags, testOnly)
	if !testOnly && ok && !blocking && flags&FlagPageFlipEvent != 0 {
		d.inFlight[conn.ID] = true
	}
	return ok, err
}

// PageFlipComplete is called by the event-loop integration when the
// kernel reports a page-flip completion for conn, clearing the
// in-flight marker so a subsequent non-blocking commit is allowed
// (spec §4.3 "Flags").
func (d *Device) PageFlipComplete(connID uint32) {
	delete(d.inFlight, connID)
}

// PickFormat intersects displayFormats (what the plane/connector
// supports) with renderFormats (what the renderer can produce) for
// wanted, returning the chosen modifier set. If the intersection is
// empty, callers should retry with implicit-modifier-only sets to
// accommodate drivers lacking explicit modifier support (spec §4.3
// "Format picking").
func PickFormat(wanted buffer.FourCC, displayFormats, renderFormats *buffer.FormatSet) (*buffer.FormatSet, error) {
	a := buffer.NewFormatSet()
	for _, m := range displayFormats.Modifiers(wanted) {
		a.Add(wanted, m)
	}
	b := buffer.NewFormatSet()
	for _, m := range renderFormats.Modifiers(wanted) {
		b.Add(wanted, m)
	}
	out := buffer.Intersect(a, b)
	if out.Empty() {
		return nil, fmt.Errorf("drm: no compatible modifier for format %v", wanted)
	}
	return out, nil
}

// ScanConnectors re-enumerates connector hotplug state. Real
// implementations call this from the udev/hotplug event handler
// (spec §4.2 "Hot-plug events cause a connector scan").
func (d *Device) ScanConnectors(fresh []*Connector) {
	for _, c := range fresh {
		c.WithKMS(d.KMS)
	}
	d.Connectors = fresh
}

// ApplyMapping binds each connector in mapping (connector id -> CRTC
// id, as returned by Solve) to its CRTC, unbinding any CRTC or
// connector left out of mapping. Used by a hot-plug connector scan,
// which unlike Resume must not disturb CRTCs whose connector is
// unaffected by the plug event.
func (d *Device) ApplyMapping(mapping map[uint32]uint32) {
	byCrtcID := make(map[uint32]*CRTC, len(d.CRTCs))
	for _, c := range d.CRTCs {
		byCrtcID[c.ID] = c
	}
	wanted := make(map[uint32]bool, len(mapping))
	for _, crtcID := range mapping {
		wanted[crtcID] = true
	}
	for _, c := range d.CRTCs {
		if !wanted[c.ID] {
			c.bind(nil)
		}
	}
	byConnID := make(map[uint32]*Connector, len(d.Connectors))
	for _, conn := range d.Connectors {
		byConnID[conn.ID] = conn
	}
	for connID, crtcID := range mapping {
		if conn, ok := byConnID[connID]; ok {
			if crtc, ok := byCrtcID[crtcID]; ok {
				crtc.bind(conn)
			}
		}
	}
}

// Resume reasserts every enabled connector's last known state after a
// session VT-switch resume (spec §4.2 "On session resume"): every
// CRTC is first disabled via legacy SetCrtc(0), then each connector
// that wants a CRTC is re-committed, since the previous DRM master
// may have left KMS in an undefined state and the connector/CRTC
// mapping may have changed.
func (d *Device) Resume(solve func() map[*Connector]*CRTC, recommit func(*Connector)) {
	for _, c := range d.CRTCs {
		d.KMS.SetCrtc(c.ID, 0, nil, nil)
		c.bind(nil)
	}
	mapping := solve()
	for conn, crtc := range mapping {
		crtc.bind(conn)
	}
	for _, conn := range d.Connectors {
		if conn.WantsCRTC() && conn.CurrentCRTC != nil {
			recommit(conn)
		}
	}
}
