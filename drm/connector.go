package drm

// ConnectorType mirrors the kernel's DRM_MODE_CONNECTOR_* enum, kept
// only to the extent needed to synthesize a stable name like
// "HDMI-A-1" (spec §3 "type+index").
type ConnectorType int

const (
	ConnectorUnknown ConnectorType = iota
	ConnectorHDMIA
	ConnectorDisplayPort
	ConnectoreDP
	ConnectorDSI
	ConnectorVirtual
	ConnectorWriteback
)

func (t ConnectorType) String() string {
	switch t {
	case ConnectorHDMIA:
		return "HDMI-A"
	case ConnectorDisplayPort:
		return "DP"
	case ConnectoreDP:
		return "eDP"
	case ConnectorDSI:
		return "DSI"
	case ConnectorVirtual:
		return "Virtual"
	case ConnectorWriteback:
		return "Writeback"
	default:
		return "Unknown"
	}
}

// HotplugStatus reports whether a connector is currently plugged in.
type HotplugStatus int

const (
	StatusUnknown HotplugStatus = iota
	StatusConnected
	StatusDisconnected
)

// Lease identifies the lease holder of a connector or CRTC, if any
// (spec §4.3 "DRM leases").
type Lease struct {
	id       uint32
	fd       int
	objects  []uint32
}

// ID returns the kernel lease object id.
func (l *Lease) ID() uint32 { return l.id }

// Connector is the kernel object representing a physical display
// attachment (spec §3 "DRM connector").
type Connector struct {
	ID            uint32
	Type          ConnectorType
	TypeIndex     int
	EDID          []byte
	VRRCapable    bool
	PossibleCRTCs uint32 // bitmask of CRTC indices
	CurrentCRTC   *CRTC  // nil if unmatched
	LeaseHolder   *Lease // nil unless leased out
	Hotplug       HotplugStatus

	wantsCRTC bool // true if enabled or explicitly requested; solver input
	kms       KMS  // the device's KMS surface, set by the owning Device
}

// WithKMS records the KMS surface used to commit this connector.
// Called by Device when a connector is scanned in.
func (c *Connector) WithKMS(kms KMS) { c.kms = kms }

// Name returns the stable connector name, e.g. "HDMI-A-1".
func (c *Connector) Name() string {
	return connectorName(c.Type, c.TypeIndex)
}

func connectorName(t ConnectorType, index int) string {
	return t.String() + "-" + itoa(index)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Leased reports whether a lease holder currently owns this
// connector; leased objects are off-limits to the core (spec §5
// "Shared resources").
func (c *Connector) Leased() bool { return c.LeaseHolder != nil }

// WantsCRTC reports whether this connector is a candidate for CRTC
// allocation in the solver (spec §4.3 "CRTC allocation solver").
func (c *Connector) WantsCRTC() bool { return c.wantsCRTC }

// SetWantsCRTC marks the connector as wanting (or not wanting) a CRTC
// assignment, typically because the compositor enabled it or
// explicitly requested activation.
func (c *Connector) SetWantsCRTC(want bool) { c.wantsCRTC = want }
