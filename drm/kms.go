package drm

import "errors"

// ErrHardwareRefused reports that the kernel/driver declined a commit
// (EINVAL/EBUSY/etc. in the real ioctl ABI). Spec §7 "Hardware
// refused".
var ErrHardwareRefused = errors.New("drm: commit refused by kernel")

// ErrInFlight reports that a non-blocking commit was attempted for a
// connector that already has a page-flip in flight (spec §4.3
// "Flags"): the caller must wait for the previous flip's event.
var ErrInFlight = errors.New("drm: page-flip already in flight for this connector")

// ErrLeased reports an attempt to commit on an object currently held
// by a DRM lease (spec §5 "Shared resources").
var ErrLeased = errors.New("drm: object is held by a lease")

// PropValue is a single atomic property write: an object id, a
// property id, and the value to assign.
type PropValue struct {
	ObjID, PropID uint32
	Value         uint64
}

// KMS is the raw kernel-facing surface the three DrmInterface
// implementations (atomic/legacy/liftoff) are built on. It exists so
// that the commit algorithms in atomic.go/legacy.go/liftoff.go are
// ordinary, testable Go code. No ioctl-backed implementation is in
// this package; its tests back it with the in-memory fake in
// fake_kms_test.go.
type KMS interface {
	// CreateBlob uploads data as a new kernel property blob and
	// returns its id.
	CreateBlob(data []byte) (uint32, error)

	// DestroyBlob destroys a previously created blob. Destroying a
	// blob that is still referenced by a CRTC is a caller bug; KMS
	// implementations may treat it as a no-op or an error.
	DestroyBlob(id uint32) error

	// AtomicCommit submits a single atomic transaction covering
	// props. testOnly requests DRM_MODE_ATOMIC_TEST_ONLY; nonblock
	// requests DRM_MODE_ATOMIC_NONBLOCK; allowModeset requests
	// DRM_MODE_ATOMIC_ALLOW_MODESET; events requests a completion
	// event be queued for each modified CRTC.
	AtomicCommit(props []PropValue, testOnly, nonblock, allowModeset, events bool) error

	// SetCrtc implements the legacy modeset ioctl: bind fbID to crtc
	// with the given mode (nil disables the CRTC) and connector list.
	SetCrtc(crtcID uint32, fbID uint32, mode *KernelMode, connIDs []uint32) error

	// PageFlip implements the legacy buffer-swap ioctl.
	PageFlip(crtcID uint32, fbID uint32, async, event bool) error

	// SetCursor uploads a cursor image (or disables the cursor plane
	// if fbID is 0) via the legacy cursor ioctls.
	SetCursor(crtcID uint32, fbID uint32, hotX, hotY int) error

	// MoveCursor repositions the legacy cursor plane.
	MoveCursor(crtcID uint32, x, y int) error

	// SetGamma uploads a legacy gamma ramp.
	SetGamma(crtcID uint32, r, g, b []uint16) error

	// AddFB registers a DMA-BUF backed framebuffer and returns its
	// kernel object id. modifier is 0 when ADDFB2_MODIFIERS is not
	// usable (spec §4.2 "NO_MODIFIERS").
	AddFB(width, height int, format uint32, modifier uint64, planes []FBPlane) (uint32, error)

	// RmFB releases a framebuffer object.
	RmFB(fbID uint32) error

	// CreateLease packages objIDs into a kernel lease and returns the
	// lease fd and kernel lease id.
	CreateLease(objIDs []uint32) (fd int, leaseID uint32, err error)

	// RevokeLease revokes a previously created lease.
	RevokeLease(leaseID uint32) error
}

// FBPlane is one plane of a framebuffer handed to AddFB.
type FBPlane struct {
	Handle uint32 // GEM handle for the plane's memory
	Offset uint32
	Pitch  uint32
}
