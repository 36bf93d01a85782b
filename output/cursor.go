package output

import "github.com/gviegas/kmscore/buffer"

// Cursor holds one output's cursor plane sub-state: the hardware
// cursor swapchain and the software-degradation flag (spec §4.4
// "Cursor sub-state").
//
// Cursor commits are not transactional: they apply immediately and
// are not rolled back if a later commit_state call fails, matching
// the source's own documented asymmetry (spec §9 open question on
// cursor transactionality — kept verbatim, not redesigned).
type Cursor struct {
	sc *Swapchain

	lockedSoftware bool // NO_HARDWARE_CURSORS or lock_software_cursors(true)
	hardwareFailed bool // a prior hardware placement attempt failed this session

	buf        *buffer.Buffer
	hotspotX   int
	hotspotY   int
	enabled    bool
}

// NewCursor creates cursor sub-state backed by sc, a small dedicated
// swapchain the compositor renders the cursor image into.
func NewCursor(sc *Swapchain) *Cursor {
	return &Cursor{sc: sc}
}

// LockSoftware forces (or releases) software cursor compositing,
// e.g. from the NO_HARDWARE_CURSORS environment flag or the
// lock_software_cursors(bool) API (spec §4.4, P6).
func (c *Cursor) LockSoftware(v bool) { c.lockedSoftware = v }

// UseHardware reports whether the hardware cursor plane should be
// used for the next commit: the host has not locked software cursors
// and no earlier hardware placement attempt failed (spec §4.4:
// "Hardware cursor is used when the host has not forced software
// cursors... If hardware placement fails at any point, the cursor
// degrades to a software cursor").
func (c *Cursor) UseHardware() bool {
	return !c.lockedSoftware && !c.hardwareFailed
}

// Set updates the cursor image and hotspot. buf nil disables the
// cursor plane.
func (c *Cursor) Set(buf *buffer.Buffer, hotspotX, hotspotY int) {
	c.buf = buf
	c.hotspotX, c.hotspotY = hotspotX, hotspotY
	c.enabled = buf != nil
}

// Move repositions the cursor without changing its image.
func (c *Cursor) Move(x, y int) { c.hotspotX, c.hotspotY = x, y }

// MarkHardwareFailed records that a hardware placement attempt
// failed, permanently degrading this cursor to software compositing
// until the output is recreated (spec §4.4).
func (c *Cursor) MarkHardwareFailed() { c.hardwareFailed = true }

// Enabled reports whether a cursor image is currently set.
func (c *Cursor) Enabled() bool { return c.enabled }

// Buffer returns the current cursor buffer, or nil if disabled.
func (c *Cursor) Buffer() *buffer.Buffer { return c.buf }

// Hotspot returns the current cursor hotspot.
func (c *Cursor) Hotspot() (x, y int) { return c.hotspotX, c.hotspotY }
