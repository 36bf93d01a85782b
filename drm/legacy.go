package drm

// legacyInterface implements Interface using SetCrtc for modesets,
// PageFlip for buffer swaps, and SetCursor2/MoveCursor for the cursor
// plane (spec §4.3 "Legacy commit").
type legacyInterface struct{}

func newLegacyInterface() *legacyInterface { return &legacyInterface{} }

func (l *legacyInterface) Init(dev *Device) error  { return nil }
func (l *legacyInterface) Finish(dev *Device)      {}

func (l *legacyInterface) CrtcCommit(conn *Connector, in CommitInput, flags Flags, testOnly bool) (bool, error) {
	crtc := conn.CurrentCRTC
	if crtc == nil {
		return false, ErrHardwareRefused
	}
	if testOnly {
		// The legacy ABI has no atomic-style test path; approximate
		// it with the same validation the output package already
		// performed and report success without touching the kernel.
		return true, nil
	}

	if in.GammaChanged && in.Gamma != nil {
		if err := crtcKMS(conn).SetGamma(crtc.ID, in.Gamma.R, in.Gamma.G, in.Gamma.B); err != nil {
			return false, err
		}
	}

	if in.ModeChanged {
		var fbID uint32
		if in.Primary != nil && in.Primary.FB != nil {
			fbID = in.Primary.FB.ID
		}
		var km *KernelMode
		if in.Active && in.Mode != nil {
			km = &in.Mode.Kernel
		}
		if err := crtcKMS(conn).SetCrtc(crtc.ID, fbID, km, []uint32{conn.ID}); err != nil {
			return false, err
		}
		if in.Primary != nil && crtc.Primary != nil {
			crtc.Primary.Pending = in.Primary.FB
			crtc.Primary.Queued = in.Primary.FB
		}
	} else if in.Primary != nil && in.Primary.FB != nil {
		if in.TearingPageFlip {
			// Tearing requires DRM_CAP_ASYNC_PAGE_FLIP (spec §4.3);
			// callers are expected to have checked Device.Caps.AsyncPageFlip
			// before setting this field.
		}
		if err := crtcKMS(conn).PageFlip(crtc.ID, in.Primary.FB.ID, in.TearingPageFlip, flags&FlagPageFlipEvent != 0); err != nil {
			return false, err
		}
		if crtc.Primary != nil {
			crtc.Primary.Pending = in.Primary.FB
			crtc.Primary.Queued = in.Primary.FB
		}
	}

	if in.CursorChanged {
		if in.Cursor != nil && in.Cursor.FB != nil {
			if err := crtcKMS(conn).SetCursor(crtc.ID, in.Cursor.FB.ID, in.Cursor.DstX, in.Cursor.DstY); err != nil {
				return false, err
			}
			if crtc.Cursor != nil {
				crtc.Cursor.Pending = in.Cursor.FB
				crtc.Cursor.Queued = in.Cursor.FB
			}
		} else {
			if err := crtcKMS(conn).SetCursor(crtc.ID, 0, 0, 0); err != nil {
				return false, err
			}
			if crtc.Cursor != nil {
				crtc.Cursor.Pending = nil
				crtc.Cursor.Queued = nil
			}
		}
	} else if in.Cursor != nil && crtc.Cursor != nil {
		crtcKMS(conn).MoveCursor(crtc.ID, in.Cursor.DstX, in.Cursor.DstY)
	}

	return true, nil
}
