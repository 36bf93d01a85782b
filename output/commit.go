package output

import (
	"errors"
)

// ErrConfigurationRejected reports that pending state violates an
// invariant checked before ever reaching the backend (spec §7
// "Configuration rejected").
var ErrConfigurationRejected = errors.New("output: configuration rejected")

// ErrHardwareRefused reports that the backend declined the commit
// (spec §7 "Hardware refused").
var ErrHardwareRefused = errors.New("output: commit refused by backend")

// validate implements commit_state/test_state step 2 (spec §4.4).
func (o *Output) validate(s *State) error {
	enabled := o.lifecycle != Disabled
	if s.Has(CommittedEnabled) {
		enabled = s.Enabled
	}

	if s.Has(CommittedBuffer) && s.Buffer != nil {
		w, h := s.Buffer.Width(), s.Buffer.Height()
		wantW, wantH := o.Width, o.Height
		if s.Has(CommittedMode) && s.Mode != nil {
			wantW, wantH = s.Mode.Width, s.Mode.Height
		} else if s.Has(CommittedCustomMode) {
			wantW, wantH = s.CustomMode.Width, s.CustomMode.Height
		}
		if w != wantW || h != wantH {
			return errConfig("buffer dimensions do not match pending mode size")
		}
	}

	if s.Has(CommittedTearingPageFlip) && s.TearingPageFlip && !s.Has(CommittedBuffer) {
		return errConfig("tearing page flip requires a buffer")
	}

	modeChanging := s.Has(CommittedMode) || s.Has(CommittedCustomMode)
	if modeChanging && enabled && !s.Has(CommittedBuffer) && !s.Has(CommittedAllowReconfiguration) {
		return errConfig("mode change on an enabled output requires a new buffer or allow_reconfiguration")
	}

	if !enabled {
		forbidden := CommittedBuffer | CommittedMode | CommittedCustomMode |
			CommittedGamma | CommittedAdaptiveSync | CommittedRenderFormat | CommittedSubpixel
		if s.committed&forbidden != 0 {
			return errConfig("a disabled output may not receive buffer/mode/gamma/adaptive-sync/format/subpixel fields")
		}
	}

	if s.Has(CommittedLayers) && len(s.Layers) != len(o.Layers) && len(o.Layers) != 0 {
		return errConfig("layers must enumerate every registered layer")
	}

	return nil
}

func errConfig(msg string) error {
	return errors.New("output: " + msg + ": " + ErrConfigurationRejected.Error())
}

// needsBackBuffer implements step 3's trigger condition: a buffer is
// required even though the caller did not supply one.
func (o *Output) needsBackBuffer(s *State) bool {
	if s.Has(CommittedBuffer) {
		return false
	}
	lightingUp := s.Has(CommittedEnabled) && s.Enabled && o.lifecycle == Disabled
	changingMode := s.Has(CommittedMode) || s.Has(CommittedCustomMode)
	changingFormat := s.Has(CommittedRenderFormat)
	firstAfterReconfig := s.Has(CommittedAllowReconfiguration) && s.AllowReconfiguration
	return lightingUp || changingMode || changingFormat || firstAfterReconfig
}

// testState performs steps 1-3 plus a backend test call, mutating
// nothing (spec §4.4 "test_state").
func (o *Output) testState(s *State) (bool, error) {
	if s.Empty() {
		return true, nil
	}
	if err := o.validate(s); err != nil {
		return false, err
	}

	var allocated bool
	if o.needsBackBuffer(s) && o.Swapchain != nil {
		buf, _, err := o.Swapchain.Acquire()
		if err != nil {
			return false, err
		}
		s.SetBuffer(buf, s.Damage)
		allocated = true
	}

	ok, err := o.committer.Test(o, s)
	if allocated && s.Buffer != nil {
		o.Swapchain.Release(s.Buffer)
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// TestState validates s against o without mutating o (spec §6
// "test_state").
func (o *Output) TestState(s *State) (bool, error) { return o.testState(s) }

// CommitState runs the full seven-step commit algorithm (spec §4.4
// "commit_state").
func (o *Output) CommitState(s *State) (bool, error) {
	// Step 1.
	if s.Empty() {
		return true, nil
	}

	// Step 2.
	if err := o.validate(s); err != nil {
		return false, err
	}

	// Step 3.
	var allocated *State
	if o.needsBackBuffer(s) && o.Swapchain != nil {
		buf, _, err := o.Swapchain.Acquire()
		if err != nil {
			return false, err
		}
		s.SetBuffer(buf, s.Damage)
		allocated = s
	}

	// Step 4.
	o.PrecommitSignal.Emit(s)

	// Step 5.
	ok, err := o.committer.Commit(o, s)
	if !ok || err != nil {
		if allocated != nil && allocated.Buffer != nil {
			o.Swapchain.Release(allocated.Buffer)
		}
		if err == nil {
			err = ErrHardwareRefused
		}
		return false, err
	}

	// Step 6.
	o.CommitSeq++
	if s.Has(CommittedBuffer) {
		o.needsFrame = false
	}
	o.applyState(s)
	if s.Has(CommittedBuffer) && s.Buffer != nil && o.Swapchain != nil {
		o.Swapchain.SetSubmitted(s.Buffer)
	}

	// Step 7.
	o.CommitSignal.Emit(s)
	return true, nil
}

// applyState copies every committed field from s onto o's current
// state (spec §4.4 step 6 "Apply state to the output").
func (o *Output) applyState(s *State) {
	if s.Has(CommittedEnabled) {
		if s.Enabled {
			o.lifecycle = Live
		} else {
			o.lifecycle = Disabled
		}
	}
	if s.Has(CommittedMode) && s.Mode != nil {
		o.CurrentMode = s.Mode
		o.Width, o.Height, o.RefreshMHz = s.Mode.Width, s.Mode.Height, s.Mode.RefreshMHz
	}
	if s.Has(CommittedCustomMode) {
		o.CurrentMode = nil
		o.Width, o.Height, o.RefreshMHz = s.CustomMode.Width, s.CustomMode.Height, s.CustomMode.RefreshMHz
	}
	if s.Has(CommittedScale) {
		o.Scale = s.Scale
	}
	if s.Has(CommittedTransform) {
		o.Transform = s.Transform
	}
	if s.Has(CommittedAdaptiveSync) {
		if s.AdaptiveSyncEnabled {
			o.AdaptiveSyncStatus = AdaptiveSyncEnabled
		} else {
			o.AdaptiveSyncStatus = AdaptiveSyncDisabled
		}
	}
	if s.Has(CommittedRenderFormat) {
		o.RenderFormat = s.RenderFormat
	}
	if s.Has(CommittedSubpixel) {
		o.Subpixel = s.Subpixel
	}
	if s.Has(CommittedLayers) {
		o.Layers = s.Layers
	}
	if s.Damage != nil {
		o.DamageSignal.Emit(s.Damage)
	}
}
