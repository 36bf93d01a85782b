package output

// OnPageFlipComplete is called by the backend's DRM-fd event-loop
// integration when the kernel reports a page-flip completion for this
// output: it emits `present` with the frame's flags and, if the
// session is active, `frame` to drive the next submission (spec
// §4.4 "Page-flip event").
func (o *Output) OnPageFlipComplete(refreshNs, hwClockNs int64, flags PresentFlags, sessionActive bool) {
	o.PresentSignal.Emit(PresentEvent{
		CommitSeq: o.CommitSeq,
		RefreshNs: refreshNs,
		HWClockNs: hwClockNs,
		Flags:     flags,
	})
	if sessionActive {
		o.FrameSignal.Emit(struct{}{})
	}
}
