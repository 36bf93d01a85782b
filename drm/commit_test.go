package drm

import (
	"testing"

	"github.com/gviegas/kmscore/buffer"
)

func newCommitTestCRTC() (*fakeKMS, *Connector, *CRTC) {
	kms := newFakeKMS()
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatXRGB8888, buffer.ModifierLinear)
	primary := &Plane{ID: 20, Type: PlanePrimary, Formats: formats}
	cursor := &Plane{ID: 21, Type: PlaneCursor, Formats: formats}
	crtc := &CRTC{ID: 10, Index: 0, Primary: primary, Cursor: cursor}
	conn := &Connector{ID: 1, Type: ConnectorHDMIA, TypeIndex: 1, Hotplug: StatusConnected}
	conn.SetWantsCRTC(true)
	conn.WithKMS(kms)
	crtc.bind(conn)
	return kms, conn, crtc
}

func TestAtomicCrtcCommitAppliesModeAndFB(t *testing.T) {
	kms, conn, crtc := newCommitTestCRTC()
	a := newAtomicInterface()
	a.Init(nil)

	fb := &FB{ID: 99, Format: buffer.FormatXRGB8888}
	in := CommitInput{
		ModeChanged: true,
		Mode:        &Mode{Width: 1920, Height: 1080, Kernel: KernelMode{Name: "1920x1080"}},
		Active:      true,
		Primary:     &LayerFB{Plane: crtc.Primary, FB: fb, SrcW: 1920, SrcH: 1080, DstW: 1920, DstH: 1080},
	}

	ok, err := a.CrtcCommit(conn, in, FlagPageFlipEvent, false)
	if err != nil || !ok {
		t.Fatalf("CrtcCommit: ok=%v err=%v", ok, err)
	}
	if len(kms.commits) != 1 {
		t.Fatalf("expected 1 atomic commit, got %d", len(kms.commits))
	}
	if crtc.Primary.Queued != fb {
		t.Fatal("expected primary queued FB set")
	}
	if crtc.ModeBlobID == 0 {
		t.Fatal("expected a mode blob id to be assigned")
	}
}

func TestAtomicCrtcCommitTestOnlyDoesNotMutateState(t *testing.T) {
	kms, conn, crtc := newCommitTestCRTC()
	a := newAtomicInterface()
	a.Init(nil)

	fb := &FB{ID: 99, Format: buffer.FormatXRGB8888}
	in := CommitInput{
		ModeChanged: true,
		Mode:        &Mode{Kernel: KernelMode{Name: "mode"}},
		Active:      true,
		Primary:     &LayerFB{Plane: crtc.Primary, FB: fb},
	}

	ok, err := a.CrtcCommit(conn, in, 0, true)
	if err != nil || !ok {
		t.Fatalf("CrtcCommit: ok=%v err=%v", ok, err)
	}
	if crtc.ModeBlobID != 0 {
		t.Fatal("test-only commit must not mutate crtc.ModeBlobID")
	}
	if crtc.Primary.Queued != nil {
		t.Fatal("test-only commit must not mutate plane state")
	}
	if len(kms.blobs) != 0 {
		t.Fatal("test-only commit must roll back any created blobs")
	}
}

func TestAtomicCrtcCommitRefusedRollsBackBlobs(t *testing.T) {
	kms, conn, _ := newCommitTestCRTC()
	kms.refuseAtomic = true
	a := newAtomicInterface()
	a.Init(nil)

	in := CommitInput{
		ModeChanged: true,
		Mode:        &Mode{Kernel: KernelMode{Name: "mode"}},
		Active:      true,
	}
	ok, err := a.CrtcCommit(conn, in, 0, false)
	if ok || err == nil {
		t.Fatal("expected commit to be refused")
	}
	if len(kms.blobs) != 0 {
		t.Fatal("expected refused commit to roll back its blobs")
	}
}

func TestLegacyCrtcCommitSetsCrtcAndPageFlips(t *testing.T) {
	kms, conn, crtc := newCommitTestCRTC()
	l := newLegacyInterface()

	fb := &FB{ID: 50, Format: buffer.FormatXRGB8888}
	in := CommitInput{
		ModeChanged: true,
		Mode:        &Mode{Kernel: KernelMode{Name: "mode"}},
		Active:      true,
		Primary:     &LayerFB{Plane: crtc.Primary, FB: fb},
	}
	ok, err := l.CrtcCommit(conn, in, 0, false)
	if err != nil || !ok {
		t.Fatalf("CrtcCommit: ok=%v err=%v", ok, err)
	}
	if len(kms.setCrtcCalls) != 1 {
		t.Fatalf("expected 1 SetCrtc call, got %d", len(kms.setCrtcCalls))
	}

	in2 := CommitInput{Primary: &LayerFB{Plane: crtc.Primary, FB: fb}}
	ok, err = l.CrtcCommit(conn, in2, 0, false)
	if err != nil || !ok {
		t.Fatalf("CrtcCommit(flip): ok=%v err=%v", ok, err)
	}
	if len(kms.pageFlips) != 1 {
		t.Fatalf("expected 1 page flip, got %d", len(kms.pageFlips))
	}
}

func TestLiftoffCrtcCommitEmitsFeedbackForUnassignedLayers(t *testing.T) {
	kms, conn, crtc := newCommitTestCRTC()
	_ = kms
	li := newLiftoffInterface()
	li.Init(nil)

	var got []LayerFeedback
	li.LayerFeedbackSignal.Connect(func(fb []LayerFeedback) { got = fb })

	overlayFormats := buffer.NewFormatSet()
	overlayFormats.Add(buffer.FormatNV12, buffer.ModifierLinear)
	crtc.Overlays = []*Plane{{ID: 30, Type: PlaneOverlay, Formats: overlayFormats}}

	unassignable := &LayerFB{FB: &FB{Format: buffer.FormatARGB8888}}
	in := CommitInput{Layers: []LayerFB{*unassignable}}

	ok, err := li.CrtcCommit(conn, in, 0, false)
	if err != nil || !ok {
		t.Fatalf("CrtcCommit: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 feedback entry, got %d", len(got))
	}
	if !got[0].NeedsComposition {
		t.Fatal("expected NeedsComposition=true")
	}
}
