package buffer

import "testing"

func TestLockUnlockNoDrop(t *testing.T) {
	b := New(4, 4)
	b.Lock()
	b.Unlock()
	if b.destroyed {
		t.Fatal("buffer destroyed without a Drop request")
	}
}

func TestDropWithNoLocksDestroysImmediately(t *testing.T) {
	b := New(4, 4)
	b.Drop()
	if !b.destroyed {
		t.Fatal("Drop with zero locks should destroy immediately")
	}
}

func TestDropWithLockDefersDestroy(t *testing.T) {
	b := New(4, 4)
	b.Lock()
	b.Drop()
	if b.destroyed {
		t.Fatal("Drop while locked should not destroy yet")
	}
	b.Unlock()
	if !b.destroyed {
		t.Fatal("last Unlock after Drop should destroy")
	}
}

func TestSetBothViewsOnce(t *testing.T) {
	b := New(4, 4)
	if err := b.SetDMABuf(&DMABuf{Format: FormatXRGB8888}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetDMABuf(&DMABuf{Format: FormatXRGB8888}); err != ErrBothViews {
		t.Fatalf("second SetDMABuf: got %v, want ErrBothViews", err)
	}
	if err := b.SetSHM(&SHM{Format: FormatXRGB8888}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetSHM(&SHM{Format: FormatXRGB8888}); err != ErrBothViews {
		t.Fatalf("second SetSHM: got %v, want ErrBothViews", err)
	}
}

func TestSetAfterDropped(t *testing.T) {
	b := New(4, 4)
	b.Drop()
	if err := b.SetDMABuf(&DMABuf{}); err != ErrDropped {
		t.Fatalf("got %v, want ErrDropped", err)
	}
}
