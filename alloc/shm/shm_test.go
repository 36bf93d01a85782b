package shm

import (
	"testing"

	"github.com/gviegas/kmscore/buffer"
)

func TestAllocateRejectsEmptyFormatSet(t *testing.T) {
	a := New()
	if _, err := a.Allocate(4, 4, buffer.NewFormatSet()); err != ErrNoFormat {
		t.Fatalf("expected ErrNoFormat, got %v", err)
	}
}

func TestAllocateProducesUsableSHMView(t *testing.T) {
	a := New()
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatXRGB8888, buffer.ModifierLinear)

	b, err := a.Allocate(8, 4, formats)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Drop()

	shm := b.SHM()
	if shm == nil {
		t.Fatal("expected an SHM view")
	}
	if shm.Format != buffer.FormatXRGB8888 {
		t.Fatalf("expected FormatXRGB8888, got %v", shm.Format)
	}
	wantStride := 8 * 4
	if int(shm.Stride) != wantStride {
		t.Fatalf("expected stride %d, got %d", wantStride, shm.Stride)
	}
	if len(shm.Data) != wantStride*4 {
		t.Fatalf("expected %d mapped bytes, got %d", wantStride*4, len(shm.Data))
	}

	// Memory is writable.
	shm.Data[0] = 0xab
	if shm.Data[0] != 0xab {
		t.Fatal("expected mapped memory to be writable")
	}
}

func TestDropReleasesBackingMemory(t *testing.T) {
	a := New()
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatARGB8888, buffer.ModifierLinear)

	b, err := a.Allocate(4, 4, formats)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b.Drop()
	if !b.Dropped() {
		t.Fatal("expected buffer to report dropped")
	}
	if b.SHM() != nil {
		t.Fatal("expected the SHM view to be released on drop")
	}
}
