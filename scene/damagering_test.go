package scene

import (
	"reflect"
	"testing"

	"github.com/gviegas/kmscore/drm"
)

func TestDamageRingStaleAgeReturnsFullOutput(t *testing.T) {
	r := NewDamageRing(drm.Rect{X: 0, Y: 0, W: 100, H: 100})
	if got := r.GetBufferDamage(0); !reflect.DeepEqual(got, []drm.Rect{{0, 0, 100, 100}}) {
		t.Fatalf("age<=0: got %v", got)
	}
	if got := r.GetBufferDamage(damageRingLen + 1); !reflect.DeepEqual(got, []drm.Rect{{0, 0, 100, 100}}) {
		t.Fatalf("age>N: got %v", got)
	}
}

// TestDamageRingAccumulatesAcrossFrames checks P3: age k's damage is
// the union of current plus the k-1 most recent historic regions.
func TestDamageRingAccumulatesAcrossFrames(t *testing.T) {
	r := NewDamageRing(drm.Rect{X: 0, Y: 0, W: 100, H: 100})

	r.Add(drm.Rect{X: 0, Y: 0, W: 10, H: 10})
	r.Rotate() // frame 1 committed; previous[most recent] = {0,0,10,10}

	r.Add(drm.Rect{X: 20, Y: 20, W: 10, H: 10})
	r.Rotate() // frame 2 committed

	r.Add(drm.Rect{X: 40, Y: 40, W: 10, H: 10}) // pending frame 3, not yet rotated

	// age 1: only the pending region.
	got := r.GetBufferDamage(1)
	if !reflect.DeepEqual(got, []drm.Rect{{40, 40, 10, 10}}) {
		t.Fatalf("age 1: got %v", got)
	}

	// age 2: pending plus the most recent committed region (frame 2).
	got = r.GetBufferDamage(2)
	want := []drm.Rect{{40, 40, 10, 10}, {20, 20, 10, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("age 2: got %v want %v", got, want)
	}

	// age 3: pending plus frames 2 and 1.
	got = r.GetBufferDamage(3)
	want = []drm.Rect{{40, 40, 10, 10}, {20, 20, 10, 10}, {0, 0, 10, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("age 3: got %v want %v", got, want)
	}
}

func TestDamageRingClampsToBounds(t *testing.T) {
	r := NewDamageRing(drm.Rect{X: 0, Y: 0, W: 50, H: 50})
	r.Add(drm.Rect{X: 40, Y: 40, W: 20, H: 20})
	got := r.GetBufferDamage(1)
	want := []drm.Rect{{40, 40, 10, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected clamp to bounds, got %v want %v", got, want)
	}
}

func TestDamageRingCollapsesOverCap(t *testing.T) {
	r := NewDamageRing(drm.Rect{X: 0, Y: 0, W: 1000, H: 1000})
	for i := 0; i < damageRectCap+5; i++ {
		r.Add(drm.Rect{X: i, Y: i, W: 1, H: 1})
	}
	got := r.GetBufferDamage(1)
	if len(got) != 1 {
		t.Fatalf("expected collapse to a single bounding box, got %d rects", len(got))
	}
}
