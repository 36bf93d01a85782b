package headless

import (
	"testing"

	"github.com/gviegas/kmscore/output"
)

func TestAddOutputEmitsNewOutput(t *testing.T) {
	b := New()
	if !b.Start() {
		t.Fatal("Start should always succeed for headless")
	}

	var got []*output.Output
	b.NewOutput().Connect(func(o *output.Output) { got = append(got, o) })

	o := b.AddOutput("virtual-1", 800, 600)
	if len(got) != 1 || got[0] != o {
		t.Fatalf("expected AddOutput to emit NewOutput once with the new output, got %v", got)
	}
	if o.Width != 800 || o.Height != 600 {
		t.Fatalf("expected 800x600, got %dx%d", o.Width, o.Height)
	}
	if o.DisplayFormats == nil || o.DisplayFormats.Empty() {
		t.Fatal("expected a non-empty display format set")
	}
}

func TestCommitterAlwaysSucceeds(t *testing.T) {
	var c committer
	if ok, err := c.Test(nil, nil); !ok || err != nil {
		t.Fatalf("Test: got (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := c.Commit(nil, nil); !ok || err != nil {
		t.Fatalf("Commit: got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestRemoveOutputStopsTracking(t *testing.T) {
	b := New()
	b.Start()
	o := b.AddOutput("virtual-1", 640, 480)
	b.RemoveOutput(o)
	if len(b.outputs) != 0 {
		t.Fatalf("expected 0 tracked outputs after RemoveOutput, got %d", len(b.outputs))
	}
}

func TestDestroyDropsOutputs(t *testing.T) {
	b := New()
	b.Start()
	b.AddOutput("virtual-1", 640, 480)
	b.AddOutput("virtual-2", 640, 480)
	b.Destroy()
	if len(b.outputs) != 0 {
		t.Fatalf("expected Destroy to drop every output, got %d", len(b.outputs))
	}
}
