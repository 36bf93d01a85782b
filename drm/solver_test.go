package drm

import "testing"

func mkConn(id uint32, possible uint32, wants bool) *Connector {
	c := &Connector{ID: id, PossibleCRTCs: possible, Hotplug: StatusConnected}
	c.SetWantsCRTC(wants)
	return c
}

func mkCRTC(id uint32, index int) *CRTC {
	return &CRTC{ID: id, Index: index}
}

func TestSolveMatchesAllWhenPossible(t *testing.T) {
	c0 := mkConn(1, 0b11, true)
	c1 := mkConn(2, 0b11, true)
	crtc0 := mkCRTC(10, 0)
	crtc1 := mkCRTC(11, 1)

	mapping, ok := Solve([]*Connector{c0, c1}, []*CRTC{crtc0, crtc1}, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(mapping) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(mapping), mapping)
	}
}

func TestSolveLeavesUnmatchableConnectorUnassigned(t *testing.T) {
	c0 := mkConn(1, 0b01, true)
	c1 := mkConn(2, 0b01, true) // both only fit crtc0
	crtc0 := mkCRTC(10, 0)
	crtc1 := mkCRTC(11, 1)

	mapping, ok := Solve([]*Connector{c0, c1}, []*CRTC{crtc0, crtc1}, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(mapping) != 1 {
		t.Fatalf("expected exactly 1 match, got %d: %v", len(mapping), mapping)
	}
}

// TestSolveStableOnRemoval checks P5: removing an already-matched
// connector must not change the mapping of the remaining ones.
func TestSolveStableOnRemoval(t *testing.T) {
	c0 := mkConn(1, 0b11, true)
	c1 := mkConn(2, 0b11, true)
	crtc0 := mkCRTC(10, 0)
	crtc1 := mkCRTC(11, 1)

	mapping, ok := Solve([]*Connector{c0, c1}, []*CRTC{crtc0, crtc1}, nil)
	if !ok || len(mapping) != 2 {
		t.Fatalf("setup failed: %v %v", mapping, ok)
	}

	mapping2, ok2 := Solve([]*Connector{c1}, []*CRTC{crtc0, crtc1}, mapping)
	if !ok2 {
		t.Fatal("expected ok")
	}
	if mapping2[c1.ID] != mapping[c1.ID] {
		t.Fatalf("c1 mapping changed: had %d now %d", mapping[c1.ID], mapping2[c1.ID])
	}
}

func TestSolveKeepsLockedConnectorOnItsCRTC(t *testing.T) {
	crtc0 := mkCRTC(10, 0)
	crtc1 := mkCRTC(11, 1)
	c0 := mkConn(1, 0b11, true)
	crtc0.bind(c0) // locked: connected, wants a CRTC, already has one

	mapping, ok := Solve([]*Connector{c0}, []*CRTC{crtc0, crtc1}, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	if mapping[c0.ID] != crtc0.ID {
		t.Fatalf("locked connector migrated: got crtc %d", mapping[c0.ID])
	}
}

func TestSolveFailsOnConflictingLockedConnectors(t *testing.T) {
	crtc0 := mkCRTC(10, 0)
	c0 := mkConn(1, 0b1, true)
	c1 := mkConn(2, 0b1, true)
	crtc0.bind(c0)
	// Force both to report the same CurrentCRTC to simulate a corrupt
	// previous mapping; bind() would normally prevent this.
	c1.CurrentCRTC = crtc0

	_, ok := Solve([]*Connector{c0, c1}, []*CRTC{crtc0}, nil)
	if ok {
		t.Fatal("expected failure on conflicting locked connectors")
	}
}
