package event

import "testing"

func TestConnectEmit(t *testing.T) {
	var s Signal[int]
	var got []int
	s.Connect(func(v int) { got = append(got, v) })
	s.Emit(1)
	s.Emit(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v, want [1 2]", got)
	}
}

func TestDisconnect(t *testing.T) {
	var s Signal[int]
	var got []int
	obs := s.Connect(func(v int) { got = append(got, v) })
	s.Emit(1)
	obs.Disconnect()
	s.Emit(2)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
	// Idempotent.
	obs.Disconnect()
}

func TestConnectDuringEmitSkipsRound(t *testing.T) {
	var s Signal[int]
	var got []int
	s.Connect(func(v int) {
		got = append(got, v)
		s.Connect(func(v int) { got = append(got, -v) })
	})
	s.Emit(1)
	if len(got) != 1 {
		t.Fatalf("observer connected mid-emit ran in the same round: got %v", got)
	}
	s.Emit(2)
	if len(got) != 3 || got[1] != 2 || got[2] != -2 {
		t.Fatalf("got %v, want [1 2 -2]", got)
	}
}

func TestDisconnectDuringEmit(t *testing.T) {
	var s Signal[int]
	var obs2 *Observer
	var ran2 bool
	s.Connect(func(v int) { obs2.Disconnect() })
	obs2 = s.Connect(func(v int) { ran2 = true })
	s.Emit(1)
	if ran2 {
		t.Fatal("observer disconnected earlier in the same round still ran")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after compaction", s.Len())
	}
}
