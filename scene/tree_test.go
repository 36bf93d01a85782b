package scene

import "testing"

func TestInsertNewSiblingBecomesHead(t *testing.T) {
	s := New()
	a := s.InsertRect(Nil)
	b := s.InsertRect(Nil)
	// b was inserted after a, so b is now the root chain's head: a
	// front-to-back walk visits b before a.
	if s.next != b {
		t.Fatalf("expected %v to be the new head, got %v", b, s.next)
	}
	if s.nodes[b-1].next != a {
		t.Fatalf("expected %v.next == %v, got %v", b, a, s.nodes[b-1].next)
	}
}

func TestInsertUnderParentNestsInSubChain(t *testing.T) {
	s := New()
	parent := s.InsertSubtree(Nil)
	child := s.InsertRect(parent)
	if s.nodes[parent-1].sub != child {
		t.Fatalf("expected parent.sub == child, got %v", s.nodes[parent-1].sub)
	}
	if s.nodes[child-1].parent != parent {
		t.Fatalf("expected child.parent == parent, got %v", s.nodes[child-1].parent)
	}
}

func TestRemoveDeletesWholeSubtree(t *testing.T) {
	s := New()
	parent := s.InsertSubtree(Nil)
	child1 := s.InsertRect(parent)
	child2 := s.InsertRect(parent)
	_ = child2
	before := s.len()
	s.Remove(parent)
	if s.len() != before-3 {
		t.Fatalf("expected 3 nodes removed, len went from %d to %d", before, s.len())
	}
	if s.nodeMap.IsSet(int(parent - 1)) {
		t.Fatal("expected parent's arena slot to be freed")
	}
	_ = child1
}

func TestRemoveSiblingPreservesChain(t *testing.T) {
	s := New()
	a := s.InsertRect(Nil)
	b := s.InsertRect(Nil)
	c := s.InsertRect(Nil) // chain: c -> b -> a
	s.Remove(b)
	if s.nodes[c-1].next != a {
		t.Fatalf("expected c.next == a after removing b, got %v", s.nodes[c-1].next)
	}
	if s.nodes[a-1].prev != c {
		t.Fatalf("expected a.prev == c after removing b, got %v", s.nodes[a-1].prev)
	}
}

func TestReparentRejectsCycle(t *testing.T) {
	s := New()
	parent := s.InsertSubtree(Nil)
	child := s.InsertSubtree(parent)
	if err := s.Reparent(parent, child); err != errCycle {
		t.Fatalf("expected errCycle, got %v", err)
	}
}

func TestReparentMovesSubtreeAndOffset(t *testing.T) {
	s := New()
	groupA := s.InsertSubtree(Nil)
	groupB := s.InsertSubtree(Nil)
	s.SetPosition(groupA, 10, 10)
	s.SetPosition(groupB, 100, 100)

	n := s.InsertRect(groupA)
	s.SetPosition(n, 1, 1)
	s.SetSize(n, 5, 5)

	if err := s.Reparent(n, groupB); err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	wr := s.WorldRect(n)
	if wr.X != 101 || wr.Y != 101 {
		t.Fatalf("expected world pos (101,101) after moving to groupB, got (%d,%d)", wr.X, wr.Y)
	}
}
