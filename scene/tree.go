package scene

import "github.com/gviegas/kmscore/internal/bitvec"

// Node identifies a node in a Scene's retained tree.
type Node int

// Nil represents an invalid Node.
const Nil Node = 0

// Kind distinguishes the three node shapes the tree can hold (spec
// §4.5 "Scene graph").
type Kind int

const (
	// KindSubtree groups children under a shared position offset and
	// carries no paint of its own.
	KindSubtree Kind = iota
	// KindRect paints a flat-colored box.
	KindRect
	// KindBuffer paints a client buffer, optionally cropped/rotated.
	KindBuffer
)

// treeNode is the tree's structural record: the sibling-chain links
// plus a parent back-pointer and an index into data.
//
// The teacher's node.Graph overloads a single prev field to mean
// "parent" for a chain's head and "previous sibling" otherwise,
// trading an extra field for a smaller struct in a 3D engine that may
// hold tens of thousands of nodes. A compositor's 2D overlay tree is
// orders of magnitude smaller, so this tree spends the extra int on
// an explicit parent pointer instead: every setter needs a node's
// world position, and walking straight to the parent beats first
// finding the sibling-chain head.
type treeNode struct {
	next, prev, sub, parent Node
	data                    int
}

// tree is the arena-indexed node store, reused by Scene. New nodes
// become the head of their sibling chain, so a depth-first walk from
// the chain head visits the most-recently-inserted sibling first:
// exactly the front-to-back order render-list construction needs
// (spec §4.5 "nodes are listed... front to back").
type tree struct {
	next    Node // root sibling chain head
	nodes   []treeNode
	nodeMap bitvec.V[uint32]
	data    []nodeData
}

func (t *tree) insert(kind Kind, parent Node) Node {
	if t.nodeMap.Rem() == 0 {
		t.nodes = append(t.nodes, make([]treeNode, 32)...)
		t.nodeMap.Grow(1)
	}
	idx, ok := t.nodeMap.Search()
	if !ok {
		panic("scene: unexpected failure from bitvec.V.Search")
	}
	t.nodeMap.Set(idx)
	n := Node(idx + 1)

	if parent != Nil {
		if sub := t.nodes[parent-1].sub; sub != Nil {
			t.nodes[n-1].next = sub
			t.nodes[sub-1].prev = n
		} else {
			t.nodes[n-1].next = Nil
		}
		t.nodes[parent-1].sub = n
	} else {
		if t.next != Nil {
			t.nodes[t.next-1].prev = n
			t.nodes[n-1].next = t.next
		} else {
			t.nodes[n-1].next = Nil
		}
		t.next = n
	}
	t.nodes[n-1].prev = Nil
	t.nodes[n-1].sub = Nil
	t.nodes[n-1].parent = parent
	t.nodes[n-1].data = len(t.data)
	t.data = append(t.data, nodeData{node: n, kind: kind, enabled: true})
	return n
}

// remove deletes n and its whole subtree.
func (t *tree) remove(n Node) {
	if n == Nil {
		return
	}
	removeData := func(d int) {
		last := len(t.data) - 1
		if d < last {
			swap := t.data[last].node
			t.nodes[swap-1].data = d
			t.data[d] = t.data[last]
		}
		t.data[last] = nodeData{}
		t.data = t.data[:last]
	}

	next := t.nodes[n-1].next
	prev := t.nodes[n-1].prev
	parent := t.nodes[n-1].parent
	sub := t.nodes[n-1].sub
	data := t.nodes[n-1].data

	if t.next == n {
		t.next = next
	}
	if prev != Nil {
		t.nodes[prev-1].next = next
	} else if parent != Nil {
		t.nodes[parent-1].sub = next
	}
	if next != Nil {
		t.nodes[next-1].prev = prev
	}

	removeData(data)
	t.nodes[n-1] = treeNode{}
	t.nodeMap.Unset(int(n - 1))

	if sub != Nil {
		stk := []Node{sub}
		for len(stk) > 0 {
			cur := stk[len(stk)-1]
			stk = stk[:len(stk)-1]
			if x := t.nodes[cur-1].next; x != Nil {
				stk = append(stk, x)
			}
			if x := t.nodes[cur-1].sub; x != Nil {
				stk = append(stk, x)
			}
			removeData(t.nodes[cur-1].data)
			t.nodes[cur-1] = treeNode{}
			t.nodeMap.Unset(int(cur - 1))
		}
	}
}

func (t *tree) get(n Node) *nodeData {
	if n == Nil {
		return nil
	}
	return &t.data[t.nodes[n-1].data]
}

// reparent moves n (and its subtree) to be the new sibling-chain head
// under newParent (Nil for the root chain). It reports an error if
// newParent is n itself or one of n's own descendants, which would
// create a cycle.
func (t *tree) reparent(n, newParent Node) error {
	if n == Nil {
		return errNilNode
	}
	for cur := newParent; cur != Nil; cur = t.nodes[cur-1].parent {
		if cur == n {
			return errCycle
		}
	}

	next := t.nodes[n-1].next
	prev := t.nodes[n-1].prev
	parent := t.nodes[n-1].parent
	if t.next == n {
		t.next = next
	}
	if prev != Nil {
		t.nodes[prev-1].next = next
	} else if parent != Nil {
		t.nodes[parent-1].sub = next
	}
	if next != Nil {
		t.nodes[next-1].prev = prev
	}

	if newParent != Nil {
		if sub := t.nodes[newParent-1].sub; sub != Nil {
			t.nodes[n-1].next = sub
			t.nodes[sub-1].prev = n
		} else {
			t.nodes[n-1].next = Nil
		}
		t.nodes[newParent-1].sub = n
	} else {
		if t.next != Nil {
			t.nodes[t.next-1].prev = n
			t.nodes[n-1].next = t.next
		} else {
			t.nodes[n-1].next = Nil
		}
		t.next = n
	}
	t.nodes[n-1].prev = Nil
	t.nodes[n-1].parent = newParent
	return nil
}

// worldPos sums every ancestor's local offset, n's own included.
func (t *tree) worldPos(n Node) (x, y int) {
	for cur := n; cur != Nil; cur = t.nodes[cur-1].parent {
		d := &t.data[t.nodes[cur-1].data]
		x += d.localX
		y += d.localY
	}
	return
}

// len returns the number of live nodes.
func (t *tree) len() int { return len(t.data) }
