// Package addon implements the addon-set pattern used to let external
// code attach arbitrary, typed state to a host object (an Output, a
// Buffer, a scene Node) without the host knowing about the attachment
// ahead of time.
//
// An addon is identified by a (owner, key) pair, where owner is
// whatever object the addon is attached to and key distinguishes
// independent attachments made by different callers on the same
// owner. Lifetime is tied to the host: Set overwrites a prior value
// for the same (owner, key), and the host calls ClearOwner when it is
// destroyed.
package addon

// Key distinguishes independent addons attached to the same owner.
// Callers typically use a package-level *int or similar unique value
// as a Key so that only the package that created the key can look up
// the addon it stored.
type Key any

// Set is a map of addons keyed by (owner, Key).
// The zero value is an empty, usable Set.
type Set struct {
	m map[slot]any
}

type slot struct {
	owner any
	key   Key
}

// Get returns the addon attached to owner under key, and whether one
// was present.
func (s *Set) Get(owner any, key Key) (any, bool) {
	if s.m == nil {
		return nil, false
	}
	v, ok := s.m[slot{owner, key}]
	return v, ok
}

// Set attaches value to owner under key, replacing any previous
// addon stored under the same pair.
func (s *Set) Set(owner any, key Key, value any) {
	if s.m == nil {
		s.m = make(map[slot]any)
	}
	s.m[slot{owner, key}] = value
}

// Delete removes the addon attached to owner under key, if any.
func (s *Set) Delete(owner any, key Key) {
	if s.m == nil {
		return
	}
	delete(s.m, slot{owner, key})
}

// ClearOwner removes every addon attached to owner.
// Hosts call this from their own destruction path.
func (s *Set) ClearOwner(owner any) {
	if s.m == nil {
		return
	}
	for k := range s.m {
		if k.owner == owner {
			delete(s.m, k)
		}
	}
}

// Len returns the number of addons currently stored in s.
func (s *Set) Len() int { return len(s.m) }
