// Package event implements the typed observer-list replacement for
// the intrusive "signal/listener" linked lists that a C codebase in
// this domain would normally use (see Design Notes on signal/listener
// graphs): every emitter exposes a Signal[T] with explicit Connect/
// disconnect instead of embedding itself into a listener's intrusive
// list node.
//
// Semantics match "emit_mutable": observers connected from within a
// callback invoked by Emit are not themselves invoked during that
// same Emit call. Disconnecting an observer from within a callback is
// safe and takes effect immediately for any observer later in the
// same round that has not yet run.
package event

// Observer is a subscription handle returned by Signal.Connect.
// Calling Disconnect removes the subscription; it is idempotent and
// safe to call from within the observer's own callback.
type Observer struct {
	id int
	// disconnect is set to the owning Signal's disconnect closure so
	// Observer itself need not be generic.
	disconnect func(int)
}

// Disconnect removes o's subscription from the Signal it was
// obtained from. Safe to call more than once.
func (o *Observer) Disconnect() {
	if o == nil || o.disconnect == nil {
		return
	}
	o.disconnect(o.id)
	o.disconnect = nil
}

type entry[T any] struct {
	id  int
	fn  func(T)
	dead bool
}

// Signal is a typed, one-to-many event source.
// The zero value is an empty, usable Signal.
type Signal[T any] struct {
	entries []entry[T]
	nextID  int
	// emitting is >0 while Emit is iterating entries, so that
	// Connect calls made from within a callback are appended after
	// the current round's snapshot and do not run this round.
	emitting int
}

// Connect registers fn to be called on every future Emit.
// The returned Observer's Disconnect method removes the subscription.
func (s *Signal[T]) Connect(fn func(T)) *Observer {
	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, entry[T]{id: id, fn: fn})
	return &Observer{id: id, disconnect: s.disconnectID}
}

func (s *Signal[T]) disconnectID(id int) {
	for i := range s.entries {
		if s.entries[i].id == id {
			if s.emitting > 0 {
				// Mark dead rather than slice it out, since Emit
				// may be mid-iteration over s.entries.
				s.entries[i].dead = true
			} else {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
			}
			return
		}
	}
}

// Emit invokes every currently-connected observer with v, in
// connection order. Observers connected by a callback invoked during
// this Emit are not invoked until the next Emit.
func (s *Signal[T]) Emit(v T) {
	n := len(s.entries)
	s.emitting++
	for i := 0; i < n; i++ {
		if s.entries[i].dead {
			continue
		}
		s.entries[i].fn(v)
	}
	s.emitting--
	if s.emitting == 0 && s.hasDead() {
		s.compact()
	}
}

func (s *Signal[T]) hasDead() bool {
	for i := range s.entries {
		if s.entries[i].dead {
			return true
		}
	}
	return false
}

func (s *Signal[T]) compact() {
	live := s.entries[:0]
	for _, e := range s.entries {
		if !e.dead {
			live = append(live, e)
		}
	}
	s.entries = live
}

// Len returns the number of currently-connected observers, including
// any marked for removal mid-emission but not yet compacted.
func (s *Signal[T]) Len() int { return len(s.entries) }
