package output

import (
	"errors"

	"github.com/gviegas/kmscore/buffer"
)

// ErrNoBackbuffer means every slot in the swapchain is currently
// acquired; callers must wait for a page-flip to release one (spec
// §3 "Swapchain").
var ErrNoBackbuffer = errors.New("output: all swapchain back buffers in use")

// swapchainCapacity is the small constant ring size named in spec §3
// ("around four").
const swapchainCapacity = 4

type slot struct {
	buf      *buffer.Buffer
	acquired bool
	// displayed marks the slot currently on screen: it must not be
	// handed out again until a later submission retires it, or the
	// caller would render into the buffer the CRTC is scanning out.
	displayed bool
	age       int // frames since this slot was last submitted, 0 = never
}

// Swapchain is a small ring of identically formatted buffers backing
// one Output's back-buffer allocation (spec §3 "Swapchain"), adapted
// from the acquire/submit/recreate lifecycle a presentation swapchain
// exposes to its driver.
type Swapchain struct {
	alloc    buffer.Allocator
	width    int
	height   int
	formats  *buffer.FormatSet
	format   buffer.FourCC
	modifier uint64

	slots []slot
}

// NewSwapchain creates a swapchain with no buffers allocated yet;
// the first Acquire call lazily allocates through alloc.
func NewSwapchain(alloc buffer.Allocator, width, height int, format buffer.FourCC, formats *buffer.FormatSet) *Swapchain {
	return &Swapchain{alloc: alloc, width: width, height: height, format: format, formats: formats}
}

// Recreate destroys every current buffer and reconfigures the
// swapchain for a new size/format, to be called when the output's
// mode or render format changes (spec §4.4 step 3 "if the swapchain
// needs recreating, pick a format").
func (sc *Swapchain) Recreate(width, height int, format buffer.FourCC, formats *buffer.FormatSet) {
	sc.Destroy()
	sc.width, sc.height, sc.format, sc.formats = width, height, format, formats
}

// Acquire returns a free slot's buffer and its age (frames since it
// was last submitted; 0 means never submitted, i.e. freshly
// allocated), or ErrNoBackbuffer if every slot is in flight.
func (sc *Swapchain) Acquire() (buf *buffer.Buffer, age int, err error) {
	for i := range sc.slots {
		if !sc.slots[i].acquired && !sc.slots[i].displayed {
			sc.slots[i].acquired = true
			return sc.slots[i].buf, sc.slots[i].age, nil
		}
	}
	if len(sc.slots) >= swapchainCapacity {
		return nil, 0, ErrNoBackbuffer
	}
	b, err := sc.alloc.Allocate(sc.width, sc.height, sc.formats)
	if err != nil {
		return nil, 0, err
	}
	sc.slots = append(sc.slots, slot{buf: b, acquired: true, age: 0})
	return b, 0, nil
}

// SetSubmitted records that buf will be displayed this frame: its
// slot's age resets to 1 and every other slot's age increments, so
// age tracks "frames since this buffer was current" for damage-ring
// lookups (spec §4.6 "get_buffer_damage(age)"). The previously
// displayed slot, if any, is released back to the free pool now that
// buf has replaced it on screen.
func (sc *Swapchain) SetSubmitted(buf *buffer.Buffer) {
	for i := range sc.slots {
		if sc.slots[i].buf == buf {
			sc.slots[i].acquired = false
			sc.slots[i].displayed = true
			sc.slots[i].age = 1
		} else {
			if sc.slots[i].displayed {
				sc.slots[i].displayed = false
			}
			if sc.slots[i].age > 0 {
				sc.slots[i].age++
			}
		}
	}
}

// Release returns an acquired buffer to the free pool without
// marking it submitted, for callers that acquired a buffer but did
// not end up using it this frame (e.g. test_state).
func (sc *Swapchain) Release(buf *buffer.Buffer) {
	for i := range sc.slots {
		if sc.slots[i].buf == buf {
			sc.slots[i].acquired = false
		}
	}
}

// Format returns the swapchain's current pixel format.
func (sc *Swapchain) Format() buffer.FourCC { return sc.format }

// Destroy drops every buffer the swapchain holds.
func (sc *Swapchain) Destroy() {
	for _, s := range sc.slots {
		s.buf.Drop()
	}
	sc.slots = nil
}
