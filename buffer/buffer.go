// Package buffer implements the reference-counted pixel container
// shared by every layer above it: the allocator hands buffers out,
// the scene graph attaches them to nodes, and the output commit path
// locks them for the duration of a scan-out or render pass.
package buffer

import (
	"errors"
	"sync"

	"github.com/gviegas/kmscore/internal/addon"
)

// ErrDropped is returned by SetDMABuf/SetSHM once Drop has been
// called, even while locks are still held.
var ErrDropped = errors.New("buffer: use of dropped buffer")

// ErrBothViews is returned by SetDMABuf/SetSHM when the Buffer would
// end up carrying more than one DMA-BUF or more than one SHM view for
// the same content (spec §3 invariant).
var ErrBothViews = errors.New("buffer: a buffer may carry at most one DMA-BUF and one SHM view")

// Plane describes one plane of a DMA-BUF backed Buffer.
type Plane struct {
	FD     uintptr
	Offset uint32
	Stride uint32
}

// DMABuf is the DMA-BUF backing representation: one or more planes,
// a DRM format and a modifier describing their memory layout.
type DMABuf struct {
	Format   FourCC
	Modifier uint64
	Planes   []Plane
}

// SHM is the shared-memory backing representation: a mapped region,
// its row stride, and the DRM format describing how to interpret it.
type SHM struct {
	Format FourCC
	Stride uint32
	Data   []byte
}

// Allocator is the interface an allocator backend implements to hand
// out buffers with declared capabilities (spec §2 L5).
type Allocator interface {
	// Caps returns the set of backing representations this allocator
	// can produce.
	Caps() Caps

	// Allocate creates a new Buffer of the given size in one of the
	// formats/modifiers named by formats. The allocator chooses which
	// (format, modifier) pair to use from the set.
	Allocate(width, height int, formats *FormatSet) (*Buffer, error)
}

// Releaser is implemented by allocators that hold backing memory (an
// mmap region, a dmabuf fd) which must be reclaimed when a Buffer
// they created is destroyed, rather than left for the garbage
// collector (spec §3 "Buffer": "once released by all consumers the
// buffer is returned to its allocator or destroyed").
type Releaser interface {
	Release(b *Buffer)
}

// Caps is a bitfield of backing representations a Buffer, renderer or
// allocator supports.
type Caps uint

const (
	CapDMABuf Caps = 1 << iota
	CapDataPtr
)

// Buffer is a reference-counted pixel container. It carries at most
// one DMA-BUF view and one SHM view of the same pixel content; once
// released by all lock holders after a Drop request it is returned to
// its allocator (if any) or simply discarded.
type Buffer struct {
	mu sync.Mutex

	width, height int
	dma           *DMABuf
	shm           *SHM
	external      any // opaque client resource identity, if imported

	allocator Allocator
	locks     int
	dropped   bool
	destroyed bool

	addons addon.Set
}

// New creates an unbacked Buffer of the given size. Use SetDMABuf,
// SetSHM or SetExternal to attach a backing representation before
// first use.
func New(width, height int) *Buffer {
	return &Buffer{width: width, height: height}
}

// NewWithAllocator is like New but records allocator as the owner to
// return the buffer to once dropped and unlocked.
func NewWithAllocator(width, height int, allocator Allocator) *Buffer {
	b := New(width, height)
	b.allocator = allocator
	return b
}

// Width and Height return the buffer's fixed pixel dimensions.
func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// SetDMABuf attaches a DMA-BUF view to b. It is an error to call this
// after a DMA-BUF view is already attached.
func (b *Buffer) SetDMABuf(d *DMABuf) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped {
		return ErrDropped
	}
	if b.dma != nil {
		return ErrBothViews
	}
	b.dma = d
	return nil
}

// SetSHM attaches a shared-memory view to b. It is an error to call
// this after an SHM view is already attached.
func (b *Buffer) SetSHM(s *SHM) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped {
		return ErrDropped
	}
	if b.shm != nil {
		return ErrBothViews
	}
	b.shm = s
	return nil
}

// SetExternal records the identity of the external client resource
// this Buffer was imported from, if any.
func (b *Buffer) SetExternal(res any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.external = res
}

// DMABuf returns the attached DMA-BUF view, or nil.
func (b *Buffer) DMABuf() *DMABuf {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dma
}

// SHM returns the attached shared-memory view, or nil.
func (b *Buffer) SHM() *SHM {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shm
}

// External returns the external client resource identity this Buffer
// was imported from, or nil.
func (b *Buffer) External() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.external
}

// Addons returns the addon set attached to b, for use by compositor
// extensions that need to stash per-buffer state.
func (b *Buffer) Addons() *addon.Set { return &b.addons }

// Lock acquires a reference on b, preventing destruction until a
// matching Unlock. It returns the lock count after acquiring.
func (b *Buffer) Lock() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locks++
	return b.locks
}

// Unlock releases a reference acquired by Lock. If a Drop is pending
// and this was the last lock, the buffer is destroyed.
func (b *Buffer) Unlock() {
	b.mu.Lock()
	b.locks--
	destroy := b.dropped && b.locks <= 0 && !b.destroyed
	if destroy {
		b.destroyed = true
	}
	b.mu.Unlock()
	if destroy {
		b.doDestroy()
	}
}

// Drop requests destruction of b. If there are no outstanding locks,
// b is destroyed immediately; otherwise destruction happens on the
// last matching Unlock.
func (b *Buffer) Drop() {
	b.mu.Lock()
	already := b.dropped
	b.dropped = true
	destroy := !already && b.locks <= 0 && !b.destroyed
	if destroy {
		b.destroyed = true
	}
	b.mu.Unlock()
	if destroy {
		b.doDestroy()
	}
}

// Dropped reports whether Drop has been requested.
func (b *Buffer) Dropped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// doDestroy releases any backing resources and, if the buffer was
// allocator-owned, hands the slot back; it never leaves an allocator
// buffer referencing freed memory, and it is only ever invoked once
// per Buffer (guarded by b.destroyed under b.mu in Unlock/Drop).
func (b *Buffer) doDestroy() {
	b.addons.ClearOwner(b)
	if r, ok := b.allocator.(Releaser); ok {
		r.Release(b)
	}
	// The plane fds of a DMA-BUF view are not closed here; only the
	// views are cleared.
	b.dma = nil
	b.shm = nil
}
