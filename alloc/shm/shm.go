// Package shm implements a buffer.Allocator backed by an anonymous
// POSIX shared-memory region (memfd + mmap), the "mappable" half of
// the L5 allocator contract (spec §2 L5, §3 "Buffer"). It is the
// allocator the software reference renderer and the headless backend
// use when no DMA-BUF capable GPU is present.
package shm

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/gviegas/kmscore/buffer"
)

// ErrNoFormat is returned when Allocate is given an empty format set.
var ErrNoFormat = errors.New("shm: no format offered")

// bytesPerPixel covers the packed 32bpp formats this allocator and
// render/swrender both understand; a format outside this list is
// rejected rather than guessed at.
func bytesPerPixel(f buffer.FourCC) (int, bool) {
	switch f {
	case buffer.FormatXRGB8888, buffer.FormatARGB8888,
		buffer.FormatXBGR8888, buffer.FormatABGR8888:
		return 4, true
	default:
		return 0, false
	}
}

// Allocator hands out SHM-backed buffers.
type Allocator struct{}

// New returns a ready-to-use Allocator.
func New() *Allocator { return &Allocator{} }

// Caps reports that this allocator only produces mappable buffers.
func (*Allocator) Caps() buffer.Caps { return buffer.CapDataPtr }

// Allocate maps size bytes of anonymous shared memory and attaches it
// to a new Buffer as an SHM view, choosing the first packed format in
// formats this allocator understands.
func (a *Allocator) Allocate(width, height int, formats *buffer.FormatSet) (*buffer.Buffer, error) {
	format, bpp, err := pickFormat(formats)
	if err != nil {
		return nil, err
	}
	stride := width * bpp
	size := stride * height

	fd, err := unix.MemfdCreate("kmscore-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	b := buffer.NewWithAllocator(width, height, a)
	if err := b.SetSHM(&buffer.SHM{Format: format, Stride: uint32(stride), Data: data}); err != nil {
		unix.Munmap(data)
		unix.Close(fd)
		return nil, err
	}
	b.SetExternal(fd)
	return b, nil
}

// Release unmaps and closes the memfd backing b, called from
// buffer.Buffer's destruction path (buffer.Releaser).
func (*Allocator) Release(b *buffer.Buffer) {
	shm := b.SHM()
	if shm != nil && shm.Data != nil {
		unix.Munmap(shm.Data)
	}
	if fd, ok := b.External().(int); ok {
		unix.Close(fd)
	}
}

func pickFormat(formats *buffer.FormatSet) (buffer.FourCC, int, error) {
	if formats == nil || formats.Empty() {
		return 0, 0, ErrNoFormat
	}
	for _, f := range formats.Formats() {
		if bpp, ok := bytesPerPixel(f); ok {
			return f, bpp, nil
		}
	}
	return 0, 0, ErrNoFormat
}
