package buffer

import (
	"unsafe"

	"honnef.co/go/safeish"
)

// ViewSHM constructs a []byte view over a client-owned shared-memory
// mapping given its base pointer, without copying. ptr must remain
// valid (the client's SHM pool must stay mapped) for the lifetime of
// the returned slice; callers normally pair this with a Lock on the
// pool's own refcount, not the Buffer's.
//
// unsafe.Slice requires a typed pointer, so the untyped mapping
// pointer handed to us by the platform's mmap call is cast through
// safeish.Cast rather than an unchecked unsafe.Pointer conversion.
func ViewSHM(ptr unsafe.Pointer, length int) []byte {
	if ptr == nil || length <= 0 {
		return nil
	}
	return unsafe.Slice(safeish.Cast[*byte](ptr), length)
}

// RowAt returns the byte range of row y within an SHM view, given its
// stride. It panics if y is out of bounds for data/stride.
func RowAt(data []byte, stride uint32, y int) []byte {
	start := y * int(stride)
	end := start + int(stride)
	return data[start:end]
}
