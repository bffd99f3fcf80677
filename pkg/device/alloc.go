package device

import (
	"unsafe"

	"github.com/calvergne/panelkit/pkg/mtx"
)

// MemClass distinguishes the three allocation pools the runtime manages.
type MemClass int

const (
	ClassDevice MemClass = iota
	ClassHost
	ClassPinned
)

func (c MemClass) String() string {
	switch c {
	case ClassDevice:
		return "device"
	case ClassHost:
		return "host"
	case ClassPinned:
		return "pinned"
	default:
		return "class(invalid)"
	}
}

// Buffer is a typed allocation owned by a Device. Device-class buffers count
// against the device budget; host and pinned buffers are tracked only.
type Buffer[T mtx.Scalar] struct {
	dev   *Device
	class MemClass
	data  []T
	bytes int64
	id    string
	freed bool
}

// Len returns the element capacity of the buffer.
func (b *Buffer[T]) Len() int { return len(b.data) }

// Data exposes the backing storage. The caller must not retain the slice
// past Free.
func (b *Buffer[T]) Data() []T { return b.data }

// Matrix views the first ld*(c-1)+r elements of the buffer as an r×c
// column-major matrix with leading dimension ld.
func (b *Buffer[T]) Matrix(r, c, ld int) mtx.Matrix[T] {
	m := mtx.FromSlice(r, c, ld, b.data)
	m.Loc = b.loc()
	return m
}

// MatrixAt is Matrix offset by off elements into the buffer, used to carve
// workspaces out of a single allocation.
func (b *Buffer[T]) MatrixAt(off, r, c, ld int) mtx.Matrix[T] {
	m := mtx.FromSlice(r, c, ld, b.data[off:])
	m.Loc = b.loc()
	return m
}

func (b *Buffer[T]) loc() mtx.Loc {
	switch b.class {
	case ClassPinned:
		return mtx.PinnedMem
	case ClassHost:
		return mtx.HostMem
	default:
		return mtx.DeviceMem
	}
}

// Malloc allocates n elements of device memory. A request for zero (or
// negative) elements is rounded up to a single element rather than treated as
// a no-op, so every successful call yields a freeable buffer.
func Malloc[T mtx.Scalar](d *Device, n int) (*Buffer[T], error) {
	return alloc[T](d, n, ClassDevice)
}

// MallocHost allocates plain host memory through the same tracked contract.
func MallocHost[T mtx.Scalar](d *Device, n int) (*Buffer[T], error) {
	return alloc[T](d, n, ClassHost)
}

// MallocPinned allocates pinned host memory. On this virtual device pinning
// is a tracking distinction only; the transfer path treats pinned and plain
// host buffers identically.
func MallocPinned[T mtx.Scalar](d *Device, n int) (*Buffer[T], error) {
	return alloc[T](d, n, ClassPinned)
}

func alloc[T mtx.Scalar](d *Device, n int, class MemClass) (*Buffer[T], error) {
	if n <= 0 {
		n = 1
	}
	var zero T
	size := int64(n) * int64(unsafe.Sizeof(zero))
	if class == ClassDevice {
		if err := d.reserve(size); err != nil {
			return nil, err
		}
	}
	b := &Buffer[T]{
		dev:   d,
		class: class,
		data:  make([]T, n),
		bytes: size,
	}
	d.mu.Lock()
	if d.tracker != nil {
		b.id = d.tracker.record(class, size)
	}
	d.mu.Unlock()
	return b, nil
}

// Free releases a buffer of any class. Freeing a nil, foreign, or
// already-freed buffer returns ErrInvalidPtr, mirroring the runtime's
// untracked-pointer diagnostic.
func Free[T mtx.Scalar](d *Device, b *Buffer[T]) error {
	if b == nil || b.dev != d || b.freed {
		return ErrInvalidPtr
	}
	b.freed = true
	if b.class == ClassDevice {
		d.release(b.bytes)
	}
	d.mu.Lock()
	if d.tracker != nil && b.id != "" {
		if !d.tracker.remove(b.id) {
			d.mu.Unlock()
			b.data = nil
			return ErrInvalidPtr
		}
	}
	d.mu.Unlock()
	b.data = nil
	return nil
}

// Memset synchronously sets every element of the buffer to v.
func Memset[T mtx.Scalar](b *Buffer[T], v T) {
	for i := range b.data {
		b.data[i] = v
	}
}

// MemsetAsync sets every element of the buffer to v as an ordered queue
// operation.
func MemsetAsync[T mtx.Scalar](q *Queue, b *Buffer[T], v T) *Event {
	return q.submit(func() {
		Memset(b, v)
	})
}
