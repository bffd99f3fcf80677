// Package device implements the virtual accelerator the factorization drivers
// run against: budget-tracked device memory, pinned and plain host memory, and
// in-order asynchronous execution queues with completion events.
//
// The contract mirrors a thin accelerator runtime: allocation returns an error
// code rather than panicking, zero-byte requests are rounded up to one element,
// and freeing an untracked or already-freed buffer reports ErrInvalidPtr.
// Compute and copy work is issued asynchronously onto queues and the caller
// synchronizes only where buffer reuse demands it.
package device

import (
	"errors"
	"sync"
)

// Stable error codes for the memory and queue contract.
var (
	// ErrDeviceAlloc is returned when a device allocation exceeds the
	// configured budget or the backing allocation fails.
	ErrDeviceAlloc = errors.New("device: allocation failed")

	// ErrHostAlloc is returned when a host or pinned-host allocation fails.
	ErrHostAlloc = errors.New("device: host allocation failed")

	// ErrInvalidPtr is returned when freeing a buffer this device does not
	// track, or one that was already freed.
	ErrInvalidPtr = errors.New("device: free of untracked buffer")

	// ErrQueueFailed wraps the first failure observed on a queue. Once a
	// queue fails, every later operation on it completes with this error.
	ErrQueueFailed = errors.New("device: queue failed")
)

// Device is a virtual accelerator with a device-memory budget. A zero budget
// means unconstrained; MemInfo then reports the host's memory instead.
type Device struct {
	mu      sync.Mutex
	budget  int64
	used    int64
	tracker *Tracker
}

// Open creates a device with the given device-memory budget in bytes.
// budget <= 0 leaves device memory unconstrained.
func Open(budget int64) *Device {
	return &Device{budget: budget}
}

// SetTracker installs an allocation tracker. Pass nil to disable tracking.
// Intended for diagnostics and tests; production paths never consult it.
func (d *Device) SetTracker(t *Tracker) {
	d.mu.Lock()
	d.tracker = t
	d.mu.Unlock()
}

// Budget returns the configured device-memory budget (0 = unconstrained).
func (d *Device) Budget() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.budget
}

// Used returns the bytes currently allocated on the device.
func (d *Device) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// MemInfo returns the free and total device memory in bytes. With no budget
// configured it falls back to the host's memory, which is what actually backs
// the virtual device.
func (d *Device) MemInfo() (free, total int64) {
	d.mu.Lock()
	budget, used := d.budget, d.used
	d.mu.Unlock()
	if budget > 0 {
		return budget - used, budget
	}
	return hostMemInfo()
}

// reserve charges size bytes against the budget.
func (d *Device) reserve(size int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.budget > 0 && d.used+size > d.budget {
		return ErrDeviceAlloc
	}
	d.used += size
	return nil
}

// release returns size bytes to the budget.
func (d *Device) release(size int64) {
	d.mu.Lock()
	d.used -= size
	d.mu.Unlock()
}
