package device

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Tracker records live allocations per memory class. It is an injectable
// decorator on the allocation path: the drivers never consult it, but tests
// and the serving surface use it to report usage and catch leaks.
type Tracker struct {
	mu   sync.Mutex
	live map[string]trackEntry
}

type trackEntry struct {
	class MemClass
	bytes int64
}

// NewTracker returns an empty tracker. Install it with Device.SetTracker.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[string]trackEntry)}
}

func (t *Tracker) record(class MemClass, bytes int64) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.live[id] = trackEntry{class: class, bytes: bytes}
	t.mu.Unlock()
	return id
}

func (t *Tracker) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[id]; !ok {
		return false
	}
	delete(t.live, id)
	return true
}

// Live returns the number of live allocations and total bytes in the given
// class.
func (t *Tracker) Live(class MemClass) (count int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.live {
		if e.class == class {
			count++
			bytes += e.bytes
		}
	}
	return count, bytes
}

// LeakReport describes allocations still live, suitable for logging at
// shutdown.
func (t *Tracker) LeakReport() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var report []string
	for id, e := range t.live {
		report = append(report, fmt.Sprintf("%s allocation %s (%d bytes) never freed", e.class, id, e.bytes))
	}
	return report
}
