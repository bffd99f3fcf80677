//go:build !linux

package device

import "runtime"

// hostMemInfo falls back to the Go runtime's view of memory on platforms
// without a sysinfo call.
func hostMemInfo() (free, total int64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapIdle), int64(ms.Sys)
}
