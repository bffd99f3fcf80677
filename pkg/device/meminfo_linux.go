//go:build linux

package device

import "golang.org/x/sys/unix"

// hostMemInfo reports the host's free and total memory, which back the
// virtual device when no budget is configured.
func hostMemInfo() (free, total int64) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0
	}
	unit := int64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	return int64(si.Freeram) * unit, int64(si.Totalram) * unit
}
