//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// lowerPriority renices the current process. Nice 10 keeps us schedulable
// but behind the measured workload.
func lowerPriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, 10)
}
