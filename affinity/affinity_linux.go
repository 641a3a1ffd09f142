//go:build linux

// Package affinity pins the calling OS thread to a single logical CPU
// via sched_setaffinity, through golang.org/x/sys/unix rather than a
// hand-rolled syscall wrapper.
package affinity

import "golang.org/x/sys/unix"

// Pin binds the current OS thread to cpu. Callers must have already
// called runtime.LockOSThread(); Pin does not do so itself since the
// caller usually needs to pin before spawning any other goroutines onto
// that thread, not just before this call.
func Pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
