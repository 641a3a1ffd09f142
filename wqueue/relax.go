package wqueue

import "runtime"

// cpuRelax yields the current goroutine's time slice during the cold
// spin phase of PopWait. Go's scheduler treats runtime.Gosched as a
// back-off hint, so no per-architecture PAUSE assembly is needed.
func cpuRelax() {
	runtime.Gosched()
}
