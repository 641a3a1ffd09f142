package affinity

import "testing"

// TestPinDoesNotPanic exercises the current platform's Pin
// implementation for a plausible CPU index. Affinity syscalls can
// legitimately fail under containerized or restricted test runners
// (EPERM/EINVAL), so this only checks the call is safe to make, not
// that the kernel honors it.
func TestPinDoesNotPanic(t *testing.T) {
	_ = Pin(0)
}
