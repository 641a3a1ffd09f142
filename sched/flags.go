package sched

import "sync/atomic"

// Flags holds one scheduler's hot/stop signaling state as atomics on an
// instance rather than package-level globals, so any number of
// Coordinator values can run independently without sharing state.
type Flags struct {
	hot  uint32
	stop uint32
}

// SignalActivity marks the scheduler as having just done useful work by
// setting the hot flag; RunWorker calls it on every dequeue.
func (f *Flags) SignalActivity() { atomic.StoreUint32(&f.hot, 1) }

// MarkCold clears the hot flag.
func (f *Flags) MarkCold() { atomic.StoreUint32(&f.hot, 0) }

// Hot reports whether the scheduler saw activity since the last
// MarkCold, letting a worker decide whether to spin without yielding
// or to cooperatively relax.
func (f *Flags) Hot() bool { return atomic.LoadUint32(&f.hot) != 0 }

// Shutdown requests every worker sharing this Flags value to stop.
func (f *Flags) Shutdown() { atomic.StoreUint32(&f.stop, 1) }

// Stopped reports whether Shutdown has been called.
func (f *Flags) Stopped() bool { return atomic.LoadUint32(&f.stop) != 0 }

// StopPtr exposes the stop flag's address for wqueue.Queue.PopWait,
// which takes a *uint32 rather than a Flags to stay independent of
// this package.
func (f *Flags) StopPtr() *uint32 { return &f.stop }
