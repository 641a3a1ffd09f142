package sched

import (
	"runtime"

	"phycore/config"
	"phycore/descriptor"
	"phycore/wqueue"
)

// StageFunc executes one stage kernel for the work item tag identifies.
// Coordinator and RunWorker never inspect what a StageFunc does; they
// only care about the completion event it implies, matching doer.h's
// Doer.Launch abstraction (a Doer never knows what its subclass's
// Launch actually computes).
type StageFunc func(tag descriptor.Tag) error

// Dispatcher supplies the four stage kernels a Coordinator's workers
// invoke. A nil entry means that stage's queue is drained without
// executing anything (useful in tests that only exercise the state
// machine's bookkeeping).
type Dispatcher struct {
	FFT, Beam, Equalize, Decode StageFunc
}

// ErrorPolicy classifies a stage error into "recovered locally, keep
// going" or "propagate": numerical and deadline errors recover locally,
// everything else is passed to the coordinator's OnFatal callback.
func ErrorPolicy(err error) (recoverLocally bool) {
	cerr, ok := err.(*config.Error)
	if !ok {
		return false
	}
	return cerr.Kind == config.ErrNumerical || cerr.Kind == config.ErrDeadline
}

// Coordinator composes a Scheduler's pure state machine with lock-free
// per-stage queues: the coordinator itself runs single-threaded,
// reading the completion queue and posting new work to the per-stage
// input queues, while any number of worker goroutines drain those
// queues concurrently.
type Coordinator struct {
	sched *Scheduler
	cfg   config.Provider

	fftQ, beamQ, equalizeQ, decodeQ *wqueue.Queue
	completionQ                    *wqueue.Queue

	flags *Flags

	// OnFatal, if set, is called with any error whose ErrorPolicy says
	// not to recover locally. If nil, such errors are dropped, which is
	// only acceptable for tests exercising the queue plumbing alone.
	OnFatal func(err error)
}

// NewCoordinator builds a Coordinator whose per-stage queues each hold
// up to queueSize items (must be a power of two, per wqueue.New).
func NewCoordinator(sched *Scheduler, cfg config.Provider, queueSize int) *Coordinator {
	return &Coordinator{
		sched:       sched,
		cfg:         cfg,
		fftQ:        wqueue.New(queueSize),
		beamQ:       wqueue.New(queueSize),
		equalizeQ:   wqueue.New(queueSize),
		decodeQ:     wqueue.New(queueSize),
		completionQ: wqueue.New(queueSize),
		flags:       &Flags{},
	}
}

// Flags exposes the coordinator's hot/stop flags so callers can wire
// their own shutdown signal handling to it.
func (c *Coordinator) Flags() *Flags { return c.flags }

// EnqueueFFT admits an FFT dispatch descriptor from the ingress path.
// It returns false if the FFT queue is full; retrying with backoff or
// hard-failing on persistent backpressure is the caller's
// responsibility, not the queue's.
func (c *Coordinator) EnqueueFFT(tag descriptor.Tag) bool { return c.fftQ.Push(uint64(tag)) }

// PostCompletion is called by a worker once it finishes executing a
// stage kernel, handing the completion tag back to the single-threaded
// coordinator loop. The tag carries no error; RunWorker reports stage
// errors through OnFatal before posting it.
func (c *Coordinator) PostCompletion(tag descriptor.Tag) bool { return c.completionQ.Push(uint64(tag)) }

// RunCoordinator drains the completion queue and, for each completion,
// applies the matching Scheduler transition and enqueues any
// newly-unlocked work. It returns when Flags().Shutdown() is called and
// the completion queue observes the stop flag.
func (c *Coordinator) RunCoordinator() {
	for {
		v, ok := c.completionQ.PopWait(c.flags.StopPtr())
		if !ok {
			return
		}
		c.handleCompletion(descriptor.Tag(v))
	}
}

func (c *Coordinator) handleCompletion(tag descriptor.Tag) {
	switch tag.Event() {
	case descriptor.EvFFTDone:
		c.handleFFTDone(tag)
	case descriptor.EvBeamDone:
		c.handleBeamDone(tag)
	case descriptor.EvEqualizeDone:
		c.handleEqualizeDone(tag)
	case descriptor.EvDecodeDone:
		c.handleDecodeDone(tag)
	}
}

func (c *Coordinator) handleFFTDone(tag descriptor.Tag) {
	switch c.cfg.SymbolType(int(tag.SymbolID())) {
	case config.SymPilot:
		beamReady, err := c.sched.PilotComplete(tag.FrameID())
		if err != nil {
			c.fatal(err)
			return
		}
		if beamReady {
			for g := 0; g < c.cfg.BeamGroups(); g++ {
				c.beamQ.Push(uint64(descriptor.Pack(descriptor.EvBeam, tag.FrameID(), 0, uint32(g))))
			}
		}
	case config.SymUplinkData:
		ulIdx := c.cfg.ULSymbolIdx(int(tag.SymbolID()))
		if ulIdx < 0 {
			c.fatal(&config.Error{Kind: config.ErrSchedule, Op: "FFT-done for unscheduled uplink symbol", Frame: int64(tag.FrameID()), Symbol: int(tag.SymbolID())})
			return
		}
		ready, err := c.sched.DataComplete(tag.FrameID(), ulIdx)
		if err != nil {
			c.fatal(err)
			return
		}
		if ready {
			c.enqueueEqualizeBlocks(tag.FrameID(), ulIdx)
		}
	}
}

func (c *Coordinator) handleBeamDone(tag descriptor.Tag) {
	ready, err := c.sched.BeamComplete(tag.FrameID())
	if err != nil {
		c.fatal(err)
		return
	}
	for _, ulIdx := range ready {
		c.enqueueEqualizeBlocks(tag.FrameID(), ulIdx)
	}
}

func (c *Coordinator) enqueueEqualizeBlocks(frameID uint32, ulIdx int) {
	nd := c.cfg.NumDataSubcarriers()
	bdem := c.cfg.DemodBlock()
	for base := 0; base < nd; base += bdem {
		c.equalizeQ.Push(uint64(descriptor.Pack(descriptor.EvEqualize, frameID, uint8(ulIdx), uint32(base))))
	}
}

func (c *Coordinator) handleEqualizeDone(tag descriptor.Tag) {
	ulIdx := int(tag.SymbolID())
	ready, err := c.sched.EqualizeComplete(tag.FrameID(), ulIdx)
	if err != nil {
		c.fatal(err)
		return
	}
	if ready {
		for ue := 0; ue < c.cfg.UEAntennas(); ue++ {
			c.decodeQ.Push(uint64(descriptor.Pack(descriptor.EvDecode, tag.FrameID(), uint8(ulIdx), uint32(ue))))
		}
	}
}

func (c *Coordinator) handleDecodeDone(tag descriptor.Tag) {
	ulIdx := int(tag.SymbolID())
	if _, err := c.sched.DecodeComplete(tag.FrameID(), ulIdx); err != nil {
		c.fatal(err)
	}
}

func (c *Coordinator) fatal(err error) {
	if c.OnFatal != nil {
		c.OnFatal(err)
	}
}

// RunWorker is one symmetric worker's poll loop: try each stage queue
// in dependency order (fft, beam, equalize, decode), execute whichever
// descriptor it finds, and post the matching completion. When every
// queue is empty it cooperatively yields rather than busy-spinning
// indefinitely; callers needing OS-thread pinning wrap this with the
// affinity package.
func RunWorker(c *Coordinator, disp Dispatcher) {
	queues := [4]*wqueue.Queue{c.fftQ, c.beamQ, c.equalizeQ, c.decodeQ}
	fns := [4]StageFunc{disp.FFT, disp.Beam, disp.Equalize, disp.Decode}
	doneEvents := [4]descriptor.Event{
		descriptor.EvFFTDone, descriptor.EvBeamDone,
		descriptor.EvEqualizeDone, descriptor.EvDecodeDone,
	}

	idleSpins := 0
	for !c.flags.Stopped() {
		handled := false
		for i, q := range queues {
			v, ok := q.Pop()
			if !ok {
				continue
			}
			tag := descriptor.Tag(v)
			c.flags.SignalActivity()
			if fn := fns[i]; fn != nil {
				if err := fn(tag); err != nil && !ErrorPolicy(err) {
					c.fatal(err)
				}
			}
			c.PostCompletion(tag.WithEvent(doneEvents[i]))
			handled = true
			break
		}
		if handled {
			idleSpins = 0
			continue
		}
		idleSpins++
		if idleSpins > 256 {
			runtime.Gosched()
		}
	}
}
