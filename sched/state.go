// Package sched implements the pipeline's frame state machine and the
// completion-counter transitions that drive it, plus the symmetric
// worker-goroutine dispatch loop that executes stage kernels against
// it. The state machine itself is a flat array of frameSlot values
// indexed by ring slot, cross-referenced only by index rather than by
// pointer or map lookup. AdmitFrame allocates each admitted frame's
// per-symbol counter slices afresh.
package sched

import (
	"sync"

	"phycore/config"
)

// State is one frame's position in the pipeline: empty ->
// receiving_pilots -> receiving_data -> beam_ready -> equalizing ->
// decoding -> retired.
type State uint8

const (
	StateEmpty State = iota
	StateReceivingPilots
	StateReceivingData
	StateBeamReady
	StateEqualizing
	StateDecoding
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReceivingPilots:
		return "receiving_pilots"
	case StateReceivingData:
		return "receiving_data"
	case StateBeamReady:
		return "beam_ready"
	case StateEqualizing:
		return "equalizing"
	case StateDecoding:
		return "decoding"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

type frameSlot struct {
	state   State
	frameID uint32
	valid   bool

	pilotsRemaining int // A*U pilot-FFT completions needed before beam-ready

	beamRemaining int // Nbeam beam-matrix completions
	beamDone      bool

	dataAntRemaining []int // per ul_sym, A antennas
	dataDone         []bool

	equalizeEnqueued  []bool
	equalizeRemaining []int // per ul_sym, number of demod blocks
	equalizeDone      []bool

	decodeRemaining []int // per ul_sym, U users
	decodeDone      []bool

	deadlineMissed bool
}

// Scheduler owns the flat frame-slot array and the completion-counter
// transitions that drive it. It does not itself run stage kernels or
// own queues — Coordinator (scheduler.go) composes a Scheduler with
// wqueue.Queue instances and a Dispatcher to do that — keeping the
// pure state-machine logic here separately testable, free of any I/O.
type Scheduler struct {
	mu    sync.Mutex
	cfg   config.Provider
	slots []frameSlot

	blocksPerSymbol int
}

// New builds a Scheduler with cfg.FrameWindow() slots, all initially
// retired (so the first W frames can be admitted immediately).
func New(cfg config.Provider) *Scheduler {
	w := cfg.FrameWindow()
	nd := cfg.NumDataSubcarriers()
	bdem := cfg.DemodBlock()
	blocks := (nd + bdem - 1) / bdem

	s := &Scheduler{cfg: cfg, slots: make([]frameSlot, w), blocksPerSymbol: blocks}
	for i := range s.slots {
		s.slots[i].state = StateRetired
	}
	return s
}

func (s *Scheduler) slot(frameID uint32) *frameSlot {
	return &s.slots[int(frameID)&(s.cfg.FrameWindow()-1)]
}

// AdmitFrame transitions an empty/retired slot into receiving_pilots,
// refusing admission if the slot's current occupant has not yet
// retired.
func (s *Scheduler) AdmitFrame(frameID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if sl.valid && sl.state != StateRetired {
		return &config.Error{Kind: config.ErrBackpressure, Op: "admit frame: slot not retired", Frame: int64(frameID)}
	}

	dul := s.cfg.ULDataSyms()
	*sl = frameSlot{
		state:             StateReceivingPilots,
		frameID:           frameID,
		valid:             true,
		pilotsRemaining:   s.cfg.BSAntennas() * s.cfg.UEAntennas(),
		beamRemaining:     s.cfg.BeamGroups(),
		dataAntRemaining:  make([]int, dul),
		dataDone:          make([]bool, dul),
		equalizeEnqueued:  make([]bool, dul),
		equalizeRemaining: make([]int, dul),
		equalizeDone:      make([]bool, dul),
		decodeRemaining:   make([]int, dul),
		decodeDone:        make([]bool, dul),
	}
	for i := range sl.dataAntRemaining {
		sl.dataAntRemaining[i] = s.cfg.BSAntennas()
		sl.equalizeRemaining[i] = s.blocksPerSymbol
		sl.decodeRemaining[i] = s.cfg.UEAntennas()
	}
	return nil
}

// PilotComplete records one pilot-symbol FFT completion. When the last
// one lands, the frame becomes beam_ready and the caller should enqueue
// one beam-matrix work item per beam group.
func (s *Scheduler) PilotComplete(frameID uint32) (beamReady bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if err := s.checkValid(sl, frameID); err != nil {
		return false, err
	}
	sl.pilotsRemaining--
	if sl.pilotsRemaining <= 0 {
		sl.state = StateReceivingData
		return true, nil
	}
	return false, nil
}

// DataComplete records one uplink-data symbol's antenna FFT completion.
// It returns readyForEqualize=true exactly once per symbol, the moment
// both that symbol's antennas are all done and the frame's beamforming
// is complete.
func (s *Scheduler) DataComplete(frameID uint32, ulSymIdx int) (readyForEqualize bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if err := s.checkValid(sl, frameID); err != nil {
		return false, err
	}
	sl.dataAntRemaining[ulSymIdx]--
	if sl.dataAntRemaining[ulSymIdx] <= 0 {
		sl.dataDone[ulSymIdx] = true
	}
	return s.maybeEnqueueEqualize(sl, ulSymIdx), nil
}

// BeamComplete records one beam-matrix group's completion. When the
// last one lands it may unlock equalize work for any uplink-data symbol
// whose antennas already finished; the caller must enqueue equalize
// work for every symbol index in the returned slice.
func (s *Scheduler) BeamComplete(frameID uint32) (readySymbols []int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if err := s.checkValid(sl, frameID); err != nil {
		return nil, err
	}
	sl.beamRemaining--
	if sl.beamRemaining > 0 {
		return nil, nil
	}
	sl.beamDone = true
	sl.state = StateBeamReady

	for i := range sl.dataDone {
		if s.maybeEnqueueEqualize(sl, i) {
			readySymbols = append(readySymbols, i)
		}
	}
	return readySymbols, nil
}

// maybeEnqueueEqualize marks ulSymIdx's equalize work enqueued and
// returns true exactly once, the first moment both preconditions hold.
// Caller must hold s.mu.
func (s *Scheduler) maybeEnqueueEqualize(sl *frameSlot, ulSymIdx int) bool {
	if !sl.beamDone || !sl.dataDone[ulSymIdx] || sl.equalizeEnqueued[ulSymIdx] {
		return false
	}
	sl.equalizeEnqueued[ulSymIdx] = true
	sl.state = StateEqualizing
	return true
}

// EqualizeComplete records one demod-block completion for ulSymIdx.
// When the last block for that symbol lands, decode work for that
// symbol's U users should be enqueued.
func (s *Scheduler) EqualizeComplete(frameID uint32, ulSymIdx int) (readyForDecode bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if err := s.checkValid(sl, frameID); err != nil {
		return false, err
	}
	sl.equalizeRemaining[ulSymIdx]--
	if sl.equalizeRemaining[ulSymIdx] <= 0 {
		sl.equalizeDone[ulSymIdx] = true
		sl.state = StateDecoding
		return true, nil
	}
	return false, nil
}

// DecodeComplete records one (ulSymIdx, ue) decode completion. Once
// every symbol's every user has decoded, the frame retires and its ring
// slot becomes available for a future AdmitFrame.
func (s *Scheduler) DecodeComplete(frameID uint32, ulSymIdx int) (retired bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(frameID)
	if err := s.checkValid(sl, frameID); err != nil {
		return false, err
	}
	sl.decodeRemaining[ulSymIdx]--
	if sl.decodeRemaining[ulSymIdx] <= 0 {
		sl.decodeDone[ulSymIdx] = true
	}
	for _, done := range sl.decodeDone {
		if !done {
			return false, nil
		}
	}
	sl.state = StateRetired
	return true, nil
}

// State returns frameID's current state, or StateEmpty if its slot has
// never been admitted or belongs to a different frame.
func (s *Scheduler) State(frameID uint32) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(frameID)
	if !sl.valid || sl.frameID != frameID {
		return StateEmpty
	}
	return sl.state
}

// MarkDeadlineMissed flags frameID's slot without altering its state or
// halting its processing: an overdue frame still completes and its
// data is still written, just flagged as late.
func (s *Scheduler) MarkDeadlineMissed(frameID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(frameID)
	if sl.valid && sl.frameID == frameID {
		sl.deadlineMissed = true
	}
}

// DeadlineMissed reports whether frameID's slot was flagged.
func (s *Scheduler) DeadlineMissed(frameID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(frameID)
	return sl.valid && sl.frameID == frameID && sl.deadlineMissed
}

func (s *Scheduler) checkValid(sl *frameSlot, frameID uint32) error {
	if !sl.valid || sl.frameID != frameID {
		return &config.Error{Kind: config.ErrSchedule, Op: "completion for unadmitted/stale frame", Frame: int64(frameID)}
	}
	return nil
}
