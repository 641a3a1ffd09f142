// Package framebuf implements the fixed-depth, ring-buffered frame
// storage the pipeline's stages read and write: DataBuffer, CsiBuffer,
// BeamMatrix, EqualBuffer, DemodBuffer, DecodedBuffer, and PhaseBuffer,
// each keyed by frame_id mod W. Every array is allocated once at Store
// construction time from Config and never grows: a single large arena
// per entity rather than one allocation per frame, so steady-state
// operation never touches the Go allocator.
package framebuf

import "phycore/config"

// Store holds every ring-buffered intermediate the pipeline needs,
// sized once from cfg and indexed by (frame_id mod W, ...) everywhere.
// Store itself carries no synchronization: the scheduler's dispatch
// discipline of one writer per (frame, stage, slice) at a time is what
// makes concurrent access to disjoint slices safe, not locking inside
// Store.
type Store struct {
	cfg config.Provider

	w    int // frame window depth
	nd   int // data subcarriers
	a    int // BS antennas
	u    int // UE antennas
	s    int // spatial streams
	btr  int // transpose block size
	dul  int // UL data symbols per frame
	pul  int // UL pilot symbols per frame
	nbm  int // beam groups

	// Data holds one A*Nd partially-transposed complex slice per
	// (frame%W, ul_symbol_idx).
	Data [][]complex64 // [W*Dul][A*Nd]

	// CSI holds one A*Nd partially-transposed, pilot-de-rotated complex
	// slice per (frame%W, ue_idx).
	CSI [][]complex64 // [W*U][A*Nd]

	// Beam holds one S*A complex matrix per (frame%W, beam_sc_id).
	Beam [][]complex64 // [W*Nbeam][S*A]

	// Equal holds one S complex vector per (frame%W, ul_sym, sc), used
	// only when Config.ExportEqual is set.
	Equal [][]complex64 // [W*Dul][Nd*S]

	// Demod holds one M*Nd byte slice per (frame%W, ul_sym, stream).
	// Each byte is either a hard bit (0/1) or a soft LLR depending on
	// Config.HardDemod.
	Demod [][]int8 // [W*Dul*S][M*Nd]

	// Decoded holds decoded payload bytes per (frame%W, ul_sym, ue),
	// sized generously at Nd*M/8 bytes (the codec writes fewer if the
	// code rate is lower; the decode stage tracks the true length
	// separately in DecodedLen).
	Decoded    [][]byte // [W*Dul*U][Nd*M/8]
	DecodedLen [][]int  // matching length actually written

	// Phase holds the S*Pul running pilot-correlation accumulator per
	// frame%W.
	Phase [][]complex64 // [W][S*Pul]
}

// New allocates a Store sized from cfg. All slices are pre-allocated;
// no further growth happens during operation.
func New(cfg config.Provider) *Store {
	st := &Store{
		cfg: cfg,
		w:   cfg.FrameWindow(),
		nd:  cfg.NumDataSubcarriers(),
		a:   cfg.BSAntennas(),
		u:   cfg.UEAntennas(),
		s:   cfg.SpatialStreams(),
		btr: cfg.TransposeBlock(),
		dul: cfg.ULDataSyms(),
		pul: cfg.ULPilotSyms(),
		nbm: cfg.BeamGroups(),
	}

	st.Data = make([][]complex64, st.w*st.dul)
	for i := range st.Data {
		st.Data[i] = make([]complex64, st.a*st.nd)
	}

	st.CSI = make([][]complex64, st.w*st.u)
	for i := range st.CSI {
		st.CSI[i] = make([]complex64, st.a*st.nd)
	}

	st.Beam = make([][]complex64, st.w*st.nbm)
	for i := range st.Beam {
		st.Beam[i] = make([]complex64, st.s*st.a)
	}

	if cfg.ExportEqual() {
		st.Equal = make([][]complex64, st.w*st.dul)
		for i := range st.Equal {
			st.Equal[i] = make([]complex64, st.nd*st.s)
		}
	}

	st.Demod = make([][]int8, st.w*st.dul*st.s)
	for i := range st.Demod {
		st.Demod[i] = make([]int8, cfg.ModOrderBits()*st.nd)
	}

	nBytes := (st.nd*cfg.ModOrderBits() + 7) / 8
	st.Decoded = make([][]byte, st.w*st.dul*st.u)
	st.DecodedLen = make([][]int, st.w)
	for i := range st.Decoded {
		st.Decoded[i] = make([]byte, nBytes)
	}
	for i := range st.DecodedLen {
		st.DecodedLen[i] = make([]int, st.dul*st.u)
	}

	st.Phase = make([][]complex64, st.w)
	for i := range st.Phase {
		st.Phase[i] = make([]complex64, st.s*st.pul)
	}

	return st
}

// slot reduces a frame id to its ring index.
func (st *Store) slot(frameID uint32) int { return int(frameID) & (st.w - 1) }

// DataSlice returns the writable A*Nd partial-transpose buffer for one
// uplink-data symbol of one frame.
func (st *Store) DataSlice(frameID uint32, ulSymIdx int) []complex64 {
	return st.Data[st.slot(frameID)*st.dul+ulSymIdx]
}

// CSISlice returns the writable A*Nd partial-transpose buffer for one
// UE's pilot of one frame.
func (st *Store) CSISlice(frameID uint32, ueIdx int) []complex64 {
	return st.CSI[st.slot(frameID)*st.u+ueIdx]
}

// BeamSlice returns the writable S*A beam matrix for one beam group of
// one frame.
func (st *Store) BeamSlice(frameID uint32, beamScID int) []complex64 {
	return st.Beam[st.slot(frameID)*st.nbm+beamScID]
}

// EqualSlice returns the writable Nd*S export buffer for one uplink-data
// symbol of one frame. Callers must check len(st.Equal) != 0 first.
func (st *Store) EqualSlice(frameID uint32, ulSymIdx int) []complex64 {
	return st.Equal[st.slot(frameID)*st.dul+ulSymIdx]
}

// DemodSlice returns the writable M*Nd demod buffer for one stream of
// one uplink-data symbol of one frame.
func (st *Store) DemodSlice(frameID uint32, ulSymIdx, stream int) []int8 {
	return st.Demod[(st.slot(frameID)*st.dul+ulSymIdx)*st.s+stream]
}

// DecodedSlice returns the writable byte buffer for one UE's decoded
// payload of one uplink-data symbol of one frame.
func (st *Store) DecodedSlice(frameID uint32, ulSymIdx, ue int) []byte {
	return st.Decoded[(st.slot(frameID)*st.dul+ulSymIdx)*st.u+ue]
}

// SetDecodedLen records how many bytes of DecodedSlice hold valid data.
func (st *Store) SetDecodedLen(frameID uint32, ulSymIdx, ue, n int) {
	st.DecodedLen[st.slot(frameID)][ulSymIdx*st.u+ue] = n
}

// DecodedLength returns the valid byte count set by SetDecodedLen.
func (st *Store) DecodedLength(frameID uint32, ulSymIdx, ue int) int {
	return st.DecodedLen[st.slot(frameID)][ulSymIdx*st.u+ue]
}

// PhaseSlice returns the writable S*Pul phase-tracking accumulator for
// one frame.
func (st *Store) PhaseSlice(frameID uint32) []complex64 {
	return st.Phase[st.slot(frameID)]
}

// ResetPhase zeroes the phase-tracking accumulator for one frame;
// called exactly once, lazily, when the first pilot subcarrier of the
// *next* frame's UL pilot symbol arrives. This relies on frames within
// a window being processed in roughly arrival order — callers reusing
// a slot out of order must reset explicitly.
func (st *Store) ResetPhase(frameID uint32) {
	sl := st.PhaseSlice(frameID)
	for i := range sl {
		sl[i] = 0
	}
}

// TransposeBlockSize exposes B_tr so callers computing partial-transpose
// offsets don't need a separate Config lookup.
func (st *Store) TransposeBlockSize() int { return st.btr }

// BSAntennas exposes A for the same reason.
func (st *Store) BSAntennas() int { return st.a }

// DataOffset computes the partial-transpose element offset within a
// DataSlice/CSISlice buffer for antenna ant, data-subcarrier sc:
// data[sc_block*B_tr*A + ant*B_tr + sc_in_block].
func (st *Store) DataOffset(ant, sc int) int {
	block := sc / st.btr
	scInBlock := sc % st.btr
	return block*st.btr*st.a + ant*st.btr + scInBlock
}
