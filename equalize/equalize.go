// Package equalize implements the pipeline's equalize+demodulate
// stage, its largest single stage: per-subcarrier zero-forcing
// equalization via the gemm package, phase tracking from
// pilot-within-uplink symbols, EVM accumulation, and
// modulation-order-configurable demodulation. The antenna gather uses
// a lane-grouped strided copy with a scalar tail, the plain-Go
// equivalent of a SIMD gather.
package equalize

import (
	"phycore/config"
	"phycore/framebuf"
	"phycore/gemm"
	"phycore/telemetry"
)

// laneWidth models a SIMD antenna-gather lane count; on a real vector
// ISA a multiple of this count can gather in one instruction. Here it
// only shapes the loop structure so the non-multiple-tail boundary
// case is a real code path, not a hypothetical one.
const laneWidth = 4

// Equalizer holds the sink and per-worker scratch state for one
// equalize/demod worker goroutine. Not safe for concurrent use across
// goroutines, matching the FFT stage's per-worker Stage convention.
type Equalizer struct {
	cfg      config.Provider
	sink     telemetry.Sink
	xScratch []complex64
	offsets  []int
}

// New builds an Equalizer sized from cfg, publishing statistics to sink.
func New(cfg config.Provider, sink telemetry.Sink) *Equalizer {
	return &Equalizer{
		cfg:      cfg,
		sink:     sink,
		xScratch: make([]complex64, cfg.BSAntennas()),
		offsets:  make([]int, cfg.BSAntennas()),
	}
}

// Process equalizes and demodulates one demod-block work item
// (frame_id, ul_sym_idx, base_sc). K = min(Bdem, Nd-baseSC) clips the
// block width at the last subcarrier range's boundary. ulSymIdx is
// already the 0-based uplink-data index (the
// same value the coordinator packs into the descriptor's symbol field
// at sched/scheduler.go's enqueueEqualizeBlocks and decode.Process
// consumes directly) — it is not a raw schedule symbol id, so it must
// not be re-run through config.Provider.ULSymbolIdx here.
func (e *Equalizer) Process(st *framebuf.Store, frameID uint32, ulSymIdx, baseSC int) error {
	nd := e.cfg.NumDataSubcarriers()
	a := e.cfg.BSAntennas()
	s := e.cfg.SpatialStreams()
	pul := e.cfg.ULPilotSyms()

	k := e.cfg.DemodBlock()
	if baseSC+k > nd {
		k = nd - baseSC
	}
	if k <= 0 {
		return &config.Error{Kind: config.ErrConfig, Op: "equalize block wholly out of range", Frame: int64(frameID), Symbol: ulSymIdx}
	}

	dataSlice := st.DataSlice(frameID, ulSymIdx)
	var equalSlice []complex64
	if e.cfg.ExportEqual() {
		equalSlice = st.EqualSlice(frameID, ulSymIdx)
	}

	y := make([]complex64, s)
	for sc := baseSC; sc < baseSC+k; sc++ {
		e.gatherAntennas(dataSlice, sc, a)

		beamGroup := e.cfg.BeamScID(sc)
		w := st.BeamSlice(frameID, beamGroup)
		gemm.MatVec(y, w, e.xScratch, s, a)

		e.trackPhase(st, frameID, ulSymIdx, pul, sc, y, s)

		if ulSymIdx >= pul {
			e.accumulateEVM(frameID, ulSymIdx, sc, y, s)
		}

		if equalSlice != nil {
			copy(equalSlice[sc*s:sc*s+s], y)
		}

		for stream := 0; stream < s; stream++ {
			dst := st.DemodSlice(frameID, ulSymIdx, stream)
			demodulate(dst, sc*e.cfg.ModOrderBits(), y[stream], e.cfg.ModOrderBits(), e.cfg.HardDemod())
		}
	}
	return nil
}

// gatherAntennas fills e.xScratch with the A antenna samples for
// subcarrier sc, in lane-sized groups with a scalar tail for the
// remainder.
func (e *Equalizer) gatherAntennas(dataSlice []complex64, sc, a int) {
	for ant := 0; ant < a; ant++ {
		e.offsets[ant] = dataOffset(e.cfg, ant, sc)
	}
	full := a - a%laneWidth
	ant := 0
	for ; ant < full; ant += laneWidth {
		for l := 0; l < laneWidth; l++ {
			e.xScratch[ant+l] = dataSlice[e.offsets[ant+l]]
		}
	}
	for ; ant < a; ant++ {
		e.xScratch[ant] = dataSlice[e.offsets[ant]]
	}
}

// dataOffset mirrors framebuf.Store.DataOffset's partial-transpose
// formula for a caller that only has a config.Provider, not a Store.
func dataOffset(cfg config.Provider, ant, sc int) int {
	btr := cfg.TransposeBlock()
	a := cfg.BSAntennas()
	block := sc / btr
	scInBlock := sc % btr
	return block*btr*a + ant*btr + scInBlock
}

// trackPhase updates the running pilot-correlation phase accumulator
// during a frame's pilot-within-uplink symbols, then applies a
// linearly-interpolated phase correction to y once the frame moves
// past those symbols into data.
func (e *Equalizer) trackPhase(st *framebuf.Store, frameID uint32, ulSymIdx, pul, sc int, y []complex64, s int) {
	if pul == 0 {
		return
	}
	if ulSymIdx < pul {
		if ulSymIdx == 0 && sc == 0 && frameID > 0 {
			st.ResetPhase(frameID - 1)
		}
		phase := st.PhaseSlice(frameID)
		ref := e.cfg.RefPilotSign(sc)
		for stream := 0; stream < s; stream++ {
			v := y[stream] * complex64(conjF(ref))
			phase[ulSymIdx*s+stream] += sign(v)
		}
		return
	}
	phase := st.PhaseSlice(frameID)
	for stream := 0; stream < s; stream++ {
		theta0 := 0.0
		deltaSum := 0.0
		prev := 0.0
		for p := 0; p < pul; p++ {
			t := argC(phase[p*s+stream])
			if p == 0 {
				theta0 = t
			} else {
				deltaSum += t - prev
			}
			prev = t
		}
		delta := 0.0
		if pul > 1 {
			delta = deltaSum / float64(pul-1)
		}
		curTheta := theta0 + float64(ulSymIdx)*delta
		y[stream] = y[stream] * expNegJ(curTheta)
	}
}

// accumulateEVM computes squared error-vector magnitude against the
// configured ground-truth constellation and publishes it directly to
// the statistics sink, rather than through a separate framebuf buffer.
func (e *Equalizer) accumulateEVM(frameID uint32, ulSymIdx, sc int, y []complex64, s int) {
	frameSlot := int(frameID) & (e.cfg.FrameWindow() - 1)
	gt := e.cfg.GroundTruth(sc)
	for stream := 0; stream < s; stream++ {
		d := y[stream] - gt
		sq := float64(real(d))*float64(real(d)) + float64(imag(d))*float64(imag(d))
		e.sink.UpdateEVM(frameSlot, stream, ulSymIdx, sq)
	}
}
