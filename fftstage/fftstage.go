// Package fftstage implements the pipeline's per-antenna FFT/CSI
// stage: convert raw IQ samples, run the OFDM symbol through an FFT,
// and scatter the result into the partial-transpose data or CSI
// buffer according to the symbol's schedule classification. The flow
// is header parse -> sample conversion -> FFT -> symbol-type dispatch
// -> partial-transpose scatter, with pilot subcarriers de-rotated by
// the reference pilot sign on the way in. The FFT itself uses gonum's
// dsp/fourier package rather than a hand-rolled radix kernel.
package fftstage

import (
	"phycore/config"
	"phycore/framebuf"
	"phycore/packet"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Stage holds the per-worker FFT plan and scratch buffers. One Stage is
// not safe for concurrent use; goroutines that call Process
// concurrently each need their own Stage, extending the "one writer per
// (frame, stage, slice) at a time" discipline to per-worker scratch
// state.
type Stage struct {
	cfg     config.Provider
	fft     *fourier.CmplxFFT
	nca     int
	scratch []complex128
}

// New builds an FFT stage sized from cfg.
func New(cfg config.Provider) *Stage {
	nca := cfg.NumSubcarriers()
	return &Stage{
		cfg:     cfg,
		fft:     fourier.NewCmplxFFT(nca),
		nca:     nca,
		scratch: make([]complex128, nca),
	}
}

// CalibCapture receives calibration-symbol IQ (kCalUL/kCalDL) for the
// caller to accumulate into a reciprocity-calibration buffer; the
// stage itself does not retain calibration state, since deriving a
// calibration coefficient from accumulated calibration symbols is an
// offline/administrative computation performed between runs, not part
// of the per-frame runtime pipeline.
type CalibCapture func(frameID uint32, antID uint16, symType config.SymbolType, freqDomain []complex64)

// Process decodes one packet, runs its FFT, and scatters the result
// into st according to the symbol's schedule classification. prefixLen
// is the symbol-type-specific sample prefix to skip. calib, if
// non-nil, receives calibration symbols instead of them being dropped.
// Process does not release buf back to a pool or otherwise mark it
// free; buf is caller-owned and the packet.View it decodes into
// borrows from it directly (see the packet package doc), so buffer
// lifecycle is the ingress producer's responsibility, not this stage's.
func (fs *Stage) Process(st *framebuf.Store, buf []byte, enc packet.Encoding, prefixLen int, calib CalibCapture) error {
	v, ok := packet.Decode(buf)
	if !ok {
		return &config.Error{Kind: config.ErrConfig, Op: "decode packet header"}
	}

	symType := fs.cfg.SymbolType(int(v.SymbolID))

	time := make([]complex64, fs.nca)
	packet.ConvertSamples(time, v.Payload, enc, prefixLen)
	for i, c := range time {
		fs.scratch[i] = complex(float64(real(c)), float64(imag(c)))
	}

	freq := fs.fft.Coefficients(nil, fs.scratch)

	dataStart := fs.cfg.DataStart()
	nd := fs.cfg.NumDataSubcarriers()
	ant := int(v.AntID)

	switch symType {
	case config.SymPilot:
		ueIdx := fs.cfg.PilotSymbolIdx(int(v.SymbolID))
		if ueIdx < 0 {
			return &config.Error{Kind: config.ErrSchedule, Op: "pilot symbol not in schedule", Symbol: int(v.SymbolID)}
		}
		dst := st.CSISlice(v.FrameID, ueIdx)
		fs.scatterPilot(st, dst, freq, dataStart, nd, ant)
	case config.SymUplinkData:
		ulIdx := fs.cfg.ULSymbolIdx(int(v.SymbolID))
		if ulIdx < 0 {
			return &config.Error{Kind: config.ErrSchedule, Op: "uplink symbol not in schedule", Symbol: int(v.SymbolID)}
		}
		dst := st.DataSlice(v.FrameID, ulIdx)
		fs.scatterData(st, dst, freq, dataStart, nd, ant)
	case config.SymCalUL, config.SymCalDL:
		if calib != nil {
			out := make([]complex64, nd)
			for i := 0; i < nd; i++ {
				c := freq[dataStart+i]
				out[i] = complex64(c)
			}
			calib(v.FrameID, v.AntID, symType, out)
		}
	case config.SymGuard:
		// Nothing to do: guard/downlink symbols are not part of the
		// uplink pipeline.
	default:
		return &config.Error{Kind: config.ErrSchedule, Op: "unclassified symbol type", Symbol: int(v.SymbolID)}
	}
	return nil
}

// scatterPilot writes freq's data subcarriers into dst using the
// partial-transpose layout, de-rotating each subcarrier by the
// reference pilot sign.
func (fs *Stage) scatterPilot(st *framebuf.Store, dst []complex64, freq []complex128, dataStart, nd, ant int) {
	for sc := 0; sc < nd; sc++ {
		v := complex64(freq[dataStart+sc]) * fs.cfg.RefPilotSign(sc)
		dst[st.DataOffset(ant, sc)] = v
	}
}

// scatterData writes freq's data subcarriers into dst using the
// partial-transpose layout without de-rotation.
func (fs *Stage) scatterData(st *framebuf.Store, dst []complex64, freq []complex128, dataStart, nd, ant int) {
	for sc := 0; sc < nd; sc++ {
		dst[st.DataOffset(ant, sc)] = complex64(freq[dataStart+sc])
	}
}
