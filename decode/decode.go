// Package decode implements the pipeline's decode stage: read
// code-block LLRs out of DemodBuffer, invoke the configured
// codec.Decode function, write decoded bytes into DecodedBuffer, and
// publish bit/block error accounting to the statistics sink.
package decode

import (
	"phycore/codec"
	"phycore/config"
	"phycore/framebuf"
	"phycore/telemetry"
)

// Decoder holds the codec function and codec parameters used for every
// decode work item; one Decoder instance is shared read-only across
// worker goroutines since it carries no mutable scratch state of its
// own (the codec function itself must not retain its llr argument).
type Decoder struct {
	cfg    config.Provider
	sink   telemetry.Sink
	params codec.Params
	fn     codec.Decode
}

// New builds a Decoder that invokes fn with params for every work item.
func New(cfg config.Provider, sink telemetry.Sink, params codec.Params, fn codec.Decode) *Decoder {
	return &Decoder{cfg: cfg, sink: sink, params: params, fn: fn}
}

// GroundTruthBits, when non-nil, supplies the known transmitted payload
// for one (ulSymIdx, ue) so Process can score bit errors, matching
// phy_stats.cpp's UpdateBitErrors(ue_id, offset, tx_byte, rx_byte) which
// compares against a known reference under test/simulation. In a
// production deployment there is no ground truth and this is nil;
// Process skips bit-error accounting in that case.
type GroundTruthBits func(ulSymIdx, ue int) []byte

// Process decodes one (frame_id, ul_data_sym, ue_id) work item.
func (d *Decoder) Process(st *framebuf.Store, frameID uint32, ulSymIdx, ue int, gt GroundTruthBits) error {
	s := d.cfg.SpatialStreams()
	stream := ue
	if stream >= s {
		stream = s - 1
	}
	llr := st.DemodSlice(frameID, ulSymIdx, stream)

	decoded, ok := d.fn(d.params, llr)
	if !ok {
		return &config.Error{Kind: config.ErrNumerical, Op: "codec decode failed", Frame: int64(frameID), Symbol: ulSymIdx}
	}

	dst := st.DecodedSlice(frameID, ulSymIdx, ue)
	n := copy(dst, decoded)
	st.SetDecodedLen(frameID, ulSymIdx, ue, n)

	frameSlot := int(frameID) & (d.cfg.FrameWindow() - 1)
	d.sink.UpdateDecodedBits(frameSlot, ue, ulSymIdx, n*8)
	d.sink.IncrementDecodedBlocks(frameSlot, ue, ulSymIdx)

	if gt != nil {
		want := gt(ulSymIdx, ue)
		errs := bitErrors(dst[:n], want)
		d.sink.UpdateBitErrors(frameSlot, ue, ulSymIdx, errs)
		d.sink.UpdateBlockErrors(frameSlot, ue, ulSymIdx, errs > 0)
	}
	return nil
}

// bitErrors counts mismatched bits between got and want over their
// shared length, matching phy_stats.cpp's XOR-then-popcount pattern.
func bitErrors(got, want []byte) int {
	n := len(got)
	if len(want) < n {
		n = len(want)
	}
	total := 0
	for i := 0; i < n; i++ {
		x := got[i] ^ want[i]
		for x != 0 {
			total++
			x &= x - 1
		}
	}
	return total
}
