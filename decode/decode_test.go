package decode

import (
	"testing"

	"phycore/codec"
	"phycore/config"
	"phycore/framebuf"
	"phycore/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Config{
		NCa: 32, DataStartV: 0, DataStopV: 8,
		A: 1, U: 1, S: 1, W: 2,
		Btr: 4, Bcl: 2, Bdem: 8, M: 1,
		Pul: 0, Dul: 1, Nbeam: 2,
		WorkerCount: 1,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

// TestProcessZeroBERAtHighConfidence exercises the end-to-end
// zero-BER-at-high-SNR property at the decode boundary: feeding
// unambiguous hard-bit LLRs through the reference codec and comparing
// against the same bit pattern as ground truth should yield zero errors.
func TestProcessZeroBERAtHighConfidence(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)

	llr := st.DemodSlice(0, 0, 0)
	// 8 subcarriers, M=1 bit each => 8 values, one group of 8 for the
	// reference codec's majority-vote grouping; fill with a strong
	// all-ones pattern so the group votes 1.
	for i := range llr {
		llr[i] = 1
	}
	// Extend to a full group-of-8 multiple by writing into a bigger
	// scratch is unnecessary here since DemodSlice length is M*Nd = 8,
	// which is exactly one group.

	sink := telemetry.NewMemory()
	dec := New(cfg, sink, codec.Params{}, codec.Reference)

	wantBits := []byte{0x01} // majority-vote of all-1s => bit 1 for the one group
	gt := func(ulSymIdx, ue int) []byte { return wantBits }

	if err := dec.Process(st, 0, 0, 0, gt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := sink.BitErrorCount(0, 0); got != 0 {
		t.Fatalf("BitErrorCount = %d, want 0", got)
	}
	if sink.DecodedBlockCount(0, 0) != 1 {
		t.Fatalf("DecodedBlockCount = %d, want 1", sink.DecodedBlockCount(0, 0))
	}
}

// TestProcessCodecFailureIsNumericalError exercises the failure path
// when the codec cannot produce a decode.
func TestProcessCodecFailureIsNumericalError(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)

	failing := func(p codec.Params, llr []int8) ([]byte, bool) { return nil, false }
	dec := New(cfg, telemetry.NewMemory(), codec.Params{}, failing)

	err := dec.Process(st, 0, 0, 0, nil)
	if err == nil {
		t.Fatal("expected error on codec failure")
	}
	var cerr *config.Error
	if e, ok := err.(*config.Error); ok {
		cerr = e
	} else {
		t.Fatalf("error is not *config.Error: %T", err)
	}
	if cerr.Kind != config.ErrNumerical {
		t.Fatalf("Kind = %v, want ErrNumerical", cerr.Kind)
	}
}
