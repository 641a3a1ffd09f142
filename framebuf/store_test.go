package framebuf

import (
	"testing"

	"phycore/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Config{
		NCa: 2048, DataStartV: 400, DataStopV: 1600, // Nd = 1200
		A: 8, U: 2, S: 2, W: 4,
		Btr: 16, Bcl: 8, Bdem: 48, M: 4,
		Pul: 2, Dul: 4, Nbeam: 25,
		WorkerCount: 2,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

// TestDataOffsetInvariant checks the partial-transpose layout formula:
// data[sc_block*B_tr*A + ant*B_tr + sc_in_block].
func TestDataOffsetInvariant(t *testing.T) {
	cfg := testConfig(t)
	st := New(cfg)

	btr := st.TransposeBlockSize()
	a := st.BSAntennas()

	cases := []struct{ ant, sc int }{
		{0, 0}, {0, 15}, {0, 16}, {3, 100}, {7, 1199},
	}
	for _, c := range cases {
		block := c.sc / btr
		scIn := c.sc % btr
		want := block*btr*a + c.ant*btr + scIn
		got := st.DataOffset(c.ant, c.sc)
		if got != want {
			t.Errorf("DataOffset(ant=%d,sc=%d) = %d, want %d", c.ant, c.sc, got, want)
		}
	}
}

// TestRingSlotWrap verifies that frame ids separated by exactly W map
// to the same ring slot. A slot is only reused after its previous
// occupant retires.
func TestRingSlotWrap(t *testing.T) {
	cfg := testConfig(t)
	st := New(cfg)
	if st.slot(0) != st.slot(uint32(cfg.FrameWindow())) {
		t.Fatalf("frame 0 and frame W should map to the same slot")
	}
	if st.slot(1) == st.slot(0) {
		t.Fatalf("adjacent frames should map to different slots when W>1")
	}
}

// TestDisjointSliceOwnership exercises that distinct (frame, symbol)
// pairs get distinct backing arrays, matching the ownership rule that no
// two concurrent work items ever alias the same slice.
func TestDisjointSliceOwnership(t *testing.T) {
	cfg := testConfig(t)
	st := New(cfg)

	d0 := st.DataSlice(0, 0)
	d1 := st.DataSlice(0, 1)
	d0[0] = 1 + 2i
	if d1[0] != 0 {
		t.Fatalf("writing DataSlice(0,0) must not alias DataSlice(0,1)")
	}
}
