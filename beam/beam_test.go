package beam

import (
	"errors"
	"testing"

	"phycore/config"
	"phycore/framebuf"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Config{
		NCa: 128, DataStartV: 0, DataStopV: 64,
		A: 2, U: 2, S: 2, W: 2,
		Btr: 8, Bcl: 4, Bdem: 8, M: 2,
		Pul: 1, Dul: 1, Nbeam: 8,
		WorkerCount: 1,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

// TestComputeZeroForcing verifies the defining property of a
// zero-forcing beamformer: W_ul * H == identity, for a well-conditioned
// (here, orthogonal) 2x2 channel.
func TestComputeZeroForcing(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)

	// H = [[1,0],[0,1]] at subcarrier 0 (ant rows, UE columns).
	csi0 := st.CSISlice(0, 0)
	csi1 := st.CSISlice(0, 1)
	csi0[st.DataOffset(0, 0)] = 1
	csi0[st.DataOffset(1, 0)] = 0
	csi1[st.DataOffset(0, 0)] = 0
	csi1[st.DataOffset(1, 0)] = 1

	b := NewBuilder(cfg)
	if err := b.Compute(st, 0, cfg.BeamScID(0)); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	w := st.BeamSlice(0, cfg.BeamScID(0))

	// w is S(=2)-by-A(=2) row-major; for the identity channel W should
	// itself be (close to) identity.
	want := []complex64{1, 0, 0, 1}
	for i := range want {
		d := w[i] - want[i]
		if re, im := real(d), imag(d); re*re+im*im > 1e-4 {
			t.Errorf("w[%d] = %v, want %v", i, w[i], want[i])
		}
	}
}

// TestComputeSingularFallback exercises the near-singular path (two
// identical UE columns): Compute must report the fallback as a
// recoverable ErrNumerical rather than silently succeeding, and still
// produce a finite result, since the pseudo-inverse of a genuinely
// singular matrix is not unique.
func TestComputeSingularFallback(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)

	csi0 := st.CSISlice(0, 0)
	csi1 := st.CSISlice(0, 1)
	// Identical columns -> H^H H singular.
	csi0[st.DataOffset(0, 0)] = 1
	csi0[st.DataOffset(1, 0)] = 1
	csi1[st.DataOffset(0, 0)] = 1
	csi1[st.DataOffset(1, 0)] = 1

	b := NewBuilder(cfg)
	err := b.Compute(st, 0, cfg.BeamScID(0))
	var cerr *config.Error
	if !errors.As(err, &cerr) || cerr.Kind != config.ErrNumerical {
		t.Fatalf("Compute err = %v, want a config.ErrNumerical", err)
	}
	w := st.BeamSlice(0, cfg.BeamScID(0))
	for i, c := range w {
		if c != c { // NaN check
			t.Fatalf("w[%d] is NaN", i)
		}
	}
}
