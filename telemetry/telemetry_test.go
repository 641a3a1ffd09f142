package telemetry

import (
	"testing"

	"phycore/config"
)

func TestMemoryAccumulatesEVM(t *testing.T) {
	m := NewMemory()
	m.UpdateEVM(0, 1, 2, 0.04)
	m.UpdateEVM(0, 1, 2, 0.09)
	got := m.EVMPercent(1, 2)
	// mean sq = 0.065, sqrt ~= 0.2550, *100 ~= 25.5
	if got < 25 || got > 26 {
		t.Fatalf("EVMPercent = %v, want ~25.5", got)
	}
}

func TestMemoryCountersIndependentPerKey(t *testing.T) {
	m := NewMemory()
	m.UpdateBitErrors(0, 0, 0, 3)
	m.UpdateBitErrors(0, 0, 1, 5)
	m.UpdateBitErrors(0, 1, 0, 7)
	if m.BitErrorCount(0, 0) != 3 {
		t.Errorf("BitErrorCount(0,0) = %d, want 3", m.BitErrorCount(0, 0))
	}
	if m.BitErrorCount(0, 1) != 5 {
		t.Errorf("BitErrorCount(0,1) = %d, want 5", m.BitErrorCount(0, 1))
	}
	if m.BitErrorCount(1, 0) != 7 {
		t.Errorf("BitErrorCount(1,0) = %d, want 7", m.BitErrorCount(1, 0))
	}
}

func TestMemoryBlockErrorsOnlyCountTrue(t *testing.T) {
	m := NewMemory()
	m.UpdateBlockErrors(0, 0, 0, false)
	m.UpdateBlockErrors(0, 0, 0, true)
	m.UpdateBlockErrors(0, 0, 0, false)
	if got := m.BlockErrorCount(0, 0); got != 1 {
		t.Fatalf("BlockErrorCount = %d, want 1", got)
	}
}

func TestRunFingerprintDeterministic(t *testing.T) {
	cfg, err := config.New(config.Config{
		NCa: 64, DataStartV: 0, DataStopV: 32,
		A: 4, U: 2, S: 2, W: 2,
		Btr: 4, Bcl: 2, Bdem: 4, M: 2,
		Pul: 1, Dul: 2, Nbeam: 4,
		WorkerCount: 1,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	a := RunFingerprint(cfg)
	b := RunFingerprint(cfg)
	if a != b {
		t.Fatalf("RunFingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d, want 16 hex chars", len(a))
	}
}
