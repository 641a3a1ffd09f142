package sched

import (
	"testing"

	"phycore/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Config{
		NCa: 32, DataStartV: 0, DataStopV: 8,
		A: 2, U: 2, S: 2, W: 2,
		Btr: 4, Bcl: 2, Bdem: 4, M: 2,
		Pul: 0, Dul: 2, Nbeam: 2,
		WorkerCount: 1,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

func TestAdmitRefusesUnretiredSlot(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg)
	if err := s.AdmitFrame(0); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	// frame 2 maps to the same slot as frame 0 (W=2) and slot 0 is not
	// retired yet.
	if err := s.AdmitFrame(2); err == nil {
		t.Fatal("expected admission of frame 2 to be refused")
	}
}

func TestFullFrameLifecycle(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg)
	if err := s.AdmitFrame(0); err != nil {
		t.Fatalf("AdmitFrame: %v", err)
	}
	if got := s.State(0); got != StateReceivingPilots {
		t.Fatalf("state = %v, want receiving_pilots", got)
	}

	// A*U = 4 pilot completions needed.
	var beamReady bool
	for i := 0; i < 4; i++ {
		var err error
		beamReady, err = s.PilotComplete(0)
		if err != nil {
			t.Fatalf("PilotComplete: %v", err)
		}
	}
	if !beamReady {
		t.Fatal("expected beamReady after all pilot completions")
	}

	// Antennas for uplink symbol 0 finish before beam completes.
	for ant := 0; ant < cfg.BSAntennas()-1; ant++ {
		ready, err := s.DataComplete(0, 0)
		if err != nil {
			t.Fatalf("DataComplete: %v", err)
		}
		if ready {
			t.Fatal("should not be ready before beam completes")
		}
	}
	ready, err := s.DataComplete(0, 0)
	if err != nil {
		t.Fatalf("DataComplete: %v", err)
	}
	if ready {
		t.Fatal("should not be ready before beam completes (beam still pending)")
	}

	var symsReady []int
	for g := 0; g < cfg.BeamGroups()-1; g++ {
		syms, err := s.BeamComplete(0)
		if err != nil {
			t.Fatalf("BeamComplete: %v", err)
		}
		if len(syms) != 0 {
			t.Fatalf("unexpected ready symbols before beam fully complete: %v", syms)
		}
	}
	symsReady, err = s.BeamComplete(0)
	if err != nil {
		t.Fatalf("BeamComplete: %v", err)
	}
	if len(symsReady) != 1 || symsReady[0] != 0 {
		t.Fatalf("expected symbol 0 ready for equalize, got %v", symsReady)
	}

	// Symbol 1's antennas complete after beam is already done.
	for ant := 0; ant < cfg.BSAntennas()-1; ant++ {
		if ready, err := s.DataComplete(0, 1); err != nil || ready {
			t.Fatalf("DataComplete(sym1): ready=%v err=%v", ready, err)
		}
	}
	ready, err = s.DataComplete(0, 1)
	if err != nil {
		t.Fatalf("DataComplete: %v", err)
	}
	if !ready {
		t.Fatal("expected symbol 1 ready for equalize once beam already done")
	}

	blocksPerSym := (cfg.NumDataSubcarriers() + cfg.DemodBlock() - 1) / cfg.DemodBlock()
	for sym := 0; sym < cfg.ULDataSyms(); sym++ {
		var readyForDecode bool
		for b := 0; b < blocksPerSym; b++ {
			var err error
			readyForDecode, err = s.EqualizeComplete(0, sym)
			if err != nil {
				t.Fatalf("EqualizeComplete: %v", err)
			}
		}
		if !readyForDecode {
			t.Fatalf("symbol %d expected ready for decode", sym)
		}
	}

	for sym := 0; sym < cfg.ULDataSyms(); sym++ {
		var retired bool
		for ue := 0; ue < cfg.UEAntennas(); ue++ {
			var err error
			retired, err = s.DecodeComplete(0, sym)
			if err != nil {
				t.Fatalf("DecodeComplete: %v", err)
			}
		}
		if sym < cfg.ULDataSyms()-1 && retired {
			t.Fatal("frame should not retire before all symbols decode")
		}
		if sym == cfg.ULDataSyms()-1 && !retired {
			t.Fatal("frame should retire once every symbol's decode completes")
		}
	}

	if got := s.State(0); got != StateRetired {
		t.Fatalf("state = %v, want retired", got)
	}

	// The slot should now be admittable again.
	if err := s.AdmitFrame(2); err != nil {
		t.Fatalf("re-admit after retirement: %v", err)
	}
}

func TestCompletionForUnadmittedFrameErrors(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg)
	if _, err := s.PilotComplete(5); err == nil {
		t.Fatal("expected error completing an unadmitted frame")
	}
}

func TestDeadlineMissedDoesNotBlockProgress(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg)
	if err := s.AdmitFrame(0); err != nil {
		t.Fatalf("AdmitFrame: %v", err)
	}
	s.MarkDeadlineMissed(0)
	if !s.DeadlineMissed(0) {
		t.Fatal("expected deadline-missed flag set")
	}
	if _, err := s.PilotComplete(0); err != nil {
		t.Fatalf("PilotComplete should still succeed after deadline miss: %v", err)
	}
}
