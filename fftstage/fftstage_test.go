package fftstage

import (
	"encoding/binary"
	"math"
	"testing"

	"phycore/config"
	"phycore/framebuf"
	"phycore/packet"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	// NCa=16 keeps the FFT small; schedule: symbol 0 = pilot (UE 0),
	// symbol 1 = uplink data.
	cfg, err := config.New(config.Config{
		NCa: 16, DataStartV: 2, DataStopV: 10, // Nd=8
		A: 1, U: 1, S: 1, W: 2,
		Btr: 4, Bcl: 2, Bdem: 4, M: 2,
		Pul: 1, Dul: 1, Nbeam: 4,
		WorkerCount: 1,
		Schedule:    []config.SymbolType{config.SymPilot, config.SymUplinkData},
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

func buildPacket(frameID uint32, symbolID, antID uint16, samples []complex64) []byte {
	buf := make([]byte, 8+len(samples)*4)
	binary.LittleEndian.PutUint32(buf[0:4], frameID)
	binary.LittleEndian.PutUint16(buf[4:6], symbolID)
	binary.LittleEndian.PutUint16(buf[6:8], antID)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[8+i*4:], uint16(int16(real(s))))
		binary.LittleEndian.PutUint16(buf[8+i*4+2:], uint16(int16(imag(s))))
	}
	return buf
}

// TestProcessUplinkDataScattersIntoDataSlice checks that a DC-only time
// domain input (all samples equal) produces energy only at FFT bin 0,
// which lies below DataStart, so every data subcarrier scattered into
// the data slice is near zero.
func TestProcessUplinkDataScattersIntoDataSlice(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)
	fs := New(cfg)

	samples := make([]complex64, 16)
	for i := range samples {
		samples[i] = 10 // pure DC
	}
	buf := buildPacket(0, 1, 0, samples)

	if err := fs.Process(st, buf, packet.Encoding16Bit, 0, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	dst := st.DataSlice(0, 0)
	// DC bin is subcarrier index -DataStart() relative to FFT bin 0,
	// i.e. absolute bin 0 maps to data-subcarrier (0 - DataStart) which
	// is out of [0,Nd) here (DataStart=2), so all data-range bins should
	// be ~0 for a pure DC signal.
	for sc := 0; sc < cfg.NumDataSubcarriers(); sc++ {
		v := dst[st.DataOffset(0, sc)]
		if math.Hypot(float64(real(v)), float64(imag(v))) > 1e-6*160 {
			t.Errorf("sc=%d: expected near-zero energy outside DC bin, got %v", sc, v)
		}
	}
}

// TestProcessPilotAppliesDeRotation checks that a pilot symbol's output
// gets multiplied by the reference pilot sign.
func TestProcessPilotAppliesDeRotation(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)
	fs := New(cfg)

	samples := make([]complex64, 16)
	samples[0] = 100
	buf := buildPacket(0, 0, 0, samples)

	if err := fs.Process(st, buf, packet.Encoding16Bit, 0, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	dst := st.CSISlice(0, 0)
	if dst == nil {
		t.Fatal("expected CSI slice to be written")
	}
	// An impulse of 100 at sample 0 has a flat spectrum (every bin is
	// 100), so each data subcarrier should hold 100 * RefPilotSign(sc).
	for sc := 0; sc < cfg.NumDataSubcarriers(); sc++ {
		want := 100 * cfg.RefPilotSign(sc)
		got := dst[st.DataOffset(0, sc)]
		if d := got - want; math.Hypot(float64(real(d)), float64(imag(d))) > 1e-3 {
			t.Errorf("sc=%d: CSI = %v, want %v", sc, got, want)
		}
	}
}

// TestProcessRejectsShortPacket exercises the header-decode failure path.
func TestProcessRejectsShortPacket(t *testing.T) {
	cfg := testConfig(t)
	st := framebuf.New(cfg)
	fs := New(cfg)
	if err := fs.Process(st, []byte{1, 2, 3}, packet.Encoding16Bit, 0, nil); err == nil {
		t.Fatal("expected error on short packet")
	}
}

// TestProcessCalibInvokesCallback checks calibration symbols route to the
// CalibCapture callback rather than any data/CSI buffer.
func TestProcessCalibInvokesCallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = append(cfg.Schedule, config.SymCalUL)
	st := framebuf.New(cfg)
	fs := New(cfg)

	samples := make([]complex64, 16)
	buf := buildPacket(0, 2, 0, samples)

	called := false
	err := fs.Process(st, buf, packet.Encoding16Bit, 0, func(frameID uint32, antID uint16, symType config.SymbolType, freq []complex64) {
		called = true
		if symType != config.SymCalUL {
			t.Errorf("symType = %v, want SymCalUL", symType)
		}
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !called {
		t.Fatal("expected calibration callback to be invoked")
	}
}
