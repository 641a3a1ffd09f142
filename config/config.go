// Package config loads, validates, and freezes the run configuration that
// every stage of the PHY core reads from but never mutates (design note:
// "Global configuration" — Config is an immutable value built once at
// startup and passed by shared pointer, never copied into per-goroutine
// mutable state).
package config

import (
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// SymbolType classifies one OFDM symbol slot within a frame.
type SymbolType byte

const (
	// SymPilot carries known reference samples for channel estimation and
	// phase tracking.
	SymPilot SymbolType = 'P'
	// SymUplinkData carries user payload bits.
	SymUplinkData SymbolType = 'U'
	// SymCalDL is a downlink reciprocity-calibration symbol.
	SymCalDL SymbolType = 'W'
	// SymCalUL is an uplink reciprocity-calibration symbol.
	SymCalUL SymbolType = 'X'
	// SymGuard is anything the uplink core does not process (downlink
	// data, beacons, idle guard slots).
	SymGuard SymbolType = 'G'
)

// Provider is the read-only configuration interface the core's stages
// consume. *Config below is the only implementation; tests may wrap
// another one for fault injection.
type Provider interface {
	NumSubcarriers() int
	DataStart() int
	DataStop() int
	NumDataSubcarriers() int
	BSAntennas() int
	UEAntennas() int
	SpatialStreams() int
	FrameWindow() int
	TransposeBlock() int
	CachelineSCs() int
	DemodBlock() int
	ModOrderBits() int
	ULPilotSyms() int
	ULDataSyms() int
	BeamGroups() int
	BeamGroupWidth() int
	ExportEqual() bool
	HardDemod() bool

	SymbolType(symbolID int) SymbolType
	ULSymbolIdx(symbolID int) int
	PilotSymbolIdx(symbolID int) int
	BeamScID(sc int) int
	RefPilotSign(sc int) complex64
	GroundTruth(sc int) complex64
}

// Config is the concrete, immutable configuration value. Every field is
// set once in New/Load and never mutated afterward.
type Config struct {
	NCa        int // total OFDM subcarriers
	DataStartV int
	DataStopV  int

	A int // base-station antennas
	U int // UE antennas
	S int // spatial streams, S <= U

	W int // frame-window depth (power of two)

	Btr  int // transpose block size (subcarriers)
	Bcl  int // subcarriers per cacheline
	Bdem int // demod block size (subcarriers per work item)
	M    int // modulation order bits

	Pul int // uplink pilot symbols per frame
	Dul int // uplink data symbols per frame

	Nbeam int // number of beam-matrix groups covering Nd

	// Schedule maps a symbol slot index (0-based within a frame) to its
	// classification. Its length is the number of symbols per frame.
	Schedule []SymbolType

	// RefPilotSigns holds the per-data-subcarrier reference pilot sign
	// used for de-rotation at FFT time and for phase tracking's
	// conj(ref_pilot[sc]). Length == Nd.
	RefPilotSigns []complex64

	// GroundTruthSyms holds the reference constellation point used for
	// EVM accumulation. Length == Nd.
	GroundTruthSyms []complex64

	// ExportEqualV toggles writing equalized samples into EqualBuffer for
	// constellation export, matching the original's kExportConstellation.
	ExportEqualV bool

	// HardDemodV selects hard-decision demodulation; false selects soft
	// (LLR) output.
	HardDemodV bool

	// WorkerCount is the number of symmetric stage-worker goroutines.
	WorkerCount int

	// FrameDeadlineNanos is the soft per-frame deadline; zero disables
	// deadline tracking.
	FrameDeadlineNanos int64
}

// jsonConfig is the on-disk shape decoded with sonnet (a drop-in
// encoding/json replacement); kept separate from Config so the frozen
// runtime struct never carries json struct tags into hot paths.
type jsonConfig struct {
	NumSubcarriers  int    `json:"num_subcarriers"`
	DataStart       int    `json:"data_start"`
	DataStop        int    `json:"data_stop"`
	BSAntennas      int    `json:"bs_antennas"`
	UEAntennas      int    `json:"ue_antennas"`
	SpatialStreams  int    `json:"spatial_streams"`
	FrameWindow     int    `json:"frame_window"`
	TransposeBlock  int    `json:"transpose_block"`
	CachelineSCs    int    `json:"cacheline_scs"`
	DemodBlock      int    `json:"demod_block"`
	ModOrderBits    int    `json:"mod_order_bits"`
	ULPilotSyms     int    `json:"ul_pilot_syms"`
	ULDataSyms      int    `json:"ul_data_syms"`
	BeamGroups      int    `json:"beam_groups"`
	Schedule        string `json:"schedule"`
	ExportEqual     bool   `json:"export_equal"`
	HardDemod       bool   `json:"hard_demod"`
	WorkerCount     int    `json:"worker_count"`
	FrameDeadlineUs int64  `json:"frame_deadline_us"`
}

// Load reads a JSON configuration file, validates it, and returns a
// frozen Config. Invalid sizes or non-divisibility are configuration
// errors, fatal at startup.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Op: "read config file", Err: err}
	}
	var jc jsonConfig
	if err := sonnet.Unmarshal(raw, &jc); err != nil {
		return nil, &Error{Kind: ErrConfig, Op: "decode config json", Err: err}
	}
	return fromJSON(&jc)
}

func fromJSON(jc *jsonConfig) (*Config, error) {
	cfg := &Config{
		NCa:                jc.NumSubcarriers,
		DataStartV:         jc.DataStart,
		DataStopV:          jc.DataStop,
		A:                  jc.BSAntennas,
		U:                  jc.UEAntennas,
		S:                  jc.SpatialStreams,
		W:                  jc.FrameWindow,
		Btr:                jc.TransposeBlock,
		Bcl:                jc.CachelineSCs,
		Bdem:               jc.DemodBlock,
		M:                  jc.ModOrderBits,
		Pul:                jc.ULPilotSyms,
		Dul:                jc.ULDataSyms,
		Nbeam:              jc.BeamGroups,
		ExportEqualV:       jc.ExportEqual,
		HardDemodV:         jc.HardDemod,
		WorkerCount:        jc.WorkerCount,
		FrameDeadlineNanos: jc.FrameDeadlineUs * 1000,
	}
	cfg.Schedule = make([]SymbolType, len(jc.Schedule))
	for i := 0; i < len(jc.Schedule); i++ {
		cfg.Schedule[i] = SymbolType(jc.Schedule[i])
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.buildPilotTables()
	return cfg, nil
}

// New builds a Config directly from in-memory fields (used by tests and
// by the demo harness, which synthesizes its own schedule and pilots
// rather than round-tripping through JSON).
func New(cfg Config) (*Config, error) {
	c := cfg
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.RefPilotSigns == nil || c.GroundTruthSyms == nil {
		c.buildPilotTables()
	}
	return &c, nil
}

func (c *Config) validate() error {
	nd := c.DataStopV - c.DataStartV
	switch {
	case c.NCa <= 0 || c.DataStartV < 0 || c.DataStopV <= c.DataStartV || c.DataStopV > c.NCa:
		return &Error{Kind: ErrConfig, Op: "validate subcarrier range"}
	case c.A <= 0 || c.U <= 0 || c.S <= 0 || c.S > c.U:
		return &Error{Kind: ErrConfig, Op: "validate antenna/stream counts"}
	case c.W <= 0 || c.W&(c.W-1) != 0:
		return &Error{Kind: ErrConfig, Op: "validate frame window: must be power of two"}
	case c.Btr <= 0 || nd%c.Btr != 0:
		return &Error{Kind: ErrConfig, Op: "validate transpose block: must divide Nd"}
	case c.Bcl <= 0 || c.Btr%c.Bcl != 0:
		return &Error{Kind: ErrConfig, Op: "validate cacheline block: must divide transpose block"}
	case c.Bdem <= 0 || c.Bdem%c.Bcl != 0:
		return &Error{Kind: ErrConfig, Op: "validate demod block: must be multiple of cacheline block"}
	case c.M <= 0 || c.M > 8:
		return &Error{Kind: ErrConfig, Op: "validate modulation order bits"}
	case c.Nbeam <= 0 || nd%c.Nbeam != 0:
		return &Error{Kind: ErrConfig, Op: "validate beam groups: must divide Nd"}
	case c.Pul < 0 || c.Dul < 0:
		return &Error{Kind: ErrConfig, Op: "validate symbol counts"}
	case c.WorkerCount <= 0:
		return &Error{Kind: ErrConfig, Op: "validate worker count"}
	}
	return nil
}

func (c *Config) buildPilotTables() {
	nd := c.NumDataSubcarriers()
	if c.RefPilotSigns == nil {
		c.RefPilotSigns = make([]complex64, nd)
		for i := range c.RefPilotSigns {
			// Deterministic +-1 pilot sign sequence (Barker-like) so the
			// pilot de-rotation invariant is exercisable without a
			// codec-specific pilot generator.
			if i%2 == 0 {
				c.RefPilotSigns[i] = 1
			} else {
				c.RefPilotSigns[i] = -1
			}
		}
	}
	if c.GroundTruthSyms == nil {
		c.GroundTruthSyms = make([]complex64, nd)
		for i := range c.GroundTruthSyms {
			c.GroundTruthSyms[i] = 1
		}
	}
}

func (c *Config) NumSubcarriers() int     { return c.NCa }
func (c *Config) DataStart() int          { return c.DataStartV }
func (c *Config) DataStop() int           { return c.DataStopV }
func (c *Config) NumDataSubcarriers() int { return c.DataStopV - c.DataStartV }
func (c *Config) BSAntennas() int         { return c.A }
func (c *Config) UEAntennas() int         { return c.U }
func (c *Config) SpatialStreams() int     { return c.S }
func (c *Config) FrameWindow() int        { return c.W }
func (c *Config) TransposeBlock() int     { return c.Btr }
func (c *Config) CachelineSCs() int       { return c.Bcl }
func (c *Config) DemodBlock() int         { return c.Bdem }
func (c *Config) ModOrderBits() int       { return c.M }
func (c *Config) ULPilotSyms() int        { return c.Pul }
func (c *Config) ULDataSyms() int         { return c.Dul }
func (c *Config) BeamGroups() int         { return c.Nbeam }
func (c *Config) BeamGroupWidth() int     { return c.NumDataSubcarriers() / c.Nbeam }
func (c *Config) ExportEqual() bool       { return c.ExportEqualV }
func (c *Config) HardDemod() bool         { return c.HardDemodV }

// SymbolType returns the schedule-driven classification of symbolID,
// falling back to SymGuard for symbols outside the configured schedule.
// Treating an unknown symbol type as fatal is the caller's job, not
// this accessor's — callers must check membership via len(Schedule)
// first when they need to distinguish "guard" from "unconfigured".
func (c *Config) SymbolType(symbolID int) SymbolType {
	if symbolID < 0 || symbolID >= len(c.Schedule) {
		return SymGuard
	}
	return c.Schedule[symbolID]
}

// ULSymbolIdx returns the 0-based index of symbolID among uplink-data
// symbols in the frame, or -1 if symbolID is not an uplink-data symbol.
func (c *Config) ULSymbolIdx(symbolID int) int {
	idx := 0
	for i, t := range c.Schedule {
		if t != SymUplinkData {
			continue
		}
		if i == symbolID {
			return idx
		}
		idx++
	}
	return -1
}

// PilotSymbolIdx returns the 0-based index of symbolID among pilot
// symbols in the frame (this doubles as the UE/spatial-stream index the
// pilot belongs to under the one-pilot-per-stream-per-frame convention),
// or -1 if symbolID is not a pilot symbol.
func (c *Config) PilotSymbolIdx(symbolID int) int {
	idx := 0
	for i, t := range c.Schedule {
		if t != SymPilot {
			continue
		}
		if i == symbolID {
			return idx
		}
		idx++
	}
	return -1
}

// BeamScID maps a data subcarrier index to the beam-matrix group ID
// that covers it: each beam matrix covers a contiguous range of data
// subcarriers of size Nd/Nbeam.
func (c *Config) BeamScID(sc int) int {
	return sc / c.BeamGroupWidth()
}

// RefPilotSign returns the per-subcarrier reference pilot sign used for
// FFT-time de-rotation and phase-tracking correlation.
func (c *Config) RefPilotSign(sc int) complex64 {
	return c.RefPilotSigns[sc]
}

// GroundTruth returns the reference constellation point for EVM
// accumulation at subcarrier sc.
func (c *Config) GroundTruth(sc int) complex64 {
	return c.GroundTruthSyms[sc]
}
