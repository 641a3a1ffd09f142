// Package telemetry implements the pipeline's statistics-sink
// collaborator: six update methods keyed by (frame mod W, ue, symbol),
// covering decoded bit/block counts, bit/block error counts, and EVM
// accumulation. Two implementations are provided: Memory, an
// in-process accumulator suitable for the demo harness and tests, and
// SQLite, which persists every update as a row via
// github.com/mattn/go-sqlite3 for offline analysis across runs.
package telemetry

import "math"

// Sink is the write side of the pipeline's statistics collaborator:
// per-UE pilot SNR, per-symbol EVM, bit/block error counts, and decoded
// bit/block counts, all keyed by (frame mod W, ue, symbol).
type Sink interface {
	UpdatePilotSNR(frameSlot, ue int, snrDB float64)
	UpdateEVM(frameSlot, ue, symbol int, sqMagnitude float64)
	UpdateBitErrors(frameSlot, ue, symbol int, errs int)
	UpdateDecodedBits(frameSlot, ue, symbol int, bits int)
	UpdateBlockErrors(frameSlot, ue, symbol int, blockHadError bool)
	IncrementDecodedBlocks(frameSlot, ue, symbol int)
	Flush() error
}

type key struct{ ue, symbol int }

// Memory accumulates statistics in process memory, indexed the same
// way phy_stats.cpp indexes its C arrays but with Go maps since the
// (ue, symbol) space here is small and dynamically sized from Config
// rather than a compile-time constant.
type Memory struct {
	pilotSNR      map[int]float64 // ue -> most recent SNR estimate (dB)
	evmSqSum      map[key]float64
	evmCount      map[key]int
	bitErrors     map[key]int
	decodedBits   map[key]int
	blockErrors   map[key]int
	decodedBlocks map[key]int
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		pilotSNR:      make(map[int]float64),
		evmSqSum:      make(map[key]float64),
		evmCount:      make(map[key]int),
		bitErrors:     make(map[key]int),
		decodedBits:   make(map[key]int),
		blockErrors:   make(map[key]int),
		decodedBlocks: make(map[key]int),
	}
}

func (m *Memory) UpdatePilotSNR(_, ue int, snrDB float64) {
	m.pilotSNR[ue] = snrDB
}

func (m *Memory) UpdateEVM(_, ue, symbol int, sqMagnitude float64) {
	k := key{ue, symbol}
	m.evmSqSum[k] += sqMagnitude
	m.evmCount[k]++
}

func (m *Memory) UpdateBitErrors(_, ue, symbol int, errs int) {
	m.bitErrors[key{ue, symbol}] += errs
}

func (m *Memory) UpdateDecodedBits(_, ue, symbol int, bits int) {
	m.decodedBits[key{ue, symbol}] += bits
}

func (m *Memory) UpdateBlockErrors(_, ue, symbol int, blockHadError bool) {
	if blockHadError {
		m.blockErrors[key{ue, symbol}]++
	}
}

func (m *Memory) IncrementDecodedBlocks(_, ue, symbol int) {
	m.decodedBlocks[key{ue, symbol}]++
}

// Flush is a no-op for Memory; it exists so Memory satisfies Sink
// alongside SQLite, whose Flush actually commits a batch.
func (m *Memory) Flush() error { return nil }

// PilotSNR returns the most recently recorded pilot SNR for ue.
func (m *Memory) PilotSNR(ue int) float64 { return m.pilotSNR[ue] }

// EVMPercent returns 100*sqrt(mean squared error magnitude), matching
// phy_stats.cpp's print_evm_stats formula (evm_mat = sqrt(evm_mat) then
// scaled to percent).
func (m *Memory) EVMPercent(ue, symbol int) float64 {
	k := key{ue, symbol}
	n := m.evmCount[k]
	if n == 0 {
		return 0
	}
	mean := m.evmSqSum[k] / float64(n)
	return 100 * math.Sqrt(mean)
}

// BitErrorCount, DecodedBitCount, BlockErrorCount, DecodedBlockCount
// expose the raw counters for reporting (cmd/phycore-demo's end-of-run
// BER/BLER summary, grounded on phy_stats.cpp's print_phy_stats).
func (m *Memory) BitErrorCount(ue, symbol int) int     { return m.bitErrors[key{ue, symbol}] }
func (m *Memory) DecodedBitCount(ue, symbol int) int   { return m.decodedBits[key{ue, symbol}] }
func (m *Memory) BlockErrorCount(ue, symbol int) int   { return m.blockErrors[key{ue, symbol}] }
func (m *Memory) DecodedBlockCount(ue, symbol int) int { return m.decodedBlocks[key{ue, symbol}] }
