package telemetry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists every Sink update as an append-only row, batching
// writes inside a transaction that commits on Flush, using
// mattn/go-sqlite3 rather than an in-memory-only structure so a
// completed run's statistics survive the process and can be joined
// against RunFingerprint across runs.
type SQLite struct {
	db             *sql.DB
	tx             *sql.Tx
	insertStat     *sql.Stmt
	insertSNR      *sql.Stmt
	runFingerprint string
}

const schema = `
CREATE TABLE IF NOT EXISTS pilot_snr (
	run TEXT NOT NULL,
	ue INTEGER NOT NULL,
	snr_db REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS stat_event (
	run TEXT NOT NULL,
	frame_slot INTEGER NOT NULL,
	ue INTEGER NOT NULL,
	symbol INTEGER NOT NULL,
	kind TEXT NOT NULL,
	value REAL NOT NULL
);
`

// OpenSQLite opens (creating if needed) a SQLite database at path and
// prepares it to receive updates tagged with runFingerprint.
func OpenSQLite(path, runFingerprint string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite telemetry db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	s := &SQLite{db: db, runFingerprint: runFingerprint}
	if err := s.beginBatch(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) beginBatch() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin telemetry batch: %w", err)
	}
	insertSNR, err := tx.Prepare(`INSERT INTO pilot_snr(run, ue, snr_db) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	insertStat, err := tx.Prepare(`INSERT INTO stat_event(run, frame_slot, ue, symbol, kind, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	s.tx = tx
	s.insertSNR = insertSNR
	s.insertStat = insertStat
	return nil
}

func (s *SQLite) UpdatePilotSNR(_, ue int, snrDB float64) {
	s.insertSNR.Exec(s.runFingerprint, ue, snrDB)
}

func (s *SQLite) UpdateEVM(frameSlot, ue, symbol int, sqMagnitude float64) {
	s.insertStat.Exec(s.runFingerprint, frameSlot, ue, symbol, "evm_sq", sqMagnitude)
}

func (s *SQLite) UpdateBitErrors(frameSlot, ue, symbol int, errs int) {
	s.insertStat.Exec(s.runFingerprint, frameSlot, ue, symbol, "bit_errors", float64(errs))
}

func (s *SQLite) UpdateDecodedBits(frameSlot, ue, symbol int, bits int) {
	s.insertStat.Exec(s.runFingerprint, frameSlot, ue, symbol, "decoded_bits", float64(bits))
}

func (s *SQLite) UpdateBlockErrors(frameSlot, ue, symbol int, blockHadError bool) {
	v := 0.0
	if blockHadError {
		v = 1
	}
	s.insertStat.Exec(s.runFingerprint, frameSlot, ue, symbol, "block_error", v)
}

func (s *SQLite) IncrementDecodedBlocks(frameSlot, ue, symbol int) {
	s.insertStat.Exec(s.runFingerprint, frameSlot, ue, symbol, "decoded_blocks", 1)
}

// Flush commits the current batch and opens a fresh one, so a SQLite
// sink can be used across a long-running process without holding one
// giant transaction open for the process lifetime.
func (s *SQLite) Flush() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit telemetry batch: %w", err)
	}
	return s.beginBatch()
}

// Close flushes and releases the underlying database handle.
func (s *SQLite) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
