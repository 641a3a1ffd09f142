package telemetry

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"phycore/config"
)

// RunFingerprint hashes the configuration a run used into a short
// stable identifier, so a SQLite telemetry database accumulated across
// many runs can be filtered to comparable configurations without
// storing every parameter as its own column.
func RunFingerprint(cfg config.Provider) string {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	writeInt(cfg.NumSubcarriers())
	writeInt(cfg.DataStart())
	writeInt(cfg.DataStop())
	writeInt(cfg.BSAntennas())
	writeInt(cfg.UEAntennas())
	writeInt(cfg.SpatialStreams())
	writeInt(cfg.FrameWindow())
	writeInt(cfg.TransposeBlock())
	writeInt(cfg.CachelineSCs())
	writeInt(cfg.DemodBlock())
	writeInt(cfg.ModOrderBits())
	writeInt(cfg.ULPilotSyms())
	writeInt(cfg.ULDataSyms())
	writeInt(cfg.BeamGroups())
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
