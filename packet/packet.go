// Package packet decodes the inbound IQ packet format: a fixed header
// (frame_id, symbol_id, ant_id) followed by sampsPerSymbol*2*i16
// samples in 16-bit native or 12-bit packed form. Decoding is
// zero-copy where the wire format allows it: the returned View
// borrows slices of the caller's buffer instead of copying, so callers
// must not retain a View past the buffer's reuse by the ingress
// producer.
package packet

import "encoding/binary"

const headerLen = 4 + 2 + 2 // frame_id u32, symbol_id u16, ant_id u16

// Encoding selects the wire representation of IQ samples within a
// packet payload.
type Encoding uint8

const (
	Encoding16Bit Encoding = iota
	Encoding12BitPacked
)

// View is a zero-copy reference to one decoded packet's header fields
// plus its still-encoded IQ payload. Converting the payload to
// complex64 happens in the FFT stage, not here, since the conversion
// path (16-bit vs 12-bit) and the prefix skip are stage concerns.
type View struct {
	FrameID  uint32
	SymbolID uint16
	AntID    uint16
	Payload  []byte // still wire-encoded IQ samples
}

// Decode parses buf's fixed header and returns a View over the
// remaining payload bytes. buf must contain at least headerLen bytes;
// Decode does not validate the payload length against sampsPerSymbol —
// that is the caller's responsibility since it depends on Encoding and
// on Config, both external to this package.
func Decode(buf []byte) (View, bool) {
	if len(buf) < headerLen {
		return View{}, false
	}
	return View{
		FrameID:  binary.LittleEndian.Uint32(buf[0:4]),
		SymbolID: binary.LittleEndian.Uint16(buf[4:6]),
		AntID:    binary.LittleEndian.Uint16(buf[6:8]),
		Payload:  buf[headerLen:],
	}, true
}

// ConvertSamples converts v.Payload into dst (length sampsPerSymbol,
// pre-allocated by the caller — the FFT stage's fft_inout scratch),
// skipping prefixLen samples at the start of the symbol; the prefix
// length is symbol-type-specific and supplied by the caller.
func ConvertSamples(dst []complex64, payload []byte, enc Encoding, prefixLen int) {
	switch enc {
	case Encoding16Bit:
		convert16Bit(dst, payload, prefixLen)
	case Encoding12BitPacked:
		convert12BitPacked(dst, payload, prefixLen)
	}
}

func convert16Bit(dst []complex64, payload []byte, prefixLen int) {
	off := prefixLen * 4 // 2 samples (I,Q) * 2 bytes each
	for i := range dst {
		base := off + i*4
		if base+4 > len(payload) {
			return
		}
		re := int16(binary.LittleEndian.Uint16(payload[base : base+2]))
		im := int16(binary.LittleEndian.Uint16(payload[base+2 : base+4]))
		dst[i] = complex(float32(re), float32(im))
	}
}

// convert12BitPacked unpacks 12-bit signed I/Q samples stored 3 bytes
// per (I,Q) pair (12+12 bits packed into 24 bits), a compact wire
// encoding offered as an alternative to 16-bit native.
func convert12BitPacked(dst []complex64, payload []byte, prefixLen int) {
	off := prefixLen * 3
	for i := range dst {
		base := off + i*3
		if base+3 > len(payload) {
			return
		}
		b0, b1, b2 := payload[base], payload[base+1], payload[base+2]
		reU := uint16(b0) | uint16(b1&0x0F)<<8
		imU := uint16(b1)>>4 | uint16(b2)<<4
		dst[i] = complex(float32(sign12(reU)), float32(sign12(imU)))
	}
}

// sign12 sign-extends a 12-bit two's-complement value held in the low
// 12 bits of v.
func sign12(v uint16) int16 {
	v &= 0x0FFF
	if v&0x0800 != 0 {
		return int16(v) - 0x1000
	}
	return int16(v)
}
