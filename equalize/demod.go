package equalize

// demodulate writes bits bits of y (split between the real and
// imaginary axes) into dst starting at bit offset off, hard-deciding to
// 0/1 when hard is true or emitting a linear soft value (clamped to
// int8 range) otherwise. Odd bit counts give the real axis the extra
// bit, matching a square-ish QAM's usual I/Q bit split.
//
// This slicer is not a certified constellation demodulator; it exists
// to make the equalize->demod->decode chain exercisable end to end.
func demodulate(dst []int8, off int, y complex64, bits int, hard bool) {
	reBits := (bits + 1) / 2
	imBits := bits / 2
	demodAxis(dst[off:off+reBits], real(y), reBits, hard)
	demodAxis(dst[off+reBits:off+reBits+imBits], imag(y), imBits, hard)
}

// demodAxis quantizes x against 2^bits uniformly spaced levels centered
// at zero and spaced two apart (the odd integers from -(2^bits-1) to
// 2^bits-1), writing the nearest level's index as MSB-first
// natural-binary bits, or, when hard is false, writing 16*x clamped to
// [-127, 127] into every bit position.
func demodAxis(dst []int8, x float32, bits int, hard bool) {
	if bits == 0 {
		return
	}
	levels := 1 << uint(bits)
	half := float32(levels - 1)
	idx := int((x+half)/2 + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx > levels-1 {
		idx = levels - 1
	}
	for b := 0; b < bits; b++ {
		bit := (idx >> uint(bits-1-b)) & 1
		if hard {
			dst[b] = int8(bit)
		} else {
			// Soft value: positive means bit likely 1, scaled and
			// clamped to int8. A max-log-style LLR would need the
			// full constellation distance table; this linear proxy
			// keeps the pipeline's soft path exercisable.
			v := x * 16
			if v > 127 {
				v = 127
			}
			if v < -127 {
				v = -127
			}
			dst[b] = int8(v)
		}
	}
}
