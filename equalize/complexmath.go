package equalize

import (
	"math"
	"math/cmplx"
)

// sign returns z/|z|, or 0 if z is exactly zero.
func sign(z complex64) complex64 {
	m := cmplx.Abs(complex128(z))
	if m == 0 {
		return 0
	}
	return complex64(complex128(z) / complex(m, 0))
}

// argC returns the phase angle of z in radians.
func argC(z complex64) float64 {
	return cmplx.Phase(complex128(z))
}

// conjF returns the complex conjugate of z as complex128.
func conjF(z complex64) complex128 {
	return cmplx.Conj(complex128(z))
}

// expNegJ returns exp(-j*theta) as a complex64 unit phasor.
func expNegJ(theta float64) complex64 {
	return complex64(complex(math.Cos(-theta), math.Sin(-theta)))
}
