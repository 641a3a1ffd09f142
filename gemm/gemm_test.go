package gemm

import "testing"

func closeC(a, b complex64, eps float32) bool {
	d := a - b
	re, im := real(d), imag(d)
	return re*re+im*im < eps*eps
}

func TestMatVecAgainstGeneral(t *testing.T) {
	a := 6
	for s := 1; s <= MaxStreams; s++ {
		w := make([]complex64, s*a)
		x := make([]complex64, a)
		for i := range w {
			w[i] = complex(float32(i%5)-2, float32(i%3))
		}
		for i := range x {
			x[i] = complex(float32(i+1), float32(-i))
		}
		got := make([]complex64, s)
		want := make([]complex64, s)
		MatVec(got, w, x, s, a)
		general(want, w, x, s, a)
		for i := range want {
			if !closeC(got[i], want[i], 1e-3) {
				t.Errorf("s=%d row=%d: got %v want %v", s, i, got[i], want[i])
			}
		}
	}
}

func TestMatVecFallsBackAboveMaxStreams(t *testing.T) {
	s, a := MaxStreams+1, 4
	w := make([]complex64, s*a)
	x := make([]complex64, a)
	for i := range w {
		w[i] = complex(float32(i), 0)
	}
	for i := range x {
		x[i] = complex(float32(1), 0)
	}
	got := make([]complex64, s)
	MatVec(got, w, x, s, a)
	want := make([]complex64, s)
	general(want, w, x, s, a)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestKernel1Trivial(t *testing.T) {
	w := []complex64{1 + 1i, 2 - 1i}
	x := []complex64{1, 2}
	y := make([]complex64, 1)
	MatVec(y, w, x, 1, 2)
	want := complex64(1+1i) + complex64(2)*(2-1i)
	if !closeC(y[0], want, 1e-3) {
		t.Errorf("got %v want %v", y[0], want)
	}
}
