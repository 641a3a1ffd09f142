// Package gemm implements the small, fixed-size complex matrix-vector
// products the equalization stage needs on its hot path (y = W_ul * x
// per subcarrier): one specialized kernel per possible spatial-stream count,
// dispatched at call time, rather than a general matrix library. Each
// kernel is a small jump table over hand-unrolled real/imaginary FMA
// loops, sized for the handful of stream counts this pipeline ever
// runs with.
package gemm

// MaxStreams bounds the specialized kernel table: stream counts 1..8
// have their own kernel. The configuration does not cap the UE antenna
// count at 8, so larger stream counts take MatVec's general loop.
const MaxStreams = 8

// MatVec computes y = W*x where W is an s-by-a complex matrix stored
// row-major (s rows, a columns) and x has length a, dispatching to a
// kernel specialized for s when s is within [1, MaxStreams], falling
// back to a general loop otherwise (spec allows S up to U, which is not
// itself bounded by MaxStreams).
func MatVec(y []complex64, w []complex64, x []complex64, s, a int) {
	if s >= 1 && s <= MaxStreams {
		kernels[s-1](y, w, x, a)
	} else {
		general(y, w, x, s, a)
	}
}

type kernelFn func(y, w, x []complex64, a int)

var kernels = [MaxStreams]kernelFn{
	kernel1, kernel2, kernel3, kernel4,
	kernel5, kernel6, kernel7, kernel8,
}

func general(y, w, x []complex64, s, a int) {
	for row := 0; row < s; row++ {
		var acc complex64
		base := row * a
		for col := 0; col < a; col++ {
			acc += w[base+col] * x[col]
		}
		y[row] = acc
	}
}

func kernel1(y, w, x []complex64, a int) {
	var acc0 complex64
	for col := 0; col < a; col++ {
		acc0 += w[col] * x[col]
	}
	y[0] = acc0
}

func kernel2(y, w, x []complex64, a int) {
	var acc0, acc1 complex64
	row0, row1 := w[0:a], w[a:2*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc0 += row0[col] * xc
		acc1 += row1[col] * xc
	}
	y[0], y[1] = acc0, acc1
}

func kernel3(y, w, x []complex64, a int) {
	var acc0, acc1, acc2 complex64
	row0, row1, row2 := w[0:a], w[a:2*a], w[2*a:3*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc0 += row0[col] * xc
		acc1 += row1[col] * xc
		acc2 += row2[col] * xc
	}
	y[0], y[1], y[2] = acc0, acc1, acc2
}

func kernel4(y, w, x []complex64, a int) {
	var acc0, acc1, acc2, acc3 complex64
	row0, row1, row2, row3 := w[0:a], w[a:2*a], w[2*a:3*a], w[3*a:4*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc0 += row0[col] * xc
		acc1 += row1[col] * xc
		acc2 += row2[col] * xc
		acc3 += row3[col] * xc
	}
	y[0], y[1], y[2], y[3] = acc0, acc1, acc2, acc3
}

func kernel5(y, w, x []complex64, a int) {
	kernel4(y, w, x, a)
	var acc4 complex64
	row4 := w[4*a : 5*a]
	for col := 0; col < a; col++ {
		acc4 += row4[col] * x[col]
	}
	y[4] = acc4
}

func kernel6(y, w, x []complex64, a int) {
	kernel4(y, w, x, a)
	var acc4, acc5 complex64
	row4, row5 := w[4*a:5*a], w[5*a:6*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc4 += row4[col] * xc
		acc5 += row5[col] * xc
	}
	y[4], y[5] = acc4, acc5
}

func kernel7(y, w, x []complex64, a int) {
	kernel4(y, w, x, a)
	var acc4, acc5, acc6 complex64
	row4, row5, row6 := w[4*a:5*a], w[5*a:6*a], w[6*a:7*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc4 += row4[col] * xc
		acc5 += row5[col] * xc
		acc6 += row6[col] * xc
	}
	y[4], y[5], y[6] = acc4, acc5, acc6
}

func kernel8(y, w, x []complex64, a int) {
	kernel4(y, w, x, a)
	var acc4, acc5, acc6, acc7 complex64
	row4, row5, row6, row7 := w[4*a:5*a], w[5*a:6*a], w[6*a:7*a], w[7*a:8*a]
	for col := 0; col < a; col++ {
		xc := x[col]
		acc4 += row4[col] * xc
		acc5 += row5[col] * xc
		acc6 += row6[col] * xc
		acc7 += row7[col] * xc
	}
	y[4], y[5], y[6], y[7] = acc4, acc5, acc6, acc7
}
