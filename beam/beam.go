// Package beam computes the zero-forcing uplink beamforming matrix
// W_ul = (H^H H)^-1 H^H, one S-by-A matrix per beam group, built from
// the CSI estimates gathered by the FFT stage. The Hermitian solve and
// its singular-value-cutoff pseudo-inverse fallback are hand-rolled
// kernels sized for the handful of small, fixed shapes this path ever
// sees, in the same unsafe-free, plain-Go numeric style as the rest of
// the pipeline's small linear-algebra code.
package beam

import (
	"log"
	"math"
	"math/cmplx"

	"phycore/config"
	"phycore/framebuf"
)

// SingularCutoff is the relative-eigenvalue threshold the pseudo-inverse
// fallback uses: eigenvalues of the Gram matrix at or below
// SingularCutoff times the largest one are dropped. The switch to that
// fallback itself happens when hermitianInvert meets a pivot under its
// own absolute floor.
const SingularCutoff = 1e-2

// Builder holds the per-worker scratch buffers a beam-matrix computation
// needs, all sized once from cfg (A, U fixed for the process lifetime)
// so that Compute never touches the allocator on its hot path. One
// Builder is not safe for concurrent use; goroutines that call Compute
// concurrently each need their own, the same per-worker scratch
// convention as fftstage.Stage and equalize.Equalizer.
type Builder struct {
	cfg config.Provider

	h    []complex128 // A*U channel matrix
	gram []complex128 // U*U Hermitian Gram matrix
	inv  []complex128 // U*U inverse (or pseudo-inverse) of gram

	invScratch []complex128 // U*U row-reduction scratch for hermitianInvert

	pseudoA      []complex128 // U*U Jacobi scratch
	pseudoV      []complex128 // U*U eigenvector accumulator
	pseudoLambda []float64    // U eigenvalues
}

// NewBuilder builds a Builder sized from cfg.
func NewBuilder(cfg config.Provider) *Builder {
	a := cfg.BSAntennas()
	u := cfg.UEAntennas()
	return &Builder{
		cfg:          cfg,
		h:            make([]complex128, a*u),
		gram:         make([]complex128, u*u),
		inv:          make([]complex128, u*u),
		invScratch:   make([]complex128, u*u),
		pseudoA:      make([]complex128, u*u),
		pseudoV:      make([]complex128, u*u),
		pseudoLambda: make([]float64, u),
	}
}

// Compute builds the beam matrix for beam group beamSCID of frame
// frameID, gathering the CSI store's per-UE channel estimates at the
// group's representative subcarrier, and writes the result into
// st.BeamSlice(frameID, beamSCID) as a row-major S-by-A matrix.
func (b *Builder) Compute(st *framebuf.Store, frameID uint32, beamSCID int) error {
	cfg := b.cfg
	a := cfg.BSAntennas()
	u := cfg.UEAntennas()
	s := cfg.SpatialStreams()
	sc := beamSCID * cfg.BeamGroupWidth()

	// H is A-by-U: column ue holds that UE's per-antenna channel
	// estimate at the group's representative subcarrier. Every entry
	// is overwritten below, so b.h needs no reset between calls.
	h := b.h
	for ue := 0; ue < u; ue++ {
		csi := st.CSISlice(frameID, ue)
		for ant := 0; ant < a; ant++ {
			off := st.DataOffset(ant, sc)
			h[ant*u+ue] = complex128(csi[off])
		}
	}

	// gram = H^H H, U-by-U Hermitian; likewise fully overwritten.
	gram := b.gram
	for i := 0; i < u; i++ {
		for j := 0; j < u; j++ {
			var acc complex128
			for ant := 0; ant < a; ant++ {
				acc += cmplx.Conj(h[ant*u+i]) * h[ant*u+j]
			}
			gram[i*u+j] = acc
		}
	}

	inv := b.hermitianInvert(gram, u)
	var singularErr error
	if inv == nil {
		log.Printf("beam: gram matrix singular at frame %d beam group %d, falling back to pseudo-inverse", frameID, beamSCID)
		inv = b.hermitianPseudoInverse(gram, u, SingularCutoff)
		singularErr = &config.Error{Kind: config.ErrNumerical, Op: "beam gram matrix singular, used pseudo-inverse fallback", Frame: int64(frameID), Symbol: beamSCID}
	}

	// W = inv * H^H, U-by-A; only the first S rows are spatial streams
	// actually driven downstream (S <= U).
	out := st.BeamSlice(frameID, beamSCID)
	for row := 0; row < s; row++ {
		for ant := 0; ant < a; ant++ {
			var acc complex128
			for k := 0; k < u; k++ {
				acc += inv[row*u+k] * cmplx.Conj(h[ant*u+k])
			}
			out[row*a+ant] = complex64(acc)
		}
	}
	return singularErr
}

// hermitianInvert solves g*x = I for a Hermitian positive-definite g via
// Gauss-Jordan elimination with partial pivoting, writing the result
// into b.inv and returning it, or returning nil the moment a pivot's
// magnitude falls under a numerical noise floor, in which case the
// caller falls back to hermitianPseudoInverse. g and n are always
// b.gram and cfg.UEAntennas(), but are threaded through as parameters
// to keep the linear-algebra kernel free of Compute's framing.
func (b *Builder) hermitianInvert(g []complex128, n int) []complex128 {
	a := b.invScratch
	copy(a, g)
	inv := b.inv
	for i := range inv {
		inv[i] = 0
	}
	for i := 0; i < n; i++ {
		inv[i*n+i] = 1
	}

	const pivotFloor = 1e-9
	for col := 0; col < n; col++ {
		pivotRow := col
		best := cmplx.Abs(a[col*n+col])
		for r := col + 1; r < n; r++ {
			if m := cmplx.Abs(a[r*n+col]); m > best {
				best = m
				pivotRow = r
			}
		}
		if best < pivotFloor {
			return nil
		}
		if pivotRow != col {
			swapRow(a, n, col, pivotRow)
			swapRow(inv, n, col, pivotRow)
		}
		pivot := a[col*n+col]
		for c := 0; c < n; c++ {
			a[col*n+c] /= pivot
			inv[col*n+c] /= pivot
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := a[r*n+col]
			if factor == 0 {
				continue
			}
			for c := 0; c < n; c++ {
				a[r*n+c] -= factor * a[col*n+c]
				inv[r*n+c] -= factor * inv[col*n+c]
			}
		}
	}
	return inv
}

func swapRow(m []complex128, n, r1, r2 int) {
	for c := 0; c < n; c++ {
		m[r1*n+c], m[r2*n+c] = m[r2*n+c], m[r1*n+c]
	}
}

// hermitianPseudoInverse computes a truncated pseudo-inverse of a
// Hermitian matrix via cyclic Jacobi eigenvalue decomposition: for a
// Hermitian g, g = V diag(lambda) V^H with real lambda, and its
// pseudo-inverse under a relative cutoff is V diag(f(lambda)) V^H with
// f(lambda) = 1/lambda when lambda exceeds cutoff*lambda_max, else 0.
// Since the singular values of H equal sqrt of the eigenvalues of
// H^H H, this is the SVD pseudo-inverse of H restricted to the
// gram-matrix side, without needing H's own SVD. Writes into and
// returns b.inv.
func (b *Builder) hermitianPseudoInverse(g []complex128, n int, cutoff float64) []complex128 {
	a := b.pseudoA
	copy(a, g)
	v := b.pseudoV
	for i := range v {
		v[i] = 0
	}
	for i := 0; i < n; i++ {
		v[i*n+i] = 1
	}

	const sweeps = 30
	for sweep := 0; sweep < sweeps; sweep++ {
		offDiag := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				offDiag += cmplx.Abs(a[p*n+q])
			}
		}
		if offDiag < 1e-12 {
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				jacobiRotate(a, v, n, p, q)
			}
		}
	}

	lambda := b.pseudoLambda
	maxLambda := 0.0
	for i := 0; i < n; i++ {
		lambda[i] = real(a[i*n+i])
		if lambda[i] > maxLambda {
			maxLambda = lambda[i]
		}
	}

	inv := b.inv
	for i := range inv {
		inv[i] = 0
	}
	thresh := cutoff * maxLambda
	for k := 0; k < n; k++ {
		if lambda[k] <= thresh {
			continue
		}
		invLambda := complex(1/lambda[k], 0)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				inv[i*n+j] += v[i*n+k] * invLambda * cmplx.Conj(v[j*n+k])
			}
		}
	}
	return inv
}

// jacobiRotate zeroes a[p][q] (and its conjugate a[q][p]) with a single
// Hermitian Jacobi rotation, accumulating the rotation into v.
func jacobiRotate(a, v []complex128, n, p, q int) {
	apq := a[p*n+q]
	if cmplx.Abs(apq) < 1e-15 {
		return
	}
	app, aqq := real(a[p*n+p]), real(a[q*n+q])
	// Phase-align apq to a real value so the standard real-Jacobi angle
	// formula applies, then fold the phase back into the rotation.
	phase := apq / complex(cmplx.Abs(apq), 0)
	theta := 0.5 * math.Atan2(2*cmplx.Abs(apq), aqq-app)
	c := complex(math.Cos(theta), 0)
	s := complex(math.Sin(theta), 0) * cmplx.Conj(phase)

	for i := 0; i < n; i++ {
		aip, aiq := a[i*n+p], a[i*n+q]
		a[i*n+p] = c*aip - cmplx.Conj(s)*aiq
		a[i*n+q] = s*aip + c*aiq
	}
	for j := 0; j < n; j++ {
		apj, aqj := a[p*n+j], a[q*n+j]
		a[p*n+j] = cmplx.Conj(c)*apj - cmplx.Conj(s)*aqj
		a[q*n+j] = s*apj + c*aqj
	}
	for i := 0; i < n; i++ {
		vip, viq := v[i*n+p], v[i*n+q]
		v[i*n+p] = c*vip - cmplx.Conj(s)*viq
		v[i*n+q] = s*vip + c*viq
	}
}
