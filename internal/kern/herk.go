package kern

import "github.com/calvergne/panelkit/pkg/mtx"

// Herk performs a Hermitian rank-k update on the triangle of C selected by
// uplo:
//
//	C = alpha*A*Aᴴ + beta*C   (trans == NoTrans,   A is n×k)
//	C = alpha*Aᴴ*A + beta*C   (trans == ConjTrans, A is k×n)
//
// alpha and beta are real, preserving the Hermitian structure; the diagonal
// is kept real. The opposite triangle of C is never touched.
func Herk[T mtx.Scalar](uplo mtx.Uplo, trans Trans, alpha float64, a mtx.Matrix[T], beta float64, c mtx.Matrix[T]) {
	n := c.Rows
	if c.Cols != n || opRows(trans, a) != n {
		panic("kern: herk dimension mismatch")
	}
	k := opCols(trans, a)
	bs := mtx.OfReal[T](beta)
	for j := 0; j < n; j++ {
		lo, hi := 0, j+1
		if uplo == mtx.Lower {
			lo, hi = j, n
		}
		cj := c.Col(j)
		for i := lo; i < hi; i++ {
			cj[i] *= bs
		}
	}
	if n == 0 || k == 0 || alpha == 0 {
		realifyDiag(c)
		return
	}
	as := mtx.OfReal[T](alpha)
	if trans == NoTrans {
		for l := 0; l < k; l++ {
			al := a.Col(l)
			for j := 0; j < n; j++ {
				s := as * mtx.Conj(al[j])
				if s == 0 {
					continue
				}
				cj := c.Col(j)
				if uplo == mtx.Lower {
					for i := j; i < n; i++ {
						cj[i] += al[i] * s
					}
				} else {
					for i := 0; i <= j; i++ {
						cj[i] += al[i] * s
					}
				}
			}
		}
	} else {
		// C[i,j] += alpha * dot(conj(A[:,i]), A[:,j]) over the selected
		// triangle; both operands walk down columns.
		for j := 0; j < n; j++ {
			aj := a.Col(j)
			cj := c.Col(j)
			lo, hi := 0, j+1
			if uplo == mtx.Lower {
				lo, hi = j, n
			}
			for i := lo; i < hi; i++ {
				ai := a.Col(i)
				var sum T
				for l := 0; l < k; l++ {
					sum += mtx.Conj(ai[l]) * aj[l]
				}
				cj[i] += as * sum
			}
		}
	}
	realifyDiag(c)
}

// realifyDiag drops rounding residue from the imaginary parts of the
// diagonal, which a Hermitian update must keep real.
func realifyDiag[T mtx.Scalar](c mtx.Matrix[T]) {
	if !mtx.IsComplex[T]() {
		return
	}
	n := c.Rows
	if c.Cols < n {
		n = c.Cols
	}
	for j := 0; j < n; j++ {
		c.Set(j, j, mtx.OfReal[T](mtx.Re(c.At(j, j))))
	}
}
