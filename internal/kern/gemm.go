// Package kern holds the device-side compute kernels: general matrix
// multiply, Hermitian rank-k update, and the unblocked Cholesky used on
// diagonal blocks. Kernels are plain functions over matrix views; the caller
// decides which queue they execute on.
package kern

import "github.com/calvergne/panelkit/pkg/mtx"

// Trans selects the operation applied to a gemm operand. ConjTrans is the
// conjugate transpose; for real scalars it degenerates to the plain
// transpose.
type Trans int

const (
	NoTrans Trans = iota
	ConjTrans
)

// Gemm computes C = alpha*op(A)*op(B) + beta*C for column-major operands,
// where op(A) is m×k and op(B) is k×n. Shapes are validated against C.
func Gemm[T mtx.Scalar](transA, transB Trans, alpha T, a, b mtx.Matrix[T], beta T, c mtx.Matrix[T]) {
	m, n := c.Rows, c.Cols
	k := opCols(transA, a)
	if opRows(transA, a) != m || opRows(transB, b) != k || opCols(transB, b) != n {
		panic("kern: gemm dimension mismatch")
	}
	scale(c, beta)
	if m == 0 || n == 0 || k == 0 || alpha == 0 {
		return
	}

	switch {
	case transA == NoTrans && transB == NoTrans:
		// Column-major axpy form: C[:,j] += (alpha*B[l,j]) * A[:,l].
		for j := 0; j < n; j++ {
			cj := c.Col(j)
			for l := 0; l < k; l++ {
				s := alpha * b.At(l, j)
				if s == 0 {
					continue
				}
				al := a.Col(l)
				for i := range cj {
					cj[i] += s * al[i]
				}
			}
		}
	case transA == NoTrans && transB == ConjTrans:
		// B is n×k; op(B)[l,j] = conj(B[j,l]).
		for j := 0; j < n; j++ {
			cj := c.Col(j)
			for l := 0; l < k; l++ {
				s := alpha * mtx.Conj(b.At(j, l))
				if s == 0 {
					continue
				}
				al := a.Col(l)
				for i := range cj {
					cj[i] += s * al[i]
				}
			}
		}
	case transA == ConjTrans && transB == NoTrans:
		// A is k×m; the dot runs down columns of both operands.
		for j := 0; j < n; j++ {
			bj := b.Col(j)
			cj := c.Col(j)
			for i := 0; i < m; i++ {
				ai := a.Col(i)
				var sum T
				for l := 0; l < k; l++ {
					sum += mtx.Conj(ai[l]) * bj[l]
				}
				cj[i] += alpha * sum
			}
		}
	default: // ConjTrans, ConjTrans
		for j := 0; j < n; j++ {
			cj := c.Col(j)
			for i := 0; i < m; i++ {
				ai := a.Col(i)
				var sum T
				for l := 0; l < k; l++ {
					sum += mtx.Conj(ai[l]) * mtx.Conj(b.At(j, l))
				}
				cj[i] += alpha * sum
			}
		}
	}
}

func opRows[T mtx.Scalar](t Trans, m mtx.Matrix[T]) int {
	if t == NoTrans {
		return m.Rows
	}
	return m.Cols
}

func opCols[T mtx.Scalar](t Trans, m mtx.Matrix[T]) int {
	if t == NoTrans {
		return m.Cols
	}
	return m.Rows
}

func scale[T mtx.Scalar](c mtx.Matrix[T], beta T) {
	if beta == 1 {
		return
	}
	for j := 0; j < c.Cols; j++ {
		cj := c.Col(j)
		if beta == 0 {
			for i := range cj {
				cj[i] = 0
			}
			continue
		}
		for i := range cj {
			cj[i] *= beta
		}
	}
}
