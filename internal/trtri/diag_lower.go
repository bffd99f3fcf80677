package trtri

import "github.com/calvergne/panelkit/pkg/mtx"

// invertDiagLower inverts each base-sized diagonal block of the lower
// triangular matrix a directly into dinvA by forward substitution against
// unit vectors. The final block may be smaller when n is not a multiple of
// the base size. A Unit diagonal is treated as all-ones and never read.
func invertDiagLower[T mtx.Scalar](diag mtx.Diag, a, dinvA mtx.Matrix[T], base int) {
	n := a.Rows
	one := mtx.OfReal[T](1)
	for b0 := 0; b0 < n; b0 += base {
		s := min(base, n-b0)
		blk := a.Slice(b0, b0+s, b0, b0+s)
		out := dinvA.Slice(b0, b0+s, b0, b0+s)
		for j := 0; j < s; j++ {
			col := out.Col(j)
			if diag == mtx.NonUnit {
				col[j] = one / blk.At(j, j)
			} else {
				col[j] = one
			}
			for i := j + 1; i < s; i++ {
				var sum T
				for k := j; k < i; k++ {
					sum += blk.At(i, k) * col[k]
				}
				if diag == mtx.NonUnit {
					col[i] = -sum / blk.At(i, i)
				} else {
					col[i] = -sum
				}
			}
		}
	}
}
