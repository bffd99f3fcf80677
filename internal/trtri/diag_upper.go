package trtri

import "github.com/calvergne/panelkit/pkg/mtx"

// invertDiagUpper is the upper-triangular mirror of invertDiagLower, using
// back substitution within each base-sized diagonal block.
func invertDiagUpper[T mtx.Scalar](diag mtx.Diag, a, dinvA mtx.Matrix[T], base int) {
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
			for i := j - 1; i >= 0; i-- {
				var sum T
				for k := i + 1; k <= j; k++ {
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
