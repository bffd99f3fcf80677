package kern

import "github.com/calvergne/panelkit/pkg/mtx"

const potrfBlock = 64

// PotrfHost is a blocked host-side Cholesky factorization, used as the
// reference the drivers are checked against. It factors the uplo triangle of
// a in place and returns 0 on success or the 1-based order of the first
// non-positive-definite leading minor.
func PotrfHost[T mtx.Scalar](uplo mtx.Uplo, a mtx.Matrix[T]) int {
	n := a.Rows
	if n != a.Cols {
		panic("kern: matrix not square")
	}
	one := mtx.OfReal[T](1)
	negOne := mtx.OfReal[T](-1)
	for j := 0; j < n; j += potrfBlock {
		jb := min(potrfBlock, n-j)
		blk := a.Slice(j, j+jb, j, j+jb)
		if uplo == mtx.Lower {
			if j > 0 {
				left := a.Slice(j, j+jb, 0, j)
				Herk(mtx.Lower, NoTrans, -1, left, 1, blk)
				if j+jb < n {
					below := a.Slice(j+jb, n, 0, j)
					Gemm(NoTrans, ConjTrans, negOne, below, left, one, a.Slice(j+jb, n, j, j+jb))
				}
			}
			if r := Potf2(mtx.Lower, blk); r > 0 {
				return j + r
			}
			if j+jb < n {
				trsmRight(blk, a.Slice(j+jb, n, j, j+jb))
			}
		} else {
			if j > 0 {
				top := a.Slice(0, j, j, j+jb)
				Herk(mtx.Upper, ConjTrans, -1, top, 1, blk)
				if j+jb < n {
					Gemm(ConjTrans, NoTrans, negOne, top, a.Slice(0, j, j+jb, n), one, a.Slice(j, j+jb, j+jb, n))
				}
			}
			if r := Potf2(mtx.Upper, blk); r > 0 {
				return j + r
			}
			if j+jb < n {
				trsmLeft(blk, a.Slice(j, j+jb, j+jb, n))
			}
		}
	}
	return 0
}

// trsmRight solves X·Lᴴ = B in place for lower-triangular L, column by
// column with forward substitution over L's rows.
func trsmRight[T mtx.Scalar](l, b mtx.Matrix[T]) {
	n := l.Rows
	for j := 0; j < n; j++ {
		d := l.At(j, j)
		for i := 0; i < b.Rows; i++ {
			s := b.At(i, j)
			for k := 0; k < j; k++ {
				s -= b.At(i, k) * mtx.Conj(l.At(j, k))
			}
			b.Set(i, j, s/mtx.Conj(d))
		}
	}
}

// trsmLeft solves Uᴴ·X = B in place for upper-triangular U.
func trsmLeft[T mtx.Scalar](u, b mtx.Matrix[T]) {
	n := u.Rows
	for j := 0; j < b.Cols; j++ {
		for i := 0; i < n; i++ {
			s := b.At(i, j)
			for k := 0; k < i; k++ {
				s -= mtx.Conj(u.At(k, i)) * b.At(k, j)
			}
			b.Set(i, j, s/mtx.Conj(u.At(i, i)))
		}
	}
}
