package kern

import (
	"math"

	"github.com/calvergne/panelkit/pkg/mtx"
)

// Potf2 factors the n×n Hermitian positive-definite matrix a in place using
// the unblocked Cholesky algorithm, overwriting the uplo triangle with the
// factor (L·Lᴴ for Lower, Uᴴ·U for Upper). It returns 0 on success, or the
// 1-based index of the first leading minor that is not positive definite;
// entries before that index hold the valid partial factor.
//
// Potf2 is the diagonal-block kernel of the blocked drivers and doubles as
// the host-side reference factorization for accuracy checks.
func Potf2[T mtx.Scalar](uplo mtx.Uplo, a mtx.Matrix[T]) int {
	n := a.Rows
	if a.Cols != n {
		panic("kern: potf2 matrix not square")
	}
	if uplo == mtx.Lower {
		return potf2Lower(a)
	}
	return potf2Upper(a)
}

func potf2Lower[T mtx.Scalar](a mtx.Matrix[T]) int {
	n := a.Rows
	for j := 0; j < n; j++ {
		ajj := mtx.Re(a.At(j, j))
		for k := 0; k < j; k++ {
			ajj -= mtx.AbsSq(a.At(j, k))
		}
		if ajj <= 0 || math.IsNaN(ajj) {
			a.Set(j, j, mtx.OfReal[T](ajj))
			return j + 1
		}
		ajj = math.Sqrt(ajj)
		a.Set(j, j, mtx.OfReal[T](ajj))
		inv := mtx.OfReal[T](1 / ajj)
		for i := j + 1; i < n; i++ {
			v := a.At(i, j)
			for k := 0; k < j; k++ {
				v -= a.At(i, k) * mtx.Conj(a.At(j, k))
			}
			a.Set(i, j, v*inv)
		}
	}
	return 0
}

func potf2Upper[T mtx.Scalar](a mtx.Matrix[T]) int {
	n := a.Rows
	for j := 0; j < n; j++ {
		ajj := mtx.Re(a.At(j, j))
		for k := 0; k < j; k++ {
			ajj -= mtx.AbsSq(a.At(k, j))
		}
		if ajj <= 0 || math.IsNaN(ajj) {
			a.Set(j, j, mtx.OfReal[T](ajj))
			return j + 1
		}
		ajj = math.Sqrt(ajj)
		a.Set(j, j, mtx.OfReal[T](ajj))
		inv := mtx.OfReal[T](1 / ajj)
		for i := j + 1; i < n; i++ {
			v := a.At(j, i)
			for k := 0; k < j; k++ {
				v -= mtx.Conj(a.At(k, j)) * a.At(k, i)
			}
			a.Set(j, i, v*inv)
		}
	}
	return 0
}
