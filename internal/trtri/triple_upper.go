package trtri

import (
	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// Upper-case combination, mirroring triple_lower.go:
//
//	inv([[A11, A12], [0, A22]]) = [[inv(A11), -inv(A11)·A12·inv(A22)], [0, inv(A22)]]

func (twoPhase[T]) combineUpper(a, dinvA mtx.Matrix[T], jb, npages, n int, _ []T) {
	for p := 0; p < npages; p++ {
		pg := p * 2 * jb
		size2 := min(2*jb, n-pg)
		if size2 <= jb {
			continue
		}
		r := size2 - jb
		a12 := a.Slice(pg, pg+jb, pg+jb, pg+size2)
		inv11 := dinvA.Slice(pg, pg+jb, pg, pg+jb)
		inv22 := dinvA.Slice(pg+jb, pg+size2, pg+jb, pg+size2)
		slot := dinvA.Slice(pg, pg+jb, pg+jb, pg+size2)

		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), inv11, a12, mtx.OfReal[T](0), slot)

		tile := mtx.FromSlice(jb, r, jb, make([]T, jb*r))
		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), slot, inv22, mtx.OfReal[T](0), tile)
		negateInto(slot, tile)
	}
}

func (threePhase[T]) combineUpper(a, dinvA mtx.Matrix[T], jb, npages, n int, work []T) {
	for p := 0; p < npages; p++ {
		pg := p * 2 * jb
		size2 := min(2*jb, n-pg)
		if size2 <= jb {
			continue
		}
		r := size2 - jb
		a12 := a.Slice(pg, pg+jb, pg+jb, pg+size2)
		inv11 := dinvA.Slice(pg, pg+jb, pg, pg+jb)
		inv22 := dinvA.Slice(pg+jb, pg+size2, pg+jb, pg+size2)
		slot := dinvA.Slice(pg, pg+jb, pg+jb, pg+size2)
		wm := mtx.FromSlice(jb, r, jb, work)

		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), inv11, a12, mtx.OfReal[T](0), wm)
		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), wm, inv22, mtx.OfReal[T](0), slot)
		negate(slot)
	}
}
