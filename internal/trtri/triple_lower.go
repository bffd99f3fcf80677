package trtri

import (
	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// The lower-case combination uses the block-triangular identity
//
//	inv([[A11, 0], [A21, A22]]) = [[inv(A11), 0], [-inv(A22)·A21·inv(A11), inv(A22)]]
//
// split into multiply passes so each pass's working set stays bounded.
// Upper-case mirrors live in triple_upper.go; keeping the cases in separate
// files makes the mirrored sources easy to diff.

// twoPhase combines pages of 64 and below: the first pass forms
// inv(A22)·A21 in the output slot, the second finishes -(inv(A22)·A21)·inv(A11)
// through a tile small enough to live in fast memory.
type twoPhase[T mtx.Scalar] struct{}

func (twoPhase[T]) workspace(jb, n int) int { return 0 }

func (twoPhase[T]) combineLower(a, dinvA mtx.Matrix[T], jb, npages, n int, _ []T) {
	for p := 0; p < npages; p++ {
		pg := p * 2 * jb
		size2 := min(2*jb, n-pg)
		if size2 <= jb {
			continue
		}
		r := size2 - jb
		a21 := a.Slice(pg+jb, pg+size2, pg, pg+jb)
		inv11 := dinvA.Slice(pg, pg+jb, pg, pg+jb)
		inv22 := dinvA.Slice(pg+jb, pg+size2, pg+jb, pg+size2)
		slot := dinvA.Slice(pg+jb, pg+size2, pg, pg+jb)

		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), inv22, a21, mtx.OfReal[T](0), slot)

		tile := mtx.FromSlice(r, jb, r, make([]T, r*jb))
		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), slot, inv11, mtx.OfReal[T](0), tile)
		negateInto(slot, tile)
	}
}

// threePhase combines pages above 64, whose intermediate no longer fits a
// single pass's fast memory: the product is staged through device workspace
// and the negation becomes its own dependent pass over the page.
type threePhase[T mtx.Scalar] struct{}

func (threePhase[T]) workspace(jb, n int) int {
	return jb * min(jb, n-jb)
}

func (threePhase[T]) combineLower(a, dinvA mtx.Matrix[T], jb, npages, n int, work []T) {
	for p := 0; p < npages; p++ {
		pg := p * 2 * jb
		size2 := min(2*jb, n-pg)
		if size2 <= jb {
			continue
		}
		r := size2 - jb
		a21 := a.Slice(pg+jb, pg+size2, pg, pg+jb)
		inv11 := dinvA.Slice(pg, pg+jb, pg, pg+jb)
		inv22 := dinvA.Slice(pg+jb, pg+size2, pg+jb, pg+size2)
		slot := dinvA.Slice(pg+jb, pg+size2, pg, pg+jb)
		wm := mtx.FromSlice(r, jb, r, work)

		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), inv22, a21, mtx.OfReal[T](0), wm)
		kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), wm, inv11, mtx.OfReal[T](0), slot)
		negate(slot)
	}
}

func negate[T mtx.Scalar](m mtx.Matrix[T]) {
	for j := 0; j < m.Cols; j++ {
		col := m.Col(j)
		for i := range col {
			col[i] = -col[i]
		}
	}
}

func negateInto[T mtx.Scalar](dst, src mtx.Matrix[T]) {
	for j := 0; j < dst.Cols; j++ {
		d := dst.Col(j)
		s := src.Col(j)
		for i := range d {
			d[i] = -s[i]
		}
	}
}
