// Package trtri implements the blocked triangular-inversion engine: diagonal
// blocks of a small base size are inverted directly, then recursive doubling
// combines pairs of inverted blocks through a family of triple-gemm
// combination strategies until the inverse spans the full matrix.
package trtri

import (
	"fmt"

	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// BaseSizes are the supported diagonal base block sizes. Each has a direct
// inversion kernel that keeps the whole block in fast memory.
var BaseSizes = []int{16, 32, 64}

// ValidBase reports whether s is a supported base block size.
func ValidBase(s int) bool {
	return s == 16 || s == 32 || s == 64
}

// combiner merges two adjacent already-inverted jb×jb diagonal sub-blocks and
// the off-diagonal block between them into a 2jb×2jb inverse, for every page
// of the current doubling level. Implementations differ in how many dependent
// passes they need to keep each pass's working set bounded.
type combiner[T mtx.Scalar] interface {
	// workspace returns the device workspace elements required per level.
	workspace(jb, n int) int
	combineLower(a, dinvA mtx.Matrix[T], jb, npages, n int, work []T)
	combineUpper(a, dinvA mtx.Matrix[T], jb, npages, n int, work []T)
}

// strategyFor selects the combination strategy for the current page size.
// Pages of 64 and below combine in two passes with an in-register tile; the
// intermediate of larger pages no longer fits, so they take the distinct
// three-pass strategy.
func strategyFor[T mtx.Scalar](jb int) combiner[T] {
	if jb <= 64 {
		return twoPhase[T]{}
	}
	return threePhase[T]{}
}

// Invert computes the inverse of the n×n triangular matrix viewed by a into
// dinvA, both device-resident with n = a.Rows. base selects the diagonal
// block size. All work is issued onto q; the returned error only reports
// queue failures (a singular block yields inf/nan in the output, detection of
// which belongs to the factorization driver upstream).
func Invert[T mtx.Scalar](dev *device.Device, q *device.Queue, uplo mtx.Uplo, diag mtx.Diag, a, dinvA mtx.Matrix[T], base int) error {
	n := a.Rows
	if a.Cols != n || dinvA.Rows < n || dinvA.Cols < n {
		panic("trtri: shape mismatch")
	}
	if !ValidBase(base) {
		panic(fmt.Sprintf("trtri: unsupported base block size %d", base))
	}

	// Device workspace for the three-phase levels, sized for the widest
	// off-diagonal intermediate across all levels.
	var work *device.Buffer[T]
	if ws := maxWorkspace[T](base, n); ws > 0 {
		var err error
		work, err = device.Malloc[T](dev, ws)
		if err != nil {
			return err
		}
	}

	q.Launch(func() {
		zero(dinvA, n)
		if uplo == mtx.Lower {
			invertDiagLower(diag, a, dinvA, base)
		} else {
			invertDiagUpper(diag, a, dinvA, base)
		}
	})

	for jb := base; jb < n; jb *= 2 {
		jb := jb
		strat := strategyFor[T](jb)
		npages := ceilDiv(n, 2*jb)
		var ws []T
		if work != nil {
			ws = work.Data()
		}
		q.Launch(func() {
			if uplo == mtx.Lower {
				strat.combineLower(a, dinvA, jb, npages, n, ws)
			} else {
				strat.combineUpper(a, dinvA, jb, npages, n, ws)
			}
		})
	}
	if work == nil {
		return q.Err()
	}
	// Drain the queue before releasing. A failed queue skips later ops, so
	// an enqueued free would never run and the reservation would leak.
	serr := q.Sync()
	_ = device.Free(dev, work)
	return serr
}

// maxWorkspace returns the largest per-level workspace any strategy will ask
// for over the doubling schedule.
func maxWorkspace[T mtx.Scalar](base, n int) int {
	max := 0
	for jb := base; jb < n; jb *= 2 {
		if ws := strategyFor[T](jb).workspace(jb, n); ws > max {
			max = ws
		}
	}
	return max
}

func zero[T mtx.Scalar](m mtx.Matrix[T], n int) {
	for j := 0; j < n; j++ {
		col := m.Col(j)
		for i := 0; i < n; i++ {
			col[i] = 0
		}
	}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
