// Package dense is the public entry point for the out-of-core dense
// factorizations: the panel-staged Cholesky driver and the blocked
// triangular-inversion primitive it builds on.
//
// Both entry points follow the LAPACK info convention (0 for success, -k
// for an invalid k-th argument, and for factorizations +k when the leading
// k×k minor is not positive definite) and additionally return a typed error
// so callers can pattern-match instead of branching on sign: *ArgError,
// *NotPositiveDefiniteError, or one of the device package's resource errors
// (ErrDeviceAlloc, ErrHostAlloc, ErrQueueFailed).
package dense

import (
	"fmt"
	"log/slog"

	"github.com/calvergne/panelkit/internal/chol"
	"github.com/calvergne/panelkit/internal/logger"
	"github.com/calvergne/panelkit/internal/trtri"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// Options tunes the drivers. The zero value selects defaults.
type Options struct {
	// PanelWidth fixes the Cholesky panel width; 0 derives it from the
	// device-memory budget.
	PanelWidth int
	// Base is the triangular-inversion base block size: 16, 32, or 64.
	// 0 selects 16.
	Base int
	// Log receives debug-level scheduling decisions.
	Log *slog.Logger
}

func (o Options) base() (int, error) {
	if o.Base == 0 {
		return 16, nil
	}
	if !trtri.ValidBase(o.Base) {
		return 0, fmt.Errorf("dense: unsupported base block size %d (want 16, 32, or 64)", o.Base)
	}
	return o.Base, nil
}

func (o Options) logger() logger.Logger {
	if o.Log != nil {
		return logger.New(o.Log.Handler())
	}
	return logger.Default()
}

// Cholesky factors the n×n Hermitian positive-definite column-major matrix a
// (leading dimension lda) in place on the uplo triangle, so that A = L·Lᴴ
// (Lower) or A = Uᴴ·U (Upper), staging panels through dev's memory budget.
//
// a is host resident; the driver never keeps more than its double-buffered
// panels and one update block on the device. On info > 0 the leading
// (info-1)-sized part of the factor is valid and the rest is unspecified.
func Cholesky[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, n int, a []T, lda int, opts Options) (info int, err error) {
	switch {
	case !uplo.Valid():
		info = -1
	case n < 0:
		info = -2
	case n > 0 && len(a) < lda*(n-1)+n:
		info = -3
	case lda < max(1, n):
		info = -4
	}
	if info != 0 {
		return info, infoError(info)
	}
	if n == 0 {
		return 0, nil
	}
	base, err := opts.base()
	if err != nil {
		return 0, err
	}
	m := mtx.FromSlice(n, n, lda, a)
	info, err = chol.Factor(dev, uplo, m, chol.Params{
		PanelWidth: opts.PanelWidth,
		Base:       base,
		Log:        opts.logger(),
	})
	if err != nil {
		return 0, err
	}
	return info, infoError(info)
}

// TriTri computes the inverse of the n×n triangular column-major matrix a
// (leading dimension lda, uplo triangle, diag tag) into dinvA, which must
// hold n*n elements with a tight leading dimension of n. Device staging of
// both operands is internal.
//
// A singular triangular input is not detected here: its inverse contains
// Inf/NaN entries, and rejecting such inputs is the caller's concern (the
// factorization drivers check definiteness before inverting).
func TriTri[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, diag mtx.Diag, n int, a []T, lda int, dinvA []T, opts Options) (info int, err error) {
	switch {
	case !uplo.Valid():
		info = -1
	case !diag.Valid():
		info = -2
	case n < 0:
		info = -3
	case n > 0 && len(a) < lda*(n-1)+n:
		info = -4
	case lda < max(1, n):
		info = -5
	case len(dinvA) < n*n:
		info = -6
	}
	if info != 0 {
		return info, infoError(info)
	}
	if n == 0 {
		return 0, nil
	}
	base, err := opts.base()
	if err != nil {
		return 0, err
	}

	bufA, err := device.Malloc[T](dev, n*n)
	if err != nil {
		return 0, err
	}
	defer func() { _ = device.Free(dev, bufA) }()
	bufI, err := device.Malloc[T](dev, n*n)
	if err != nil {
		return 0, err
	}
	defer func() { _ = device.Free(dev, bufI) }()

	q := dev.NewQueue()
	defer func() { _ = q.Close() }()

	da := bufA.Matrix(n, n, n)
	di := bufI.Matrix(n, n, n)
	device.CopyAsync(q, da, mtx.FromSlice(n, n, lda, a))
	if err := trtri.Invert(dev, q, uplo, diag, da, di, base); err != nil {
		return 0, err
	}
	out := device.CopyAsync(q, mtx.FromSlice(n, n, n, dinvA), di)
	if err := out.Wait(); err != nil {
		return 0, err
	}
	return 0, nil
}
