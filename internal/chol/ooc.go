// Package chol implements the out-of-core blocked Cholesky driver: the host
// matrix is processed as column panels (Lower) or row panels (Upper) staged
// through double-buffered device memory, with the diagonal factorization
// leaning on the triangular-inversion engine and the trailing Hermitian
// update streamed in sub-blocks under the device budget.
package chol

import (
	"errors"
	"unsafe"

	"github.com/calvergne/panelkit/internal/logger"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// Params tunes the driver. Zero values select defaults.
type Params struct {
	// PanelWidth fixes the panel width b. 0 derives it from the device
	// budget.
	PanelWidth int
	// Base is the triangular-inversion base block size (16, 32, or 64).
	Base int
	// Log receives debug-level scheduling decisions.
	Log logger.Logger
}

const (
	minPanel     = 64
	maxAutoPanel = 512
	innerBlock   = 128
)

// Factor computes the Cholesky factorization of the host-resident Hermitian
// positive-definite matrix a in place on the uplo triangle, staging panels
// through dev. It returns the LAPACK-style info code (0 success, >0 the
// 1-based index of the first non-positive-definite leading minor) and a
// non-nil error only for resource or device failures. The caller has already
// validated arguments.
func Factor[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, a mtx.Matrix[T], p Params) (int, error) {
	n := a.Rows
	if n == 0 {
		return 0, nil
	}
	d := &driver[T]{
		dev:  dev,
		uplo: uplo,
		a:    a,
		n:    n,
		base: p.Base,
		log:  p.Log,
	}
	if d.base == 0 {
		d.base = 16
	}
	if d.log == nil {
		d.log = logger.Default()
	}
	d.nb = p.PanelWidth
	if d.nb <= 0 {
		d.nb = d.autoPanelWidth()
	}

	d.qIn = dev.NewQueue()
	d.qOut = dev.NewQueue()
	d.qComp = dev.NewQueue()
	defer func() {
		_ = d.qIn.Close()
		_ = d.qOut.Close()
		_ = d.qComp.Close()
	}()

	if err := d.allocBuffers(); err != nil {
		return 0, err
	}
	defer d.freeBuffers()

	var info int
	var err error
	if uplo == mtx.Lower {
		info, err = d.factorLower()
	} else {
		info, err = d.factorUpper()
	}
	if err != nil {
		return 0, err
	}
	// Panel-boundary syncs already ordered everything; drain the copy-out
	// queue so the host matrix is complete before returning.
	if serr := d.qOut.Sync(); serr != nil {
		return 0, serr
	}
	if serr := d.qIn.Sync(); serr != nil {
		return 0, serr
	}
	return info, nil
}

type driver[T mtx.Scalar] struct {
	dev  *device.Device
	uplo mtx.Uplo
	a    mtx.Matrix[T]
	log  logger.Logger

	n, nb, ib, uw, base int

	qIn, qOut, qComp *device.Queue

	panels [2]*device.Buffer[T]
	upd    *device.Buffer[T]
	dinv   *device.Buffer[T]
	wsolve *device.Buffer[T]

	// lastOut is the most recent copy-out. qOut is in order, so waiting on
	// it covers every earlier write-back: both host regions a later stage-in
	// will read and device slots a later stage-in will overwrite.
	lastOut *device.Event
	updBusy [2]*device.Event // last copy-out consuming each update slot
	updSlot int

	retained bool // next panel already resident via look-ahead
}

// autoPanelWidth picks the largest multiple of 64 whose staging footprint
// (two panels, the update buffer, and the solve workspace) fits the free
// device memory.
func (d *driver[T]) autoPanelWidth() int {
	var zero T
	elem := int64(unsafe.Sizeof(zero))
	free, _ := d.dev.MemInfo()
	if free <= 0 {
		return minPanel
	}
	n := int64(d.n)
	fixed := n*innerBlock + innerBlock*innerBlock
	avail := free/elem - fixed
	nb := int(avail / (3 * n))
	nb -= nb % 64
	if nb < minPanel {
		nb = minPanel
	}
	if nb > maxAutoPanel {
		nb = maxAutoPanel
	}
	return nb
}

// allocBuffers acquires the staging buffers, shrinking the panel width and
// retrying when the budget does not fit.
func (d *driver[T]) allocBuffers() error {
	for {
		err := d.tryAlloc()
		if err == nil {
			return nil
		}
		d.freeBuffers()
		if !errors.Is(err, device.ErrDeviceAlloc) || d.nb <= minPanel {
			return err
		}
		d.nb /= 2
		if d.nb < minPanel {
			d.nb = minPanel
		}
		d.log.Debug("device budget too small for panel, retrying", "panel_width", d.nb)
	}
}

func (d *driver[T]) tryAlloc() error {
	n, nb := d.n, d.nb
	d.ib = innerBlock
	if d.ib > nb {
		d.ib = nb
	}
	d.uw = nb / 2
	if d.uw < 16 {
		d.uw = nb
	}
	var err error
	for i := range d.panels {
		d.panels[i], err = device.Malloc[T](d.dev, n*nb)
		if err != nil {
			return err
		}
	}
	d.upd, err = device.Malloc[T](d.dev, 2*n*d.uw)
	if err != nil {
		return err
	}
	d.dinv, err = device.Malloc[T](d.dev, d.ib*d.ib)
	if err != nil {
		return err
	}
	d.wsolve, err = device.Malloc[T](d.dev, n*d.ib)
	if err != nil {
		return err
	}
	return nil
}

func (d *driver[T]) freeBuffers() {
	for i, b := range d.panels {
		if b != nil {
			_ = device.Free(d.dev, b)
			d.panels[i] = nil
		}
	}
	for _, b := range []**device.Buffer[T]{&d.upd, &d.dinv, &d.wsolve} {
		if *b != nil {
			_ = device.Free(d.dev, *b)
			*b = nil
		}
	}
	d.lastOut = nil
	d.updBusy = [2]*device.Event{}
	d.retained = false
}

// updView carves the us-th update staging slot as an r×c device view.
func (d *driver[T]) updView(us, r, c int) mtx.Matrix[T] {
	return d.upd.MatrixAt(us*d.n*d.uw, r, c, r)
}
