package chol

import (
	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/internal/trtri"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// factorLower walks column panels left to right. Each panel is staged in
// (unless retained by look-ahead), factored on device, staged back, and its
// trailing Hermitian update streamed over the remaining columns, with the
// next panel's columns updated first and kept resident.
func (d *driver[T]) factorLower() (int, error) {
	n, nb := d.n, d.nb
	for j := 0; j < n; j += nb {
		jb := min(nb, n-j)
		m := n - j
		slot := (j / nb) % 2
		pd := d.panels[slot].Matrix(m, jb, m)

		if !d.retained {
			// Order after every pending write-back: the slot being reused
			// and the host columns about to be read.
			if ev := d.lastOut; ev != nil {
				d.qIn.WaitEvent(ev)
			}
			evIn := device.CopyAsync(d.qIn, pd, d.a.Slice(j, n, j, j+jb))
			d.qComp.WaitEvent(evIn)
		}
		d.retained = false

		pinfo, err := d.factorPanelLower(pd, jb, m)
		if err != nil {
			return 0, err
		}
		if pinfo > 0 {
			if pref := pinfo - 1; pref > 0 {
				ev := device.CopyAsync(d.qOut, d.a.Slice(j, n, j, j+pref), pd.Slice(0, m, 0, pref))
				if werr := ev.Wait(); werr != nil {
					return 0, werr
				}
			}
			return j + pinfo, nil
		}

		d.lastOut = device.CopyAsync(d.qOut, d.a.Slice(j, n, j, j+jb), pd)

		if err := d.updateTrailingLower(pd, j, jb); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// factorPanelLower factors the panel's leading jb×jb block and solves the
// below-diagonal rows, inner block by inner block: unblocked Cholesky on the
// diagonal, triangular inversion of the resulting factor, and a multiply
// against the inverse in place of a forward substitution. Returns the local
// 1-based failure index, or 0.
func (d *driver[T]) factorPanelLower(pd mtx.Matrix[T], jb, m int) (int, error) {
	var pinfo int
	ib := d.ib
	for i := 0; i < jb; i += ib {
		i := i
		s := min(ib, jb-i)
		blk := pd.Slice(i, i+s, i, i+s)

		d.qComp.Launch(func() {
			if pinfo != 0 {
				return
			}
			if r := kern.Potf2(mtx.Lower, blk); r > 0 {
				pinfo = i + r
			}
		})

		if i+s >= jb && m <= i+s {
			continue
		}
		dinv := d.dinv.Matrix(s, s, s)
		if err := trtri.Invert(d.dev, d.qComp, mtx.Lower, mtx.NonUnit, blk, dinv, d.base); err != nil {
			return 0, err
		}
		if m > i+s {
			x := pd.Slice(i+s, m, i, i+s)
			w := d.wsolve.Matrix(m-i-s, s, m-i-s)
			d.qComp.Launch(func() {
				if pinfo != 0 {
					return
				}
				mtx.CopyInto(&w, &x)
				kern.Gemm(kern.NoTrans, kern.ConjTrans, mtx.OfReal[T](1), w, dinv, mtx.OfReal[T](0), x)
			})
		}
		if i+s < jb {
			w2 := jb - i - s
			lb := pd.Slice(i+s, i+s+w2, i, i+s)
			d.qComp.Launch(func() {
				if pinfo != 0 {
					return
				}
				kern.Herk(mtx.Lower, kern.NoTrans, -1, lb, 1, pd.Slice(i+s, i+s+w2, i+s, jb))
				if m > i+s+w2 {
					kern.Gemm(kern.NoTrans, kern.ConjTrans, mtx.OfReal[T](-1), pd.Slice(i+s+w2, m, i, i+s), lb, mtx.OfReal[T](1), pd.Slice(i+s+w2, m, i+s, jb))
				}
			})
		}
	}
	if err := d.qComp.Sync(); err != nil {
		return 0, err
	}
	return pinfo, nil
}

// updateTrailingLower applies A22 -= L21·L21ᴴ in device-sized sub-blocks.
// The first sub-block is the next panel's columns: it is updated into the
// alternate panel slot and retained there, so the next iteration skips its
// stage-in entirely.
func (d *driver[T]) updateTrailingLower(pd mtx.Matrix[T], j, jb int) error {
	n := d.n
	m := n - j
	first := j + jb
	if first >= n {
		return nil
	}

	// Look-ahead block. The wait covers the alternate slot's last copy-out
	// and every streamed write-back from earlier iterations into the host
	// region being staged.
	nextJb := min(d.nb, n-first)
	nslot := (j/d.nb + 1) % 2
	npv := d.panels[nslot].Matrix(n-first, nextJb, n-first)
	if ev := d.lastOut; ev != nil {
		d.qIn.WaitEvent(ev)
	}
	evIn := device.CopyAsync(d.qIn, npv, d.a.Slice(first, n, first, first+nextJb))
	d.qComp.WaitEvent(evIn)
	lBlk := pd.Slice(first-j, first-j+nextJb, 0, jb)
	d.qComp.Launch(func() {
		kern.Herk(mtx.Lower, kern.NoTrans, -1, lBlk, 1, npv.Slice(0, nextJb, 0, nextJb))
		if n > first+nextJb {
			kern.Gemm(kern.NoTrans, kern.ConjTrans, mtx.OfReal[T](-1), pd.Slice(first-j+nextJb, m, 0, jb), lBlk, mtx.OfReal[T](1), npv.Slice(nextJb, n-first, 0, nextJb))
		}
	})
	d.retained = true

	// Remaining trailing columns stream through the two update slots.
	for jc := first + nextJb; jc < n; jc += d.uw {
		w := min(d.uw, n-jc)
		rows := n - jc
		us := d.updSlot
		d.updSlot ^= 1
		uv := d.updView(us, rows, w)
		if ev := d.updBusy[us]; ev != nil {
			d.qIn.WaitEvent(ev)
		}
		evU := device.CopyAsync(d.qIn, uv, d.a.Slice(jc, n, jc, jc+w))
		d.qComp.WaitEvent(evU)
		lw := pd.Slice(jc-j, jc-j+w, 0, jb)
		evC := d.qComp.Launch(func() {
			kern.Herk(mtx.Lower, kern.NoTrans, -1, lw, 1, uv.Slice(0, w, 0, w))
			if rows > w {
				kern.Gemm(kern.NoTrans, kern.ConjTrans, mtx.OfReal[T](-1), pd.Slice(jc-j+w, m, 0, jb), lw, mtx.OfReal[T](1), uv.Slice(w, rows, 0, w))
			}
		})
		d.qOut.WaitEvent(evC)
		d.updBusy[us] = device.CopyAsync(d.qOut, d.a.Slice(jc, n, jc, jc+w), uv)
		d.lastOut = d.updBusy[us]
	}
	return nil
}
