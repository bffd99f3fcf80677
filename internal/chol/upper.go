package chol

import (
	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/internal/trtri"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// factorUpper is the Uᴴ·U mirror of factorLower: row panels processed top to
// bottom, each spanning the full remaining width, with the trailing update
// streamed over row blocks below the panel.
func (d *driver[T]) factorUpper() (int, error) {
	n, nb := d.n, d.nb
	for j := 0; j < n; j += nb {
		jb := min(nb, n-j)
		m := n - j
		slot := (j / nb) % 2
		pd := d.panels[slot].Matrix(jb, m, jb)

		if !d.retained {
			// Order after every pending write-back: the slot being reused
			// and the host rows about to be read.
			if ev := d.lastOut; ev != nil {
				d.qIn.WaitEvent(ev)
			}
			evIn := device.CopyAsync(d.qIn, pd, d.a.Slice(j, j+jb, j, n))
			d.qComp.WaitEvent(evIn)
		}
		d.retained = false

		pinfo, err := d.factorPanelUpper(pd, jb, m)
		if err != nil {
			return 0, err
		}
		if pinfo > 0 {
			if pref := pinfo - 1; pref > 0 {
				ev := device.CopyAsync(d.qOut, d.a.Slice(j, j+pref, j, n), pd.Slice(0, pref, 0, m))
				if werr := ev.Wait(); werr != nil {
					return 0, werr
				}
			}
			return j + pinfo, nil
		}

		d.lastOut = device.CopyAsync(d.qOut, d.a.Slice(j, j+jb, j, n), pd)

		if err := d.updateTrailingUpper(pd, j, jb); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// factorPanelUpper factors the panel's leading jb×jb block and solves the
// right-of-diagonal columns against the inverted factor, inner block by
// inner block.
func (d *driver[T]) factorPanelUpper(pd mtx.Matrix[T], jb, m int) (int, error) {
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
			if r := kern.Potf2(mtx.Upper, blk); r > 0 {
				pinfo = i + r
			}
		})

		if i+s >= jb && m <= i+s {
			continue
		}
		dinv := d.dinv.Matrix(s, s, s)
		if err := trtri.Invert(d.dev, d.qComp, mtx.Upper, mtx.NonUnit, blk, dinv, d.base); err != nil {
			return 0, err
		}
		if m > i+s {
			x := pd.Slice(i, i+s, i+s, m)
			w := d.wsolve.Matrix(s, m-i-s, s)
			d.qComp.Launch(func() {
				if pinfo != 0 {
					return
				}
				mtx.CopyInto(&w, &x)
				kern.Gemm(kern.ConjTrans, kern.NoTrans, mtx.OfReal[T](1), dinv, w, mtx.OfReal[T](0), x)
			})
		}
		if i+s < jb {
			w2 := jb - i - s
			ub := pd.Slice(i, i+s, i+s, i+s+w2)
			d.qComp.Launch(func() {
				if pinfo != 0 {
					return
				}
				kern.Herk(mtx.Upper, kern.ConjTrans, -1, ub, 1, pd.Slice(i+s, i+s+w2, i+s, i+s+w2))
				if m > i+s+w2 {
					kern.Gemm(kern.ConjTrans, kern.NoTrans, mtx.OfReal[T](-1), ub, pd.Slice(i, i+s, i+s+w2, m), mtx.OfReal[T](1), pd.Slice(i+s, i+s+w2, i+s+w2, m))
				}
			})
		}
	}
	if err := d.qComp.Sync(); err != nil {
		return 0, err
	}
	return pinfo, nil
}

// updateTrailingUpper applies A22 -= U12ᴴ·U12 in row blocks, retaining the
// next panel's rows on device.
func (d *driver[T]) updateTrailingUpper(pd mtx.Matrix[T], j, jb int) error {
	n := d.n
	m := n - j
	first := j + jb
	if first >= n {
		return nil
	}

	nextJb := min(d.nb, n-first)
	nslot := (j/d.nb + 1) % 2
	npv := d.panels[nslot].Matrix(nextJb, n-first, nextJb)
	if ev := d.lastOut; ev != nil {
		d.qIn.WaitEvent(ev)
	}
	evIn := device.CopyAsync(d.qIn, npv, d.a.Slice(first, first+nextJb, first, n))
	d.qComp.WaitEvent(evIn)
	uBlk := pd.Slice(0, jb, first-j, first-j+nextJb)
	d.qComp.Launch(func() {
		kern.Herk(mtx.Upper, kern.ConjTrans, -1, uBlk, 1, npv.Slice(0, nextJb, 0, nextJb))
		if n > first+nextJb {
			kern.Gemm(kern.ConjTrans, kern.NoTrans, mtx.OfReal[T](-1), uBlk, pd.Slice(0, jb, first-j+nextJb, m), mtx.OfReal[T](1), npv.Slice(0, nextJb, nextJb, n-first))
		}
	})
	d.retained = true

	for jr := first + nextJb; jr < n; jr += d.uw {
		w := min(d.uw, n-jr)
		cols := n - jr
		us := d.updSlot
		d.updSlot ^= 1
		uv := d.updView(us, w, cols)
		if ev := d.updBusy[us]; ev != nil {
			d.qIn.WaitEvent(ev)
		}
		evU := device.CopyAsync(d.qIn, uv, d.a.Slice(jr, jr+w, jr, n))
		d.qComp.WaitEvent(evU)
		ublk := pd.Slice(0, jb, jr-j, jr-j+w)
		evC := d.qComp.Launch(func() {
			kern.Herk(mtx.Upper, kern.ConjTrans, -1, ublk, 1, uv.Slice(0, w, 0, w))
			if cols > w {
				kern.Gemm(kern.ConjTrans, kern.NoTrans, mtx.OfReal[T](-1), ublk, pd.Slice(0, jb, jr-j+w, m), mtx.OfReal[T](1), uv.Slice(0, w, w, cols))
			}
		})
		d.qOut.WaitEvent(evC)
		d.updBusy[us] = device.CopyAsync(d.qOut, d.a.Slice(jr, jr+w, jr, n), uv)
		d.lastOut = d.updBusy[us]
	}
	return nil
}
