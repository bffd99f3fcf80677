package dense

import (
	"errors"
	"math"
	"testing"

	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

func spd(n int, seed int64) []float64 {
	a := make([]float64, n*n)
	m := mtx.FromSlice(n, n, n, a)
	mtx.FillHermitianPD(&m, seed)
	return a
}

func TestCholeskyArgumentErrors(t *testing.T) {
	dev := device.Open(0)
	a := spd(8, 1)
	orig := append([]float64(nil), a...)

	cases := []struct {
		name string
		run  func() (int, error)
		want int
	}{
		{"bad uplo", func() (int, error) {
			return Cholesky(dev, mtx.Uplo(9), 8, a, 8, Options{})
		}, -1},
		{"negative n", func() (int, error) {
			return Cholesky(dev, mtx.Lower, -1, a, 8, Options{})
		}, -2},
		{"nil a", func() (int, error) {
			return Cholesky[float64](dev, mtx.Lower, 8, nil, 8, Options{})
		}, -3},
		{"short a", func() (int, error) {
			return Cholesky(dev, mtx.Lower, 8, a[:60], 8, Options{})
		}, -3},
		{"small lda", func() (int, error) {
			return Cholesky(dev, mtx.Lower, 8, a, 7, Options{})
		}, -4},
	}
	for _, tc := range cases {
		info, err := tc.run()
		if info != tc.want {
			t.Fatalf("%s: info = %d, want %d", tc.name, info, tc.want)
		}
		var argErr *ArgError
		if !errors.As(err, &argErr) || argErr.Pos != -tc.want {
			t.Fatalf("%s: err = %v, want ArgError{Pos: %d}", tc.name, err, -tc.want)
		}
	}

	// Rejected calls must leave the matrix untouched.
	for i := range a {
		if a[i] != orig[i] {
			t.Fatalf("matrix modified at %d by a rejected call", i)
		}
	}
}

func TestCholeskyZeroOrder(t *testing.T) {
	dev := device.Open(0)
	info, err := Cholesky[float64](dev, mtx.Lower, 0, nil, 1, Options{})
	if info != 0 || err != nil {
		t.Fatalf("Cholesky(n=0) = (%d, %v)", info, err)
	}
}

func TestCholeskyFactorAndReconstruct(t *testing.T) {
	n := 129
	for _, uplo := range []mtx.Uplo{mtx.Lower, mtx.Upper} {
		a := spd(n, 3)
		orig := append([]float64(nil), a...)

		dev := device.Open(0)
		info, err := Cholesky(dev, uplo, n, a, n, Options{})
		if info != 0 || err != nil {
			t.Fatalf("Cholesky(%v) = (%d, %v)", uplo, info, err)
		}

		// Reconstruct the factored triangle and compare with the input.
		m := mtx.FromSlice(n, n, n, a)
		om := mtx.FromSlice(n, n, n, orig)
		var worst float64
		for j := 0; j < n; j++ {
			lo, hi := j, n
			if uplo == mtx.Upper {
				lo, hi = 0, j+1
			}
			for i := lo; i < hi; i++ {
				var sum float64
				for l := 0; l <= min(i, j); l++ {
					if uplo == mtx.Lower {
						sum += m.At(i, l) * m.At(j, l)
					} else {
						sum += m.At(l, i) * m.At(l, j)
					}
				}
				if d := math.Abs(sum - om.At(i, j)); d > worst {
					worst = d
				}
			}
		}
		if worst > 1e-9 {
			t.Fatalf("Cholesky(%v): reconstruction error %g", uplo, worst)
		}
	}
}

func TestCholeskyNotPositiveDefinite(t *testing.T) {
	dev := device.Open(0)
	a := []float64{1, 2, 2, 1}
	info, err := Cholesky(dev, mtx.Lower, 2, a, 2, Options{})
	if info != 2 {
		t.Fatalf("info = %d, want 2", info)
	}
	var npd *NotPositiveDefiniteError
	if !errors.As(err, &npd) || npd.Index != 2 {
		t.Fatalf("err = %v, want NotPositiveDefiniteError{Index: 2}", err)
	}
}

func TestCholeskyBadBaseOption(t *testing.T) {
	dev := device.Open(0)
	a := spd(8, 5)
	info, err := Cholesky(dev, mtx.Lower, 8, a, 8, Options{Base: 48})
	if info != 0 || err == nil {
		t.Fatalf("expected an option error, got (%d, %v)", info, err)
	}
}

func TestTriTriArgumentErrors(t *testing.T) {
	dev := device.Open(0)
	a := make([]float64, 16)
	out := make([]float64, 16)
	for i := 0; i < 4; i++ {
		a[i*4+i] = 1
	}

	cases := []struct {
		name string
		run  func() (int, error)
		want int
	}{
		{"bad uplo", func() (int, error) {
			return TriTri(dev, mtx.Uplo(9), mtx.NonUnit, 4, a, 4, out, Options{})
		}, -1},
		{"bad diag", func() (int, error) {
			return TriTri(dev, mtx.Lower, mtx.Diag(9), 4, a, 4, out, Options{})
		}, -2},
		{"negative n", func() (int, error) {
			return TriTri(dev, mtx.Lower, mtx.NonUnit, -2, a, 4, out, Options{})
		}, -3},
		{"short a", func() (int, error) {
			return TriTri(dev, mtx.Lower, mtx.NonUnit, 4, a[:10], 4, out, Options{})
		}, -4},
		{"small lda", func() (int, error) {
			return TriTri(dev, mtx.Lower, mtx.NonUnit, 4, a, 3, out, Options{})
		}, -5},
		{"short out", func() (int, error) {
			return TriTri(dev, mtx.Lower, mtx.NonUnit, 4, a, 4, out[:8], Options{})
		}, -6},
	}
	for _, tc := range cases {
		info, err := tc.run()
		if info != tc.want {
			t.Fatalf("%s: info = %d, want %d", tc.name, info, tc.want)
		}
		var argErr *ArgError
		if !errors.As(err, &argErr) || argErr.Pos != -tc.want {
			t.Fatalf("%s: err = %v, want ArgError{Pos: %d}", tc.name, err, -tc.want)
		}
	}
}

func TestTriTriInverse(t *testing.T) {
	n := 80
	a := make([]float64, n*n)
	m := mtx.FromSlice(n, n, n, a)
	for j := 0; j < n; j++ {
		for i := j + 1; i < n; i++ {
			m.Set(i, j, 0.5/float64(n))
		}
		m.Set(j, j, 2)
	}
	out := make([]float64, n*n)

	dev := device.Open(0)
	info, err := TriTri(dev, mtx.Lower, mtx.NonUnit, n, a, n, out, Options{Base: 32})
	if info != 0 || err != nil {
		t.Fatalf("TriTri = (%d, %v)", info, err)
	}

	// A * inv(A) must be the identity.
	om := mtx.FromSlice(n, n, n, out)
	var worst float64
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var sum float64
			for l := 0; l < n; l++ {
				sum += m.At(i, l) * om.At(l, j)
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if d := math.Abs(sum - want); d > worst {
				worst = d
			}
		}
	}
	if worst > 1e-12 {
		t.Fatalf("identity residual %g", worst)
	}

	// Device memory must be fully returned.
	if used := dev.Used(); used != 0 {
		t.Fatalf("device memory leaked: %d bytes", used)
	}
}

func TestTriTriZeroOrder(t *testing.T) {
	dev := device.Open(0)
	info, err := TriTri[float64](dev, mtx.Upper, mtx.Unit, 0, nil, 1, nil, Options{})
	if info != 0 || err != nil {
		t.Fatalf("TriTri(n=0) = (%d, %v)", info, err)
	}
}
