package trtri

import (
	"math/rand"
	"testing"

	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

// randTri builds a well-conditioned triangular test matrix: damped
// off-diagonal entries and a diagonal pushed away from zero.
func randTri[T mtx.Scalar](uplo mtx.Uplo, n int, seed int64) mtx.Matrix[T] {
	rng := rand.New(rand.NewSource(seed))
	m := mtx.NewMatrix[T](n, n)
	damp := mtx.OfReal[T](1 / (2 * float64(n)))
	for j := 0; j < n; j++ {
		lo, hi := j, n
		if uplo == mtx.Upper {
			lo, hi = 0, j+1
		}
		for i := lo; i < hi; i++ {
			m.Set(i, j, mtx.RandScalar[T](rng)*damp)
		}
		m.Set(j, j, mtx.OfReal[T](2)+mtx.RandScalar[T](rng))
	}
	return m
}

// invertOnDevice stages a onto the device, runs the engine, and returns the
// inverse staged back to the host.
func invertOnDevice[T mtx.Scalar](t *testing.T, uplo mtx.Uplo, diag mtx.Diag, a mtx.Matrix[T], base int) mtx.Matrix[T] {
	t.Helper()
	n := a.Rows
	dev := device.Open(0)
	q := dev.NewQueue()
	defer q.Close()

	bufA, err := device.Malloc[T](dev, n*n)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	defer device.Free(dev, bufA)
	bufI, err := device.Malloc[T](dev, n*n)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	defer device.Free(dev, bufI)

	da := bufA.Matrix(n, n, n)
	di := bufI.Matrix(n, n, n)
	device.CopyAsync(q, da, a)
	if err := Invert(dev, q, uplo, diag, da, di, base); err != nil {
		t.Fatalf("Invert: %v", err)
	}
	out := mtx.NewMatrix[T](n, n)
	if err := device.Copy(q, out, di); err != nil {
		t.Fatalf("copy back: %v", err)
	}
	return out
}

// residual computes max |A_eff * X - I| where A_eff applies the unit-diagonal
// convention.
func residual[T mtx.Scalar](a, x mtx.Matrix[T], diag mtx.Diag) float64 {
	n := a.Rows
	eff := a.Clone()
	if diag == mtx.Unit {
		for i := 0; i < n; i++ {
			eff.Set(i, i, mtx.OfReal[T](1))
		}
	}
	prod := mtx.NewMatrix[T](n, n)
	kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), eff, x, mtx.OfReal[T](0), prod)

	var worst float64
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			want := mtx.OfReal[T](0)
			if i == j {
				want = mtx.OfReal[T](1)
			}
			if d := mtx.Abs(prod.At(i, j) - want); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func TestInvertSweep(t *testing.T) {
	sizes := []int{15, 16, 17, 63, 64, 65, 129}
	for _, n := range sizes {
		for _, base := range BaseSizes {
			for _, uplo := range []mtx.Uplo{mtx.Lower, mtx.Upper} {
				for _, diag := range []mtx.Diag{mtx.NonUnit, mtx.Unit} {
					a := randTri[float64](uplo, n, int64(n*100+base))
					x := invertOnDevice(t, uplo, diag, a, base)
					tol := 50 * float64(n) * mtx.Eps[float64]()
					if r := residual(a, x, diag); r > tol {
						t.Fatalf("n=%d base=%d %v %v: residual %g > %g", n, base, uplo, diag, r, tol)
					}
				}
			}
		}
	}
}

func TestInvertComplex(t *testing.T) {
	for _, uplo := range []mtx.Uplo{mtx.Lower, mtx.Upper} {
		a := randTri[complex128](uplo, 130, 7)
		x := invertOnDevice(t, uplo, mtx.NonUnit, a, 32)
		tol := 50 * 130 * mtx.Eps[complex128]()
		if r := residual(a, x, mtx.NonUnit); r > tol {
			t.Fatalf("%v: residual %g > %g", uplo, r, tol)
		}
	}
}

func TestInvertFloat32(t *testing.T) {
	a := randTri[float32](mtx.Lower, 96, 3)
	x := invertOnDevice(t, mtx.Lower, mtx.NonUnit, a, 16)
	tol := 50 * 96 * mtx.Eps[float32]()
	if r := residual(a, x, mtx.NonUnit); r > tol {
		t.Fatalf("residual %g > %g", r, tol)
	}
}

func TestInvertOffTriangleStaysZero(t *testing.T) {
	a := randTri[float64](mtx.Lower, 40, 5)
	x := invertOnDevice(t, mtx.Lower, mtx.NonUnit, a, 16)
	for j := 0; j < 40; j++ {
		for i := 0; i < j; i++ {
			if x.At(i, j) != 0 {
				t.Fatalf("inverse has nonzero above diagonal at (%d,%d): %v", i, j, x.At(i, j))
			}
		}
	}
}

func TestUnitDiagNeverReadsDiagonal(t *testing.T) {
	// Poison the stored diagonal; a unit-diagonal inversion must ignore it.
	a := randTri[float64](mtx.Lower, 33, 9)
	for i := 0; i < 33; i++ {
		a.Set(i, i, 0)
	}
	x := invertOnDevice(t, mtx.Lower, mtx.Unit, a, 16)
	tol := 50 * 33 * mtx.Eps[float64]()
	if r := residual(a, x, mtx.Unit); r > tol {
		t.Fatalf("residual %g > %g", r, tol)
	}
}

func TestInvertBadBasePanics(t *testing.T) {
	dev := device.Open(0)
	q := dev.NewQueue()
	defer q.Close()
	a := mtx.NewMatrix[float64](8, 8)
	x := mtx.NewMatrix[float64](8, 8)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unsupported base size")
		}
	}()
	_ = Invert(dev, q, mtx.Lower, mtx.NonUnit, a, x, 48)
}

func TestInvertFailedQueueFreesWorkspace(t *testing.T) {
	dev := device.Open(0)
	q := dev.NewQueue()
	defer q.Close()

	// n=129 with base 16 reaches a doubling level above 64, so Invert
	// reserves device workspace.
	n := 129
	buf, err := device.Malloc[float64](dev, 2*n*n)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	defer device.Free(dev, buf)
	a := buf.Matrix(n, n, n)
	x := buf.MatrixAt(n*n, n, n, n)

	q.Launch(func() { panic("injected kernel failure") })
	used := dev.Used()
	if err := Invert(dev, q, mtx.Lower, mtx.NonUnit, a, x, 16); err == nil {
		t.Fatalf("Invert must surface the queue failure")
	}
	if got := dev.Used(); got != used {
		t.Fatalf("workspace still reserved after failure: used %d, want %d", got, used)
	}
}

func TestValidBase(t *testing.T) {
	for _, s := range BaseSizes {
		if !ValidBase(s) {
			t.Fatalf("base %d must be valid", s)
		}
	}
	for _, s := range []int{0, 8, 48, 128} {
		if ValidBase(s) {
			t.Fatalf("base %d must be invalid", s)
		}
	}
}

func TestStrategySelection(t *testing.T) {
	if _, ok := strategyFor[float64](16).(twoPhase[float64]); !ok {
		t.Fatalf("jb=16 must use the two-phase strategy")
	}
	if _, ok := strategyFor[float64](64).(twoPhase[float64]); !ok {
		t.Fatalf("jb=64 must use the two-phase strategy")
	}
	if _, ok := strategyFor[float64](128).(threePhase[float64]); !ok {
		t.Fatalf("jb=128 must use the three-phase strategy")
	}
}
