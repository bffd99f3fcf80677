package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/internal/logger"
	"github.com/calvergne/panelkit/pkg/dense"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

func invertCmd() *cli.Command {
	var (
		n       int64
		diagStr string
		seed    int64
	)

	flags := append(commonDeviceFlags(), precisionFlag(), uploCLIFlag(),
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "matrix order",
			Value:       1024,
			Destination: &n,
		},
		&cli.StringFlag{
			Name:        "diag",
			Usage:       "diagonal kind (nonunit, unit)",
			Value:       "nonunit",
			Destination: &diagStr,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "matrix generation seed",
			Value:       42,
			Destination: &seed,
		},
	)

	return &cli.Command{
		Name:  "invert",
		Usage: "Invert a triangular matrix and report the identity residual",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyDeviceConfig(cmd, LoadConfig())
			log := logger.New(newLogHandler())
			uplo, err := parseUplo(uploFlag)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			diag, err := parseDiag(diagStr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dev := device.Open(budgetMB << 20)
			switch precision {
			case "float32":
				err = runInvert[float32](dev, uplo, diag, int(n), seed, log)
			case "float64":
				err = runInvert[float64](dev, uplo, diag, int(n), seed, log)
			case "complex64":
				err = runInvert[complex64](dev, uplo, diag, int(n), seed, log)
			case "complex128":
				err = runInvert[complex128](dev, uplo, diag, int(n), seed, log)
			default:
				return cli.Exit(fmt.Sprintf("error: unknown precision %q", precision), 1)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

func runInvert[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, diag mtx.Diag, n int, seed int64, log logger.Logger) error {
	a := randTriangular[T](uplo, n, seed)
	inv := make([]T, n*n)

	start := time.Now()
	info, err := dense.TriTri(dev, uplo, diag, n, a.Data, n, inv, dense.Options{Base: int(baseBlock)})
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	if info != 0 {
		return fmt.Errorf("inversion failed: info=%d", info)
	}

	// Multiply the effective triangular matrix by its inverse and measure the
	// worst deviation from the identity.
	eff := a.Clone()
	if diag == mtx.Unit {
		for i := 0; i < n; i++ {
			eff.Set(i, i, mtx.OfReal[T](1))
		}
	}
	im := mtx.FromSlice(n, n, n, inv)
	prod := mtx.NewMatrix[T](n, n)
	kern.Gemm(kern.NoTrans, kern.NoTrans, mtx.OfReal[T](1), eff, im, mtx.OfReal[T](0), prod)

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

	log.Info("inverted", "n", n, "uplo", uplo.String(), "diag", diag.String(),
		"seconds", elapsed.Seconds(), "max_residual", worst)
	fmt.Printf("n=%d uplo=%s diag=%s time=%.3fs max|A*inv(A)-I|=%.2e\n",
		n, uplo, diag, elapsed.Seconds(), worst)
	return nil
}

// randTriangular builds a well-conditioned triangular matrix. Off-diagonal
// entries are damped by 1/(2n) so the inverse stays bounded even under a unit
// diagonal; the stored diagonal is pushed away from zero for the non-unit
// case.
func randTriangular[T mtx.Scalar](uplo mtx.Uplo, n int, seed int64) mtx.Matrix[T] {
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

func parseDiag(s string) (mtx.Diag, error) {
	switch s {
	case "nonunit", "n":
		return mtx.NonUnit, nil
	case "unit", "u":
		return mtx.Unit, nil
	default:
		return 0, fmt.Errorf("diag must be nonunit or unit, got %q", s)
	}
}
