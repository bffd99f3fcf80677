package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/internal/logger"
	"github.com/calvergne/panelkit/pkg/dense"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

type benchResult struct {
	N         int     `json:"n"`
	Seconds   float64 `json:"seconds"`
	GFlops    float64 `json:"gflops"`
	Info      int     `json:"info"`
	Residual  float64 `json:"residual,omitempty"`
	Checked   bool    `json:"checked"`
	CheckOK   bool    `json:"check_ok"`
	Precision string  `json:"precision"`
}

func benchCmd() *cli.Command {
	var (
		sizesArg string
		check    bool
		jsonOut  bool
		seed     int64
	)

	flags := append(commonDeviceFlags(), precisionFlag(), uploCLIFlag(),
		&cli.StringFlag{
			Name:        "sizes",
			Usage:       "comma-separated matrix orders to sweep",
			Value:       "1024,2048,3072,4032",
			Destination: &sizesArg,
		},
		&cli.BoolFlag{
			Name:        "check",
			Usage:       "compare against the host reference factorization",
			Destination: &check,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "emit results as JSON instead of a table",
			Destination: &jsonOut,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "matrix generation seed",
			Value:       42,
			Destination: &seed,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Benchmark the out-of-core Cholesky driver",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyDeviceConfig(cmd, LoadConfig())
			log := logger.New(newLogHandler())
			sizes, err := parseSizes(sizesArg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			uplo, err := parseUplo(uploFlag)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dev := device.Open(budgetMB << 20)
			var tracker *device.Tracker
			if trackAllocs {
				tracker = device.NewTracker()
				dev.SetTracker(tracker)
			}

			var results []benchResult
			switch precision {
			case "float32":
				results, err = runBench[float32](dev, uplo, sizes, seed, check, log)
			case "float64":
				results, err = runBench[float64](dev, uplo, sizes, seed, check, log)
			case "complex64":
				results, err = runBench[complex64](dev, uplo, sizes, seed, check, log)
			case "complex128":
				results, err = runBench[complex128](dev, uplo, sizes, seed, check, log)
			default:
				return cli.Exit(fmt.Sprintf("error: unknown precision %q", precision), 1)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printBenchTable(results, check)
			}

			if tracker != nil {
				for _, leak := range tracker.LeakReport() {
					log.Warn("live allocation at exit", "alloc", leak)
				}
			}
			return nil
		},
	}
}

func runBench[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, sizes []int, seed int64, check bool, log logger.Logger) ([]benchResult, error) {
	opts := dense.Options{PanelWidth: int(panelWidth), Base: int(baseBlock)}

	// Warm-up at the smallest size so queue spin-up stays out of the sweep.
	{
		n := sizes[0]
		a := make([]T, n*n)
		m := mtx.FromSlice(n, n, n, a)
		mtx.FillHermitianPD(&m, seed)
		if _, err := dense.Cholesky(dev, uplo, n, a, n, opts); err != nil {
			return nil, err
		}
	}

	results := make([]benchResult, 0, len(sizes))
	for _, n := range sizes {
		log.Info("factoring", "n", n, "precision", precision, "uplo", uplo.String())
		a := make([]T, n*n)
		m := mtx.FromSlice(n, n, n, a)
		mtx.FillHermitianPD(&m, seed)

		var ref mtx.Matrix[T]
		if check {
			ref = m.Clone()
			if info := kern.PotrfHost(uplo, ref); info != 0 {
				return nil, fmt.Errorf("reference factorization failed at n=%d: info=%d", n, info)
			}
		}

		start := time.Now()
		info, err := dense.Cholesky(dev, uplo, n, a, n, opts)
		elapsed := time.Since(start)
		if err != nil && info == 0 {
			return nil, err
		}

		r := benchResult{
			N:         n,
			Seconds:   elapsed.Seconds(),
			Info:      info,
			Precision: precision,
		}
		if info == 0 {
			r.GFlops = kern.PotrfFlops(n, mtx.IsComplex[T]()) / elapsed.Seconds() / 1e9
		}
		if check && info == 0 {
			r.Checked = true
			diff := ref.Clone()
			subTriangle(&diff, &m, uplo)
			r.Residual = mtx.TriFrobeniusNorm(&diff, uplo) / mtx.TriFrobeniusNorm(&ref, uplo)
			r.CheckOK = r.Residual < 60*float64(n)*mtx.Eps[T]()
		}
		results = append(results, r)
	}
	return results, nil
}

func subTriangle[T mtx.Scalar](dst, src *mtx.Matrix[T], uplo mtx.Uplo) {
	n := dst.Rows
	for j := 0; j < n; j++ {
		lo, hi := j, n
		if uplo == mtx.Upper {
			lo, hi = 0, j+1
		}
		for i := lo; i < hi; i++ {
			dst.Set(i, j, dst.At(i, j)-src.At(i, j))
		}
	}
}

func printBenchTable(results []benchResult, check bool) {
	if check {
		fmt.Printf("%8s %12s %10s %16s %8s\n", "n", "time(s)", "GFlop/s", "|R|_F/|A|_F", "status")
	} else {
		fmt.Printf("%8s %12s %10s\n", "n", "time(s)", "GFlop/s")
	}
	for _, r := range results {
		if r.Info != 0 {
			fmt.Printf("%8d %12.3f %10s   info=%d\n", r.N, r.Seconds, "-", r.Info)
			continue
		}
		if check {
			status := "ok"
			if !r.CheckOK {
				status = "failed"
			}
			fmt.Printf("%8d %12.3f %10.2f %16.2e %8s\n", r.N, r.Seconds, r.GFlops, r.Residual, status)
		} else {
			fmt.Printf("%8d %12.3f %10.2f\n", r.N, r.Seconds, r.GFlops)
		}
	}
}

func parseSizes(arg string) ([]int, error) {
	parts := strings.Split(arg, ",")
	sizes := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid size %q", p)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no sizes given")
	}
	return sizes, nil
}

func parseUplo(s string) (mtx.Uplo, error) {
	switch strings.ToLower(s) {
	case "lower", "l":
		return mtx.Lower, nil
	case "upper", "u":
		return mtx.Upper, nil
	default:
		return 0, fmt.Errorf("uplo must be lower or upper, got %q", s)
	}
}
