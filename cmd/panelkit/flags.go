package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/calvergne/panelkit/internal/logger"
)

var (
	budgetMB    int64
	panelWidth  int64
	baseBlock   int64
	precision   string
	uploFlag    string
	logLevel    string
	logFormat   string
	trackAllocs bool
)

func commonDeviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "budget",
			Aliases:     []string{"b"},
			Usage:       "device memory budget in MiB (0 = derive from free host memory)",
			Value:       0,
			Destination: &budgetMB,
		},
		&cli.Int64Flag{
			Name:        "panel",
			Usage:       "panel width in columns (0 = derive from budget)",
			Value:       0,
			Destination: &panelWidth,
		},
		&cli.Int64Flag{
			Name:        "base",
			Usage:       "triangular-inversion base block size (16, 32, or 64)",
			Value:       16,
			Destination: &baseBlock,
		},
		&cli.BoolFlag{
			Name:        "track-allocs",
			Usage:       "account live allocations and report leaks on exit",
			Destination: &trackAllocs,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

func precisionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "precision",
		Aliases:     []string{"t"},
		Usage:       "scalar type (float32, float64, complex64, complex128)",
		Value:       "float64",
		Destination: &precision,
	}
}

func uploCLIFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "uplo",
		Usage:       "triangle to factor (lower, upper)",
		Value:       "lower",
		Destination: &uploFlag,
	}
}

func newLogHandler() slog.Handler {
	level := logger.ParseLevel(logLevel)
	if logFormat == "json" {
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return logger.NewPrettyHandler(os.Stderr, level)
}
