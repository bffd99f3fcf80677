// Package api serves factorizations over HTTP. Jobs run synchronously: a
// POST blocks for the duration of the factorization and returns the
// completed record, which stays retrievable by ID.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/calvergne/panelkit/internal/kern"
	"github.com/calvergne/panelkit/pkg/dense"
	"github.com/calvergne/panelkit/pkg/device"
	"github.com/calvergne/panelkit/pkg/mtx"
)

type Server struct {
	dev     *device.Device
	tracker *device.Tracker
	store   *JobStore
	clock   func() time.Time
}

func NewServer(dev *device.Device, tracker *device.Tracker, store *JobStore) *Server {
	if store == nil {
		store = NewJobStore()
	}
	return &Server{
		dev:     dev,
		tracker: tracker,
		store:   store,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/factorizations", s.handleCreateFactorization)
	e.GET("/v1/factorizations/:id", s.handleGetFactorization)
	e.DELETE("/v1/factorizations/:id", s.handleDeleteFactorization)
	e.GET("/v1/device", s.handleDeviceInfo)
}

func (s *Server) handleCreateFactorization(c *echo.Context) error {
	req, err := decodeJSON[FactorizationRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	uplo, ok := parseUplo(req.Uplo)
	if !ok {
		return writeBadRequest(c, "uplo must be \"lower\" or \"upper\"")
	}
	if req.N <= 0 {
		return writeBadRequest(c, "n must be positive")
	}
	precision := req.Precision
	if precision == "" {
		precision = "float64"
	}
	if len(req.Matrix) > 0 {
		if precision != "float32" && precision != "float64" {
			return writeBadRequest(c, "matrix upload supports float32 and float64 precision")
		}
		if len(req.Matrix) != req.N*req.N {
			return writeBadRequest(c, "matrix must hold n*n column-major elements")
		}
	}

	job := &FactorizationJob{
		ID:         newJobID(),
		Object:     "factorization",
		CreatedAt:  s.clock().Unix(),
		Uplo:       strings.ToLower(req.Uplo),
		N:          req.N,
		Precision:  precision,
		PanelWidth: req.PanelWidth,
	}

	var runErr error
	switch precision {
	case "float32":
		runErr = runJob[float32](s.dev, uplo, &req, job)
	case "float64":
		runErr = runJob[float64](s.dev, uplo, &req, job)
	case "complex64":
		runErr = runJob[complex64](s.dev, uplo, &req, job)
	case "complex128":
		runErr = runJob[complex128](s.dev, uplo, &req, job)
	default:
		return writeBadRequest(c, "unknown precision "+precision)
	}

	switch {
	case runErr != nil:
		job.Status = "failed"
		job.Error = runErr.Error()
	case job.Info != 0:
		job.Status = "failed"
	default:
		job.Status = "completed"
	}
	s.store.Save(job)
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleGetFactorization(c *echo.Context) error {
	job, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "factorization not found")
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleDeleteFactorization(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "factorization not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "factorization.deleted",
		"deleted": true,
	})
}

func (s *Server) handleDeviceInfo(c *echo.Context) error {
	free, total := s.dev.MemInfo()
	info := DeviceInfo{
		Object:      "device",
		BudgetBytes: total,
		UsedBytes:   s.dev.Used(),
		FreeBytes:   free,
	}
	if s.tracker != nil {
		var stats AllocStats
		stats.Device.Count, stats.Device.Bytes = s.tracker.Live(device.ClassDevice)
		stats.Host.Count, stats.Host.Bytes = s.tracker.Live(device.ClassHost)
		stats.Pinned.Count, stats.Pinned.Bytes = s.tracker.Live(device.ClassPinned)
		info.Allocations = &stats
	}
	return c.JSON(http.StatusOK, info)
}

// runJob fills or converts the input, factors it, and records timing and
// (for generated matrices) throughput on the job.
func runJob[T mtx.Scalar](dev *device.Device, uplo mtx.Uplo, req *FactorizationRequest, job *FactorizationJob) error {
	n := req.N
	a := make([]T, n*n)
	m := mtx.FromSlice(n, n, n, a)
	uploaded := len(req.Matrix) > 0
	if uploaded {
		fromFloat64(a, req.Matrix)
	} else {
		mtx.FillHermitianPD(&m, req.Seed)
	}

	start := time.Now()
	info, err := dense.Cholesky(dev, uplo, n, a, n, dense.Options{
		PanelWidth: req.PanelWidth,
		Base:       req.Base,
	})
	elapsed := time.Since(start)
	if err != nil && info == 0 {
		return err
	}

	job.Info = info
	job.ElapsedMS = float64(elapsed.Microseconds()) / 1e3
	if info == 0 {
		job.GFlops = kern.PotrfFlops(n, mtx.IsComplex[T]()) / elapsed.Seconds() / 1e9
		if uploaded {
			job.Matrix = toFloat64(a)
		}
	}
	return nil
}

func parseUplo(s string) (mtx.Uplo, bool) {
	switch strings.ToLower(s) {
	case "lower", "l":
		return mtx.Lower, true
	case "upper", "u":
		return mtx.Upper, true
	default:
		return 0, false
	}
}

func fromFloat64[T mtx.Scalar](dst []T, src []float64) {
	for i, v := range src {
		dst[i] = mtx.OfReal[T](v)
	}
}

func toFloat64[T mtx.Scalar](src []T) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = mtx.Re(v)
	}
	return out
}
