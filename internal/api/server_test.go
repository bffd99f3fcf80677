package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/calvergne/panelkit/pkg/device"
)

func newTestEcho() (*echo.Echo, *device.Tracker) {
	tracker := device.NewTracker()
	dev := device.Open(64 << 20)
	dev.SetTracker(tracker)
	server := NewServer(dev, tracker, NewJobStore())
	e := echo.New()
	server.Register(e)
	return e, tracker
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFactorizationLifecycle(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/factorizations", `{"uplo":"lower","n":96,"seed":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var job FactorizationJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("expected job id")
	}
	if job.Status != "completed" {
		t.Fatalf("expected completed status, got %q (error %q)", job.Status, job.Error)
	}
	if job.Info != 0 {
		t.Fatalf("expected info 0, got %d", job.Info)
	}
	if job.GFlops <= 0 {
		t.Fatalf("expected positive throughput, got %v", job.GFlops)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/factorizations/"+job.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d body=%s", getRec.Code, getRec.Body.String())
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/factorizations/"+job.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d body=%s", delRec.Code, delRec.Body.String())
	}
	if !strings.Contains(delRec.Body.String(), `"deleted":true`) {
		t.Fatalf("delete response missing deleted=true: %s", delRec.Body.String())
	}

	gone := doJSON(t, e, http.MethodGet, "/v1/factorizations/"+job.ID, "")
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d body=%s", gone.Code, gone.Body.String())
	}
}

func TestFactorizationUploadReturnsFactor(t *testing.T) {
	t.Parallel()

	// 3x3 SPD matrix with a known Cholesky factor.
	a := []float64{
		4, 12, -16,
		12, 37, -43,
		-16, -43, 98,
	}
	want := []float64{
		2, 6, -8,
		0, 1, 5,
		0, 0, 3,
	}

	body, err := json.Marshal(FactorizationRequest{Uplo: "lower", N: 3, Matrix: a})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	e, _ := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/factorizations", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var job FactorizationJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if len(job.Matrix) != 9 {
		t.Fatalf("expected 9 factor elements, got %d", len(job.Matrix))
	}
	for j := 0; j < 3; j++ {
		for i := j; i < 3; i++ {
			got := job.Matrix[j*3+i]
			if math.Abs(got-want[j*3+i]) > 1e-12 {
				t.Fatalf("factor[%d,%d] = %v, want %v", i, j, got, want[j*3+i])
			}
		}
	}
}

func TestFactorizationValidationErrors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho()
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad uplo", `{"uplo":"diag","n":8}`, "uplo must be"},
		{"zero n", `{"uplo":"lower","n":0}`, "n must be positive"},
		{"short matrix", `{"uplo":"lower","n":4,"matrix":[1,2,3]}`, "n*n column-major"},
		{"complex upload", `{"uplo":"lower","n":2,"precision":"complex128","matrix":[1,0,0,1]}`, "float32 and float64"},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/factorizations", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), tc.want) {
			t.Fatalf("%s: unexpected error body: %s", tc.name, rec.Body.String())
		}
	}
}

func TestFactorizationNotPositiveDefinite(t *testing.T) {
	t.Parallel()

	// Indefinite: second leading minor is negative.
	body := `{"uplo":"lower","n":2,"matrix":[1,2,2,1]}`
	e, _ := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/factorizations", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var job FactorizationJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != "failed" {
		t.Fatalf("expected failed status, got %q", job.Status)
	}
	if job.Info != 2 {
		t.Fatalf("expected info 2, got %d", job.Info)
	}
	if len(job.Matrix) != 0 {
		t.Fatalf("failed job should not return a factor")
	}
}

func TestDeviceInfoEndpoint(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho()
	rec := doJSON(t, e, http.MethodGet, "/v1/device", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("device status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var info DeviceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode device info: %v", err)
	}
	if info.BudgetBytes != 64<<20 {
		t.Fatalf("budget = %d, want %d", info.BudgetBytes, 64<<20)
	}
	if info.Allocations == nil {
		t.Fatalf("expected allocation stats with tracker attached")
	}
	if info.Allocations.Device.Count != 0 {
		t.Fatalf("expected no live device allocations, got %d", info.Allocations.Device.Count)
	}
	if got := info.UsedBytes; got != 0 {
		t.Fatalf("expected no used bytes at rest, got %d", got)
	}
}
