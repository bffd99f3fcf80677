package api

// FactorizationRequest submits a Cholesky factorization job. When Matrix is
// omitted the server factors a generated random Hermitian positive-definite
// matrix of order N, which is the benchmarking mode; when Matrix is present
// it must hold N*N column-major elements and the factor is returned in the
// response.
type FactorizationRequest struct {
	Uplo       string    `json:"uplo"`
	N          int       `json:"n"`
	Precision  string    `json:"precision,omitempty"`
	Matrix     []float64 `json:"matrix,omitempty"`
	PanelWidth int       `json:"panel_width,omitempty"`
	Base       int       `json:"base,omitempty"`
	Seed       int64     `json:"seed,omitempty"`
}

// FactorizationJob is the stored record of a submitted factorization.
type FactorizationJob struct {
	ID         string    `json:"id"`
	Object     string    `json:"object"`
	CreatedAt  int64     `json:"created_at"`
	Status     string    `json:"status"`
	Uplo       string    `json:"uplo"`
	N          int       `json:"n"`
	Precision  string    `json:"precision"`
	PanelWidth int       `json:"panel_width,omitempty"`
	Info       int       `json:"info"`
	Error      string    `json:"error,omitempty"`
	ElapsedMS  float64   `json:"elapsed_ms"`
	GFlops     float64   `json:"gflops,omitempty"`
	Matrix     []float64 `json:"matrix,omitempty"`
}

// DeviceInfo reports the device budget and live allocations.
type DeviceInfo struct {
	Object      string      `json:"object"`
	BudgetBytes int64       `json:"budget_bytes"`
	UsedBytes   int64       `json:"used_bytes"`
	FreeBytes   int64       `json:"free_bytes"`
	Allocations *AllocStats `json:"allocations,omitempty"`
}

// AllocStats is the tracker's per-class live allocation accounting.
type AllocStats struct {
	Device AllocClass `json:"device"`
	Host   AllocClass `json:"host"`
	Pinned AllocClass `json:"pinned"`
}

type AllocClass struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// ResponseError is the error payload wrapped under the "error" key.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
