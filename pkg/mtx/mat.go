// Package mtx holds the matrix descriptor and scalar primitives shared by the
// factorization drivers and the device kernels.
//
// Matrices are column-major with an explicit leading dimension, matching the
// storage the staging layer moves between host and device. Triangular and
// Hermitian matrices store one half; the other half is never read.
package mtx

import (
	"math"
	"math/rand"
)

// Uplo selects which triangular half of a Hermitian or triangular matrix is
// meaningful.
type Uplo int

const (
	Lower Uplo = iota
	Upper
)

// Valid reports whether u is one of the two defined tags.
func (u Uplo) Valid() bool { return u == Lower || u == Upper }

func (u Uplo) String() string {
	switch u {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	default:
		return "uplo(invalid)"
	}
}

// Diag indicates whether a triangular matrix has an implicit all-ones
// diagonal.
type Diag int

const (
	NonUnit Diag = iota
	Unit
)

// Valid reports whether d is one of the two defined tags.
func (d Diag) Valid() bool { return d == NonUnit || d == Unit }

func (d Diag) String() string {
	switch d {
	case NonUnit:
		return "nonunit"
	case Unit:
		return "unit"
	default:
		return "diag(invalid)"
	}
}

// Loc tags where a matrix buffer lives. A logical copy resides in exactly one
// location at a time.
type Loc int

const (
	HostMem Loc = iota
	PinnedMem
	DeviceMem
)

// Matrix is a column-major matrix descriptor. Stride is the leading dimension,
// the element distance between the starts of consecutive columns, and must be
// at least max(1, Rows) for the descriptor to be valid.
//
// Matrix performs no bounds checking beyond what Go slices enforce; callers
// that index out of range will panic.
type Matrix[T Scalar] struct {
	Rows, Cols int
	Stride     int
	Loc        Loc
	Data       []T
}

// NewMatrix allocates a zeroed host-resident r×c matrix with Stride = max(1, r).
func NewMatrix[T Scalar](r, c int) Matrix[T] {
	if r < 0 || c < 0 {
		panic("mtx: negative dimension")
	}
	ld := r
	if ld < 1 {
		ld = 1
	}
	return Matrix[T]{
		Rows:   r,
		Cols:   c,
		Stride: ld,
		Loc:    HostMem,
		Data:   make([]T, ld*c),
	}
}

// FromSlice wraps existing column-major data in a descriptor. The slice must
// hold at least ld*(c-1)+r elements when c > 0.
func FromSlice[T Scalar](r, c, ld int, data []T) Matrix[T] {
	if r < 0 || c < 0 {
		panic("mtx: negative dimension")
	}
	if ld < r || ld < 1 {
		panic("mtx: leading dimension too small")
	}
	if c > 0 && len(data) < ld*(c-1)+r {
		panic("mtx: slice too short for shape")
	}
	return Matrix[T]{Rows: r, Cols: c, Stride: ld, Loc: HostMem, Data: data}
}

// At returns the element at row i, column j.
func (m *Matrix[T]) At(i, j int) T { return m.Data[j*m.Stride+i] }

// Set stores v at row i, column j.
func (m *Matrix[T]) Set(i, j int, v T) { m.Data[j*m.Stride+i] = v }

// Col returns the j-th column as a slice of length Rows. Mutations write
// through to the matrix.
func (m *Matrix[T]) Col(j int) []T {
	start := j * m.Stride
	return m.Data[start : start+m.Rows]
}

// Slice returns a view of rows i0..i1 and columns j0..j1 (half-open) sharing
// the underlying buffer.
func (m *Matrix[T]) Slice(i0, i1, j0, j1 int) Matrix[T] {
	if i0 < 0 || i1 < i0 || i1 > m.Rows || j0 < 0 || j1 < j0 || j1 > m.Cols {
		panic("mtx: slice bounds out of range")
	}
	v := Matrix[T]{
		Rows:   i1 - i0,
		Cols:   j1 - j0,
		Stride: m.Stride,
		Loc:    m.Loc,
	}
	if v.Rows == 0 || v.Cols == 0 {
		return v
	}
	start := j0*m.Stride + i0
	end := (j1-1)*m.Stride + i1
	v.Data = m.Data[start:end]
	return v
}

// Clone deep-copies the r×c window of m into a fresh host matrix with a tight
// stride.
func (m *Matrix[T]) Clone() Matrix[T] {
	out := NewMatrix[T](m.Rows, m.Cols)
	CopyInto(&out, m)
	return out
}

// CopyInto copies src's r×c window into dst. Shapes must match; strides may
// differ.
func CopyInto[T Scalar](dst, src *Matrix[T]) {
	if dst.Rows != src.Rows || dst.Cols != src.Cols {
		panic("mtx: shape mismatch")
	}
	for j := 0; j < src.Cols; j++ {
		copy(dst.Col(j), src.Col(j))
	}
}

// FillRand fills m with reproducible pseudo-random entries in (-0.5, 0.5) per
// component.
func FillRand[T Scalar](m *Matrix[T], seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for j := 0; j < m.Cols; j++ {
		col := m.Col(j)
		for i := range col {
			col[i] = RandScalar[T](rng)
		}
	}
}

// FillHermitianPD fills m (n×n) with a random Hermitian matrix whose diagonal
// is boosted by n, making it comfortably positive definite. Both halves are
// populated so reference and device paths can read either.
func FillHermitianPD[T Scalar](m *Matrix[T], seed int64) {
	if m.Rows != m.Cols {
		panic("mtx: matrix not square")
	}
	FillRand(m, seed)
	n := m.Rows
	for i := 0; i < n; i++ {
		m.Set(i, i, OfReal[T](Re(m.At(i, i))+float64(n)))
		for j := 0; j < i; j++ {
			m.Set(i, j, Conj(m.At(j, i)))
		}
	}
}

// FrobeniusNorm returns the Frobenius norm of the r×c window of m.
func FrobeniusNorm[T Scalar](m *Matrix[T]) float64 {
	var sum float64
	for j := 0; j < m.Cols; j++ {
		for _, v := range m.Col(j) {
			sum += AbsSq(v)
		}
	}
	return math.Sqrt(sum)
}

// TriFrobeniusNorm returns the Frobenius norm over one triangular half,
// counting the diagonal once.
func TriFrobeniusNorm[T Scalar](m *Matrix[T], uplo Uplo) float64 {
	var sum float64
	for j := 0; j < m.Cols; j++ {
		lo, hi := 0, j+1
		if uplo == Lower {
			lo, hi = j, m.Rows
		}
		col := m.Col(j)
		for i := lo; i < hi && i < len(col); i++ {
			sum += AbsSq(col[i])
		}
	}
	return math.Sqrt(sum)
}
