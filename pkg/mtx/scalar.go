package mtx

import (
	"math"
	"math/cmplx"
	"math/rand"
)

// Scalar is the constraint covering the four supported precisions: single and
// double, real and complex. Every kernel in the library is instantiated over
// this constraint rather than generated per precision.
type Scalar interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// Conj returns the complex conjugate of x. For real scalars it is the
// identity.
func Conj[T Scalar](x T) T {
	switch v := any(x).(type) {
	case complex64:
		return any(complex(real(v), -imag(v))).(T)
	case complex128:
		return any(cmplx.Conj(v)).(T)
	default:
		return x
	}
}

// Re returns the real part of x as a float64.
func Re[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case complex64:
		return float64(real(v))
	default:
		return real(any(x).(complex128))
	}
}

// OfReal converts a real value into T with zero imaginary part.
func OfReal[T Scalar](r float64) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(float32(r)).(T)
	case float64:
		return any(r).(T)
	case complex64:
		return any(complex(float32(r), 0)).(T)
	default:
		return any(complex(r, 0)).(T)
	}
}

// Abs returns |x| as a float64.
func Abs[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case float32:
		return math.Abs(float64(v))
	case float64:
		return math.Abs(v)
	case complex64:
		return cmplx.Abs(complex128(v))
	default:
		return cmplx.Abs(any(x).(complex128))
	}
}

// AbsSq returns |x|^2 as a float64 without the square root.
func AbsSq[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case float32:
		return float64(v) * float64(v)
	case float64:
		return v * v
	case complex64:
		re, im := float64(real(v)), float64(imag(v))
		return re*re + im*im
	default:
		c := any(x).(complex128)
		return real(c)*real(c) + imag(c)*imag(c)
	}
}

// Eps returns the machine epsilon of the base precision of T.
func Eps[T Scalar]() float64 {
	var zero T
	switch any(zero).(type) {
	case float32, complex64:
		return 0x1p-23
	default:
		return 0x1p-52
	}
}

// IsComplex reports whether T is one of the complex precisions.
func IsComplex[T Scalar]() bool {
	var zero T
	switch any(zero).(type) {
	case complex64, complex128:
		return true
	default:
		return false
	}
}

// RandScalar draws a pseudo-random value in roughly (-0.5, 0.5) per component.
// The caller owns the rng so sequences stay reproducible.
func RandScalar[T Scalar](rng *rand.Rand) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(rng.Float32() - 0.5).(T)
	case float64:
		return any(rng.Float64() - 0.5).(T)
	case complex64:
		return any(complex(rng.Float32()-0.5, rng.Float32()-0.5)).(T)
	default:
		return any(complex(rng.Float64()-0.5, rng.Float64()-0.5)).(T)
	}
}
