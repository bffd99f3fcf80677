package kern

// Operation counts for a Cholesky factorization of order n, following the
// classic LAPACK counts. Complex arithmetic weighs a multiply as 6 flops and
// an add as 2.

func potrfMuls(n float64) float64 {
	return n * (((1.0/6.0)*n+0.5)*n + 1.0/3.0)
}

func potrfAdds(n float64) float64 {
	return n * ((1.0 / 6.0) * n * n) - n*(1.0/6.0)
}

// PotrfFlops returns the flop count of a Cholesky factorization of order n.
func PotrfFlops(n int, complex bool) float64 {
	fn := float64(n)
	if complex {
		return 6*potrfMuls(fn) + 2*potrfAdds(fn)
	}
	return potrfMuls(fn) + potrfAdds(fn)
}
