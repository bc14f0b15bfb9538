package utils

import (
	"math"
)

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

func POW(x float64, pp int) (y float64) {
	var (
		p       = pp
		flipped bool
	)
	if pp > 8 || pp < -8 {
		goto MATHPOW
	}

	if p < 0 {
		p = -pp
		flipped = true
	}
	switch p {
	case 0:
		y = 1
	case 1:
		y = x
	case 2:
		y = x * x
	case 3:
		y = x * x * x
	case 4:
		y = x * x
		y = y * y
	case 5:
		y = x * x
		y = y * y * x
	case 6:
		y = x * x
		y = y * y * y
	case 7:
		y = x * x
		y = y * y * y * x
	case 8:
		y = x * x
		y = y * y * y * y
	}
	if flipped {
		y = 1. / y
	}
	return

MATHPOW:
	y = math.Pow(x, float64(p))
	return
}

func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180. }

func Rad2Deg(rad float64) float64 { return rad * 180. / math.Pi }

// GeometricSum returns h0*(r^n - 1)/(r - 1), the total thickness of n layers
// starting at h0 and growing by ratio r
func GeometricSum(h0, r float64, n int) float64 {
	if math.Abs(r-1) < 1.e-9 {
		return h0 * float64(n)
	}
	return h0 * (POW(r, n) - 1) / (r - 1)
}

// GrowthRatio finds r in [rMin, rMax] with GeometricSum(h0, r, n) == total by
// bisection. The result is clamped to the interval when no root lies inside.
func GrowthRatio(h0, total float64, n int, rMin, rMax float64) (r float64) {
	if n <= 1 || h0 <= 0 {
		return 1
	}
	if GeometricSum(h0, rMin, n) >= total {
		return rMin
	}
	if GeometricSum(h0, rMax, n) <= total {
		return rMax
	}
	lo, hi := rMin, rMax
	for i := 0; i < 100; i++ {
		r = 0.5 * (lo + hi)
		if GeometricSum(h0, r, n) < total {
			lo = r
		} else {
			hi = r
		}
		if hi-lo < 1.e-12 {
			break
		}
	}
	r = 0.5 * (lo + hi)
	return
}
