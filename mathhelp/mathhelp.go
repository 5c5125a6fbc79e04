package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func AbsDiff[T constraints.Integer](p, q T) T {
	if p > q {
		return p - q
	}
	return q - p
}

func Pow2(n uint) uint {
	return 1 << n
}

func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

func Rad2Deg(r float64) float64 {
	return r * 180 / math.Pi
}
