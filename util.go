package hdrbridge

import "math"

type rgb struct {
	r, g, b float32
}

func (v rgb) scale(s float32) rgb { return rgb{r: v.r * s, g: v.g * s, b: v.b * s} }

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }

func srgbInvOetf(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}

func srgbOetf(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*float32(math.Pow(float64(v), 1.0/2.4)) - 0.055
}

func max3(a, b, c float32) float32 {
	if a >= b && a >= c {
		return a
	}
	if b >= a && b >= c {
		return b
	}
	return c
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRGB(v rgb) rgb {
	if v.r < 0 {
		v.r = 0
	}
	if v.g < 0 {
		v.g = 0
	}
	if v.b < 0 {
		v.b = 0
	}
	return v
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
