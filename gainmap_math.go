package hdrbridge

import "math"

func gainmapDecodeValue(v uint8, gamma float32) float32 {
	g := float32(v) / 255.0
	if gamma != 1 {
		g = float32(math.Pow(float64(g), float64(1.0/gamma)))
	}
	return clamp01(g)
}

// displayWeight maps a display boost onto the [HDRCapacityMin, HDRCapacityMax] range.
func displayWeight(meta *GainMapMetadata, displayBoost float32) float32 {
	if displayBoost <= 0 {
		displayBoost = meta.HDRCapacityMax
	}
	lo := log2f(meta.HDRCapacityMin)
	hi := log2f(meta.HDRCapacityMax)
	if hi <= lo {
		if displayBoost > meta.HDRCapacityMin {
			return 1
		}
		return 0
	}
	return clamp01((log2f(displayBoost) - lo) / (hi - lo))
}

// applyGain recovers HDR light from linear SDR e. gain holds normalized gain map
// samples in [0, 1] before the gamma is undone.
func applyGain(e rgb, gain [3]float32, meta *GainMapMetadata, weight float32) rgb {
	var out [3]float32
	in := [3]float32{e.r, e.g, e.b}
	for c := 0; c < 3; c++ {
		logBoost := log2f(meta.MinContentBoost[c])*(1.0-gain[c]) + log2f(meta.MaxContentBoost[c])*gain[c]
		out[c] = (in[c]+meta.OffsetSDR[c])*exp2f(logBoost*weight) - meta.OffsetHDR[c]
	}
	return rgb{r: out[0], g: out[1], b: out[2]}
}
