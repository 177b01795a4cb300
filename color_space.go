package hdrbridge

// Matrices are linear D65 RGB to RGB, derived from the BT.709 and BT.2020 primaries.

func bt2020ToBT709(v rgb) rgb {
	return rgb{
		r: 1.6604910*v.r - 0.5876411*v.g - 0.0728499*v.b,
		g: -0.1245505*v.r + 1.1328999*v.g - 0.0083494*v.b,
		b: -0.0181508*v.r - 0.1005789*v.g + 1.1187297*v.b,
	}
}

func bt709ToBT2020(v rgb) rgb {
	return rgb{
		r: 0.6274039*v.r + 0.3292830*v.g + 0.0433131*v.b,
		g: 0.0690973*v.r + 0.9195404*v.g + 0.0113623*v.b,
		b: 0.0163914*v.r + 0.0880133*v.g + 0.8955953*v.b,
	}
}

func convertLinearGamut(v rgb, from, to ColorGamut) rgb {
	if from == to {
		return v
	}
	if from == GamutBT2020 {
		return bt2020ToBT709(v)
	}
	return bt709ToBT2020(v)
}

// ToGamut returns a copy of h in the requested primaries. Out-of-gamut negative
// components are clamped to zero.
func (h *HDRImage) ToGamut(to ColorGamut) *HDRImage {
	out := NewHDRImage(h.Width, h.Height, to)
	for i := 0; i < len(h.Pix); i += 3 {
		v := rgb{r: h.Pix[i], g: h.Pix[i+1], b: h.Pix[i+2]}
		v = clampRGB(convertLinearGamut(v, h.Gamut, to))
		out.Pix[i] = v.r
		out.Pix[i+1] = v.g
		out.Pix[i+2] = v.b
	}
	return out
}
