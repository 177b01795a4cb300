package hdrbridge

import "image"

// toneMapper compresses HDR light into the SDR range with an extended Reinhard curve
// applied to max(R,G,B), so hue is preserved and the reference peak lands on SDR white.
type toneMapper struct {
	peak float32 // relative to SDR white, >= 1
}

func newToneMapper(hdr *HDRImage, tf TransferFunction) toneMapper {
	peak := float32(hlgMaxNits / sdrWhiteNits)
	if tf == TransferPQ {
		contentPeak := float32(0)
		for i := 0; i < len(hdr.Pix); i += 3 {
			if m := max3(hdr.Pix[i], hdr.Pix[i+1], hdr.Pix[i+2]); m > contentPeak {
				contentPeak = m
			}
		}
		if contentPeak > peak {
			peak = contentPeak
		}
		if limit := float32(pqMaxNits / sdrWhiteNits); peak > limit {
			peak = limit
		}
	}
	return toneMapper{peak: peak}
}

func (m toneMapper) apply(v rgb) rgb {
	l := max3(v.r, v.g, v.b)
	if l <= 0 {
		return rgb{}
	}
	out := l * (1 + l/(m.peak*m.peak)) / (1 + l)
	v = v.scale(out / l)
	return rgb{r: clamp01(v.r), g: clamp01(v.g), b: clamp01(v.b)}
}

// toneMapToSDR renders the base image as 8-bit sRGB. hdr must be in BT.709 primaries.
func toneMapToSDR(hdr *HDRImage, tm toneMapper) *image.RGBA {
	t := loadTables()
	out := image.NewRGBA(image.Rect(0, 0, hdr.Width, hdr.Height))
	for y := 0; y < hdr.Height; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < hdr.Width; x++ {
			v := tm.apply(hdr.at(x, y))
			row[x*4] = t.encodeSRGB8(v.r)
			row[x*4+1] = t.encodeSRGB8(v.g)
			row[x*4+2] = t.encodeSRGB8(v.b)
			row[x*4+3] = 0xFF
		}
	}
	return out
}
