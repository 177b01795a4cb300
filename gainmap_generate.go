package hdrbridge

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// generateGainmap derives the gain map between the 8-bit SDR base and the HDR rendition.
// Both inputs share BT.709 primaries and dimensions.
func generateGainmap(sdr *image.RGBA, hdr *HDRImage, opt *EncodeOptions) (image.Image, *GainMapMetadata, error) {
	b := sdr.Bounds()
	if b.Dx() != hdr.Width || b.Dy() != hdr.Height {
		return nil, nil, encodeErrorf("SDR and HDR dimensions must match: %dx%d vs %dx%d", b.Dx(), b.Dy(), hdr.Width, hdr.Height)
	}
	w, h := hdr.Width, hdr.Height
	mapW := w / opt.GainMapScale
	mapH := h / opt.GainMapScale
	if mapW <= 0 || mapH <= 0 {
		return nil, nil, encodeErrorf("gainmap scale %d too large for %dx%d", opt.GainMapScale, w, h)
	}

	t := loadTables()
	channels := 1
	if opt.UseMultiChannelGM {
		channels = 3
	}
	gainData := make([]float32, w*h*channels)
	gainMin := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	gainMax := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	var peak float32

	for y := 0; y < h; y++ {
		row := sdr.Pix[y*sdr.Stride:]
		for x := 0; x < w; x++ {
			sdrRGB := rgb{r: t.srgbDec[row[x*4]], g: t.srgbDec[row[x*4+1]], b: t.srgbDec[row[x*4+2]]}
			hdrRGB := clampRGB(hdr.at(x, y))
			if m := max3(hdrRGB.r, hdrRGB.g, hdrRGB.b); m > peak {
				peak = m
			}

			var g [3]float32
			if channels == 3 {
				g[0] = computeGain(sdrRGB.r, hdrRGB.r)
				g[1] = computeGain(sdrRGB.g, hdrRGB.g)
				g[2] = computeGain(sdrRGB.b, hdrRGB.b)
			} else {
				g[0] = computeGain(max3(sdrRGB.r, sdrRGB.g, sdrRGB.b), max3(hdrRGB.r, hdrRGB.g, hdrRGB.b))
			}
			idx := (y*w + x) * channels
			for c := 0; c < channels; c++ {
				if !finite(g[c]) {
					return nil, nil, fmt.Errorf("%w: non-finite gain at %d,%d", ErrDegenerateGainMap, x, y)
				}
				gainData[idx+c] = g[c]
				if g[c] < gainMin[c] {
					gainMin[c] = g[c]
				}
				if g[c] > gainMax[c] {
					gainMax[c] = g[c]
				}
			}
		}
	}

	if peak <= 0 {
		return nil, nil, fmt.Errorf("%w: frame carries no signal", ErrDegenerateGainMap)
	}

	// Dim frames keep a minimal boost so capacity stays above its 1.0 floor.
	headroom := float32(minLog2Boost)
	for c := 0; c < channels; c++ {
		gainMin[c] = clampGainLog2(gainMin[c])
		gainMax[c] = clampGainLog2(gainMax[c])
		if gainMax[c] < minLog2Boost {
			gainMax[c] = minLog2Boost
		}
		if gainMax[c] > headroom {
			headroom = gainMax[c]
		}
	}
	for c := 0; c < channels; c++ {
		if gainMax[c]-gainMin[c] < 1e-6 {
			gainMax[c] = gainMin[c] + 0.1
		}
	}

	var gainmap image.Image
	if channels == 3 {
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			out.Pix[i*4] = affineMapGain(gainData[i*3], gainMin[0], gainMax[0], opt.Gamma)
			out.Pix[i*4+1] = affineMapGain(gainData[i*3+1], gainMin[1], gainMax[1], opt.Gamma)
			out.Pix[i*4+2] = affineMapGain(gainData[i*3+2], gainMin[2], gainMax[2], opt.Gamma)
			out.Pix[i*4+3] = 0xFF
		}
		gainmap = out
	} else {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			out.SetGray(i%w, i/w, color.Gray{Y: affineMapGain(gainData[i], gainMin[0], gainMax[0], opt.Gamma)})
		}
		gainmap = out
	}
	if mapW != w || mapH != h {
		gainmap = resize.Resize(uint(mapW), uint(mapH), gainmap, resize.Bilinear)
	}

	meta := &GainMapMetadata{
		Version:        jpegrVersion,
		UseBaseCG:      true,
		HDRCapacityMin: 1.0,
	}
	for i := 0; i < 3; i++ {
		c := i
		if channels == 1 {
			c = 0
		}
		meta.MinContentBoost[i] = exp2f(gainMin[c])
		meta.MaxContentBoost[i] = exp2f(gainMax[c])
		meta.Gamma[i] = opt.Gamma
		meta.OffsetSDR[i] = gainOffsetSDR
		meta.OffsetHDR[i] = gainOffsetHDR
	}
	meta.HDRCapacityMax = exp2f(headroom)
	return gainmap, meta, nil
}

func computeGain(sdr, hdr float32) float32 {
	gain := log2f((hdr + gainOffsetHDR) / (sdr + gainOffsetSDR))
	if sdr < 2.0/255.0 {
		if gain > 2.3 {
			gain = 2.3
		}
	}
	return gain
}

func clampGainLog2(v float32) float32 {
	if v < -14.3 {
		return -14.3
	}
	if v > 15.6 {
		return 15.6
	}
	return v
}

func affineMapGain(gainlog2, minlog2, maxlog2, gamma float32) uint8 {
	denom := maxlog2 - minlog2
	if denom == 0 {
		denom = 1
	}
	mapped := clamp01((gainlog2 - minlog2) / denom)
	if gamma != 1 {
		mapped = float32(math.Pow(float64(mapped), float64(gamma)))
	}
	return uint8(clamp01(mapped)*255 + 0.5)
}
