package hdrbridge

import (
	"image"
)

// Image is a decoded UltraHDR container.
type Image struct {
	Base    image.Image
	GainMap image.Image
	Meta    *GainMapMetadata

	PrimaryJPEG []byte
	GainMapJPEG []byte
}

// Decode splits an UltraHDR container and decodes both images.
func Decode(data []byte) (*Image, error) {
	primaryJPEG, gainmapJPEG, meta, err := Split(data)
	if err != nil {
		return nil, err
	}
	base, err := decodeJPEG(primaryJPEG)
	if err != nil {
		return nil, err
	}
	gm, err := decodeJPEG(gainmapJPEG)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, GainMap: gm, Meta: meta, PrimaryJPEG: primaryJPEG, GainMapJPEG: gainmapJPEG}, nil
}

// Reconstruct recovers linear BT.709 HDR light relative to SDR white for a display
// that supports displayBoost times SDR white. A non-positive boost selects HDRCapacityMax.
func (im *Image) Reconstruct(displayBoost float32) (*HDRImage, error) {
	if im == nil || im.Base == nil || im.GainMap == nil || im.Meta == nil {
		return nil, ErrRequiredGainMap
	}
	b := im.Base.Bounds()
	gb := im.GainMap.Bounds()
	w, h := b.Dx(), b.Dy()
	gw, gh := gb.Dx(), gb.Dy()
	if w == 0 || h == 0 || gw == 0 || gh == 0 {
		return nil, decodeErrorf("empty image")
	}

	weight := displayWeight(im.Meta, displayBoost)
	gray := isGrayImage(im.GainMap)
	out := NewHDRImage(w, h, GamutBT709)
	for y := 0; y < h; y++ {
		gy := y * gh / h
		for x := 0; x < w; x++ {
			gx := x * gw / w
			var gain [3]float32
			r, g, bb := rgbAt(im.GainMap, gx, gy)
			if gray {
				g, bb = r, r
			}
			gain[0] = gainmapDecodeValue(r, im.Meta.Gamma[0])
			gain[1] = gainmapDecodeValue(g, im.Meta.Gamma[1])
			gain[2] = gainmapDecodeValue(bb, im.Meta.Gamma[2])

			v := applyGain(sampleSDR(im.Base, x, y), gain, im.Meta, weight)
			out.set(x, y, clampRGB(v))
		}
	}
	return out, nil
}
