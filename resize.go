package hdrbridge

import (
	"errors"
	"fmt"

	"github.com/nfnt/resize"
)

// ResizeOptions controls UltraHDR resizing.
type ResizeOptions struct {
	Quality        int
	GainMapQuality int
	Interpolation  Interpolation
}

// Interpolation selects the resampling kernel.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

// ParseInterpolation parses the lowercase name of an interpolation mode.
func ParseInterpolation(s string) (Interpolation, error) {
	for i, name := range interpolationNames {
		if s == name {
			return Interpolation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

var interpolationNames = [...]string{"nearest", "bilinear", "bicubic", "mitchell", "lanczos2", "lanczos3"}

func (i Interpolation) function() resize.InterpolationFunction {
	switch i {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// Resize scales both images of an UltraHDR container. The gain map keeps its ratio to
// the base image; metadata, EXIF and ICC are carried over. A zero width or height
// preserves the aspect ratio.
func Resize(data []byte, width, height uint, opts ...func(o *ResizeOptions)) ([]byte, error) {
	if width == 0 && height == 0 {
		return nil, errors.New("invalid target dimensions")
	}
	opt := ResizeOptions{
		Quality:        defaultBaseQuality,
		GainMapQuality: defaultGainMapQuality,
		Interpolation:  InterpolationBilinear,
	}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Quality <= 0 || opt.Quality > 100 {
		opt.Quality = defaultBaseQuality
	}
	if opt.GainMapQuality <= 0 || opt.GainMapQuality > 100 {
		opt.GainMapQuality = defaultGainMapQuality
	}

	im, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	interp := opt.Interpolation.function()

	base := resize.Resize(width, height, im.Base, interp)
	bb, ob, gb := base.Bounds(), im.Base.Bounds(), im.GainMap.Bounds()
	gw := scaleDim(gb.Dx(), bb.Dx(), ob.Dx())
	gh := scaleDim(gb.Dy(), bb.Dy(), ob.Dy())
	gainmap := resize.Resize(uint(gw), uint(gh), im.GainMap, interp)

	primaryJPEG, err := encodeJPEG(base, opt.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode primary: %w", err)
	}
	if primaryJPEG, err = withExifAndIcc(primaryJPEG, im.PrimaryJPEG); err != nil {
		return nil, fmt.Errorf("copy exif and icc: %w", err)
	}
	gainmapJPEG, err := encodeJPEG(gainmap, opt.GainMapQuality)
	if err != nil {
		return nil, fmt.Errorf("encode gainmap: %w", err)
	}
	return assembleContainer(primaryJPEG, gainmapJPEG, im.Meta)
}

// scaleDim returns v*num/den rounded, at least 1.
func scaleDim(v, num, den int) int {
	n := (v*num + den/2) / den
	if n < 1 {
		n = 1
	}
	return n
}
