package hdrbridge

import (
	"fmt"
	"strings"
)

// TransferFunction identifies the HDR transfer function of a raw frame.
// Values match the integer index accepted by EncodeFile callers.
type TransferFunction int

const (
	TransferHLG TransferFunction = iota
	TransferPQ
)

// String returns a lowercase name of the transfer function.
func (t TransferFunction) String() string {
	switch t {
	case TransferHLG:
		return "hlg"
	case TransferPQ:
		return "pq"
	default:
		return fmt.Sprintf("transfer(%d)", int(t))
	}
}

// Valid reports whether t is one of the supported HDR transfer functions.
func (t TransferFunction) Valid() bool {
	return t == TransferHLG || t == TransferPQ
}

// ParseTransferFunction parses "hlg", "pq" or "st2084" (case-insensitive).
func ParseTransferFunction(s string) (TransferFunction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hlg", "arib-std-b67", "0":
		return TransferHLG, nil
	case "pq", "st2084", "smpte2084", "1":
		return TransferPQ, nil
	default:
		return 0, fmt.Errorf("unknown transfer function %q", s)
	}
}

// ColorGamut identifies linear RGB primaries.
type ColorGamut int

const (
	GamutBT709 ColorGamut = iota
	GamutBT2020
)

// HDRImage stores a linear-light HDR image in RGB float32.
// Pixel values are relative to SDR white (1.0 = SDR white).
type HDRImage struct {
	Width  int
	Height int
	Pix    []float32 // RGB triplets, row-major, no padding
	Gamut  ColorGamut
}

// NewHDRImage allocates a zeroed HDR image.
func NewHDRImage(width, height int, gamut ColorGamut) *HDRImage {
	return &HDRImage{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*3),
		Gamut:  gamut,
	}
}

func (h *HDRImage) at(x, y int) rgb {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= h.Width {
		x = h.Width - 1
	}
	if y >= h.Height {
		y = h.Height - 1
	}
	i := (y*h.Width + x) * 3
	return rgb{r: h.Pix[i], g: h.Pix[i+1], b: h.Pix[i+2]}
}

func (h *HDRImage) set(x, y int, v rgb) {
	i := (y*h.Width + x) * 3
	h.Pix[i] = v.r
	h.Pix[i+1] = v.g
	h.Pix[i+2] = v.b
}

// GainMapMetadata corresponds to the float metadata in the C++ library.
type GainMapMetadata struct {
	Version         string     `json:"version"`
	MaxContentBoost [3]float32 `json:"max_content_boost"`
	MinContentBoost [3]float32 `json:"min_content_boost"`
	Gamma           [3]float32 `json:"gamma"`
	OffsetSDR       [3]float32 `json:"offset_sdr"`
	OffsetHDR       [3]float32 `json:"offset_hdr"`
	HDRCapacityMin  float32    `json:"hdr_capacity_min"`
	HDRCapacityMax  float32    `json:"hdr_capacity_max"`
	UseBaseCG       bool       `json:"use_base_cg"`
}

// EncodeOptions controls JPEG/R encoding.
type EncodeOptions struct {
	Quality           int     // base JPEG quality (1-100)
	GainMapQuality    int     // gainmap JPEG quality (1-100)
	GainMapScale      int     // downscale factor for gainmap (>=1)
	UseMultiChannelGM bool    // use RGB gainmap instead of max(rgb)
	Gamma             float32 // gainmap gamma
}

func defaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Quality:           defaultBaseQuality,
		GainMapQuality:    defaultGainMapQuality,
		GainMapScale:      defaultGainMapScale,
		UseMultiChannelGM: true,
		Gamma:             defaultGamma,
	}
}

func (o *EncodeOptions) normalize() {
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = defaultBaseQuality
	}
	if o.GainMapQuality <= 0 || o.GainMapQuality > 100 {
		o.GainMapQuality = defaultGainMapQuality
	}
	if o.GainMapScale < 1 {
		o.GainMapScale = 1
	}
	if o.Gamma <= 0 {
		o.Gamma = defaultGamma
	}
}
