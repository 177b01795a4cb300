// Package framesource produces RGBA1010102 frames from HDR video sources.
package framesource

import (
	"fmt"

	"github.com/vearutop/hdrbridge"
)

// ColorStandard is a video color standard code, matching Android MediaFormat values.
type ColorStandard int

// Color standard codes.
const (
	StandardUnknown   ColorStandard = 0
	StandardBT709     ColorStandard = 1
	StandardBT601PAL  ColorStandard = 2
	StandardBT601NTSC ColorStandard = 4
	StandardBT2020    ColorStandard = 6
)

// ColorTransfer is a video transfer characteristic code, matching Android MediaFormat values.
type ColorTransfer int

// Color transfer codes.
const (
	TransferLinear   ColorTransfer = 1
	TransferSDRVideo ColorTransfer = 3
	TransferST2084   ColorTransfer = 6
	TransferHLG      ColorTransfer = 7
)

// Missing metadata is read as an SDR BT.709 video.
const (
	defaultStandard = StandardBT709
	defaultTransfer = TransferSDRVideo
)

// Classify maps declared video colorimetry to an HDR transfer function.
// Everything except BT.2020 with HLG or ST 2084 fails with hdrbridge.ErrRequiredHdrVideo.
func Classify(standard ColorStandard, transfer ColorTransfer) (hdrbridge.TransferFunction, error) {
	if standard == StandardBT2020 {
		switch transfer {
		case TransferHLG:
			return hdrbridge.TransferHLG, nil
		case TransferST2084:
			return hdrbridge.TransferPQ, nil
		}
	}
	return 0, fmt.Errorf("%w: color standard %d, transfer %d", hdrbridge.ErrRequiredHdrVideo, standard, transfer)
}

// VideoInfo is the subset of container metadata needed to capture a frame.
type VideoInfo struct {
	Width         int
	Height        int
	Rotation      int // degrees clockwise
	DurationMs    int64
	ColorStandard ColorStandard
	ColorTransfer ColorTransfer
}

// DisplaySize returns frame dimensions after rotation: 90 and 270 swap width and height.
func (v VideoInfo) DisplaySize() (width, height int) {
	switch normalizeRotation(v.Rotation) {
	case 90, 270:
		return v.Height, v.Width
	default:
		return v.Width, v.Height
	}
}

// Transfer classifies the video, applying defaults for missing codes.
func (v VideoInfo) Transfer() (hdrbridge.TransferFunction, error) {
	s, t := v.ColorStandard, v.ColorTransfer
	if s == StandardUnknown {
		s = defaultStandard
	}
	if t == 0 {
		t = defaultTransfer
	}
	return Classify(s, t)
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
