package hdrbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrRequiredHdrVideo is returned when a source video is SDR or has unrecognized colorimetry.
	ErrRequiredHdrVideo = errors.New("hdr video required")

	// ErrRequiredGainMap is returned when an image has no gain map.
	ErrRequiredGainMap = errors.New("gain map required")

	// ErrRequiredUltraHDRPhoto is returned by the video path for photos without a gain map.
	ErrRequiredUltraHDRPhoto = fmt.Errorf("%w: ultrahdr photo expected", ErrRequiredGainMap)

	// ErrDecode is returned for malformed or undersized raw buffers and containers.
	ErrDecode = errors.New("decode error")

	// ErrEncode is returned when the codec cannot produce an image.
	ErrEncode = errors.New("encode error")

	// ErrDegenerateGainMap is returned when the HDR input is entirely black.
	ErrDegenerateGainMap = fmt.Errorf("%w: degenerate gain map", ErrEncode)

	// ErrIO is returned for file and media store failures.
	ErrIO = errors.New("io error")
)

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDecode}, args...)...)
}

func encodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrEncode}, args...)...)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
