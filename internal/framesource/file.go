package framesource

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/vearutop/hdrbridge"
	"golang.org/x/image/tiff"
)

// TIFFSource serves a single frame exported as a 16-bit RGB TIFF whose samples are
// HLG or PQ signal values, as produced by video tools that dump decoded frames.
type TIFFSource struct {
	Path string
	// Meta describes the clip the frame came from; Width and Height are taken from the file.
	Meta VideoInfo
}

// Info returns the declared metadata.
func (s *TIFFSource) Info() VideoInfo {
	return s.Meta
}

// Frame decodes the TIFF, ignoring positionMs.
func (s *TIFFSource) Frame(ctx context.Context, _ int64) (*hdrbridge.RawFrame, error) {
	tf, err := s.Meta.Transfer()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open tiff: %w", hdrbridge.ErrIO, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: tiff: %v", hdrbridge.ErrDecode, err)
	}
	return rotate(packImage(img, tf), s.Meta.Rotation), nil
}

// packImage quantizes 16-bit samples to 10-bit codes.
func packImage(img image.Image, tf hdrbridge.TransferFunction) *hdrbridge.RawFrame {
	b := img.Bounds()
	out := hdrbridge.NewRawFrame(b.Dx(), b.Dy(), tf)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, to10(r), to10(g), to10(bb), 3)
		}
	}
	return out
}

func to10(v uint32) uint16 {
	return uint16((v*1023 + 32767) / 65535)
}

// RawFileSource serves a frame stored as raw RGBA1010102 in decoder orientation.
type RawFileSource struct {
	Path string
	Meta VideoInfo
	// BottomUp marks GL read-back dumps whose first row is the bottom of the image.
	BottomUp bool
}

// Info returns the declared metadata.
func (s *RawFileSource) Info() VideoInfo {
	return s.Meta
}

// Frame reads the file, which must hold exactly Width*Height*4 bytes.
func (s *RawFileSource) Frame(ctx context.Context, _ int64) (*hdrbridge.RawFrame, error) {
	tf, err := s.Meta.Transfer()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pix, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read raw frame: %w", hdrbridge.ErrIO, err)
	}
	f := &hdrbridge.RawFrame{Width: s.Meta.Width, Height: s.Meta.Height, Pix: pix, Transfer: tf}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if s.BottomUp {
		f.FlipVertical()
	}
	return rotate(f, s.Meta.Rotation), nil
}

// rotate turns f clockwise by deg, a multiple of 90.
func rotate(f *hdrbridge.RawFrame, deg int) *hdrbridge.RawFrame {
	deg = normalizeRotation(deg)
	if deg == 0 || deg%90 != 0 {
		return f
	}
	w, h := f.Width, f.Height
	ow, oh := w, h
	if deg == 90 || deg == 270 {
		ow, oh = h, w
	}
	out := hdrbridge.NewRawFrame(ow, oh, f.Transfer)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := f.At(x, y)
			var dx, dy int
			switch deg {
			case 90:
				dx, dy = h-1-y, x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = y, w-1-x
			}
			out.Set(dx, dy, r, g, b, a)
		}
	}
	return out
}
