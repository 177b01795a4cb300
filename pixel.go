package hdrbridge

import "encoding/binary"

const (
	bytesPerPixel = 4
	maxCode10     = 1023
)

// RawFrame is one decoded HDR video frame in packed RGBA1010102.
//
// Each pixel is a little-endian 32-bit word holding R in bits 0-9, G in bits 10-19,
// B in bits 20-29 and alpha in bits 30-31. Rows are stored top-down without padding.
type RawFrame struct {
	Width    int
	Height   int
	Pix      []byte
	Transfer TransferFunction
}

// NewRawFrame allocates an opaque black frame.
func NewRawFrame(width, height int, tf TransferFunction) *RawFrame {
	f := &RawFrame{Width: width, Height: height, Transfer: tf}
	if width > 0 && height > 0 {
		f.Pix = make([]byte, width*height*bytesPerPixel)
		for i := 0; i < len(f.Pix); i += bytesPerPixel {
			binary.LittleEndian.PutUint32(f.Pix[i:], 3<<30)
		}
	}
	return f
}

// Validate checks dimensions, buffer size and transfer tag.
func (f *RawFrame) Validate() error {
	if f == nil {
		return decodeErrorf("raw frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return decodeErrorf("invalid dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * bytesPerPixel; len(f.Pix) != want {
		return decodeErrorf("buffer size %d does not match %dx%d RGBA1010102 (%d bytes)", len(f.Pix), f.Width, f.Height, want)
	}
	if !f.Transfer.Valid() {
		return decodeErrorf("unsupported transfer function %s", f.Transfer)
	}
	return nil
}

// At returns the 10-bit color codes and 2-bit alpha of a pixel.
func (f *RawFrame) At(x, y int) (r, g, b, a uint16) {
	w := binary.LittleEndian.Uint32(f.Pix[(y*f.Width+x)*bytesPerPixel:])
	return unpack1010102(w)
}

// Set stores 10-bit color codes and 2-bit alpha at a pixel.
func (f *RawFrame) Set(x, y int, r, g, b, a uint16) {
	binary.LittleEndian.PutUint32(f.Pix[(y*f.Width+x)*bytesPerPixel:], pack1010102(r, g, b, a))
}

// FlipVertical reverses row order in place, converting bottom-up GL read-backs to top-down.
func (f *RawFrame) FlipVertical() {
	stride := f.Width * bytesPerPixel
	tmp := make([]byte, stride)
	for top, bottom := 0, f.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := f.Pix[top*stride : (top+1)*stride]
		b := f.Pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

func unpack1010102(w uint32) (r, g, b, a uint16) {
	return uint16(w & 0x3FF), uint16((w >> 10) & 0x3FF), uint16((w >> 20) & 0x3FF), uint16(w >> 30)
}

func pack1010102(r, g, b, a uint16) uint32 {
	return uint32(r&0x3FF) | uint32(g&0x3FF)<<10 | uint32(b&0x3FF)<<20 | uint32(a&0x3)<<30
}
