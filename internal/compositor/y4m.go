package compositor

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vearutop/hdrbridge"
)

// BT.2020 non-constant luminance coefficients.
const (
	kr = 0.2627
	kb = 0.0593
	kg = 1 - kr - kb
)

// Y4MWriter is a VideoEncoder producing YUV4MPEG2 with 10-bit 4:4:4 limited range
// BT.2020 samples. HLG signal values pass through unchanged.
type Y4MWriter struct {
	w      *bufio.Writer
	width  int
	height int
	plane  []byte
	frames int
}

// NewY4MWriter writes to w.
func NewY4MWriter(w io.Writer) *Y4MWriter {
	return &Y4MWriter{w: bufio.NewWriter(w)}
}

// Frames returns the number of frames written.
func (y *Y4MWriter) Frames() int {
	return y.frames
}

// Begin writes the stream header.
func (y *Y4MWriter) Begin(cfg Config, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid video size %dx%d", width, height)
	}
	y.width, y.height = width, height
	y.plane = make([]byte, width*height*2)
	_, err := fmt.Fprintf(y.w, "YUV4MPEG2 W%d H%d F%d:1 Ip A1:1 C444p10 XYSCSS=444P10 XCOLORRANGE=LIMITED\n",
		width, height, cfg.FrameRate)
	return err
}

// EncodeFrame converts f to Y'CbCr planes and writes them.
func (y *Y4MWriter) EncodeFrame(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := f.Raw
	if raw == nil || raw.Width != y.width || raw.Height != y.height {
		return errors.New("frame size does not match stream")
	}
	if raw.Transfer != hdrbridge.TransferHLG {
		return fmt.Errorf("unexpected %s frame", raw.Transfer)
	}
	if _, err := io.WriteString(y.w, "FRAME\n"); err != nil {
		return err
	}
	for c := 0; c < 3; c++ {
		for py := 0; py < raw.Height; py++ {
			for px := 0; px < raw.Width; px++ {
				r, g, b, _ := raw.At(px, py)
				binary.LittleEndian.PutUint16(y.plane[(py*raw.Width+px)*2:], ycbcr10(r, g, b, c))
			}
		}
		if _, err := y.w.Write(y.plane); err != nil {
			return err
		}
	}
	y.frames++
	return nil
}

// End flushes buffered output.
func (y *Y4MWriter) End() error {
	return y.w.Flush()
}

// ycbcr10 returns component c (0 Y, 1 Cb, 2 Cr) of 10-bit R'G'B' codes as a
// limited range 10-bit sample.
func ycbcr10(r, g, b uint16, c int) uint16 {
	rf := float64(r) / 1023
	gf := float64(g) / 1023
	bf := float64(b) / 1023
	luma := kr*rf + kg*gf + kb*bf

	var v float64
	switch c {
	case 0:
		v = 64 + 876*luma
		return clampCode(v, 64, 940)
	case 1:
		v = 512 + 896*(bf-luma)/(2*(1-kb))
	default:
		v = 512 + 896*(rf-luma)/(2*(1-kr))
	}
	return clampCode(v, 64, 960)
}

func clampCode(v, lo, hi float64) uint16 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint16(v + 0.5)
}
