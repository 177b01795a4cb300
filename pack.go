package hdrbridge

import "encoding/binary"

// PackRGBA1010102 encodes linear HDR light relative to SDR white into an opaque
// RGBA1010102 frame with BT.2020 primaries and the requested transfer function.
func PackRGBA1010102(hdr *HDRImage, tf TransferFunction) (*RawFrame, error) {
	if hdr == nil || hdr.Width <= 0 || hdr.Height <= 0 || len(hdr.Pix) != hdr.Width*hdr.Height*3 {
		return nil, encodeErrorf("invalid HDR image")
	}
	if !tf.Valid() {
		return nil, encodeErrorf("unsupported transfer function %s", tf)
	}
	src := hdr
	if hdr.Gamut != GamutBT2020 {
		src = hdr.ToGamut(GamutBT2020)
	}

	f := &RawFrame{Width: hdr.Width, Height: hdr.Height, Transfer: tf, Pix: make([]byte, hdr.Width*hdr.Height*bytesPerPixel)}
	n := hdr.Width * hdr.Height
	for i := 0; i < n; i++ {
		v := clampRGB(rgb{r: src.Pix[i*3], g: src.Pix[i*3+1], b: src.Pix[i*3+2]})
		if tf == TransferHLG {
			v = hlgSceneFromDisplay(v)
		}
		w := pack1010102(encodeSignal(v.r, tf), encodeSignal(v.g, tf), encodeSignal(v.b, tf), 3)
		binary.LittleEndian.PutUint32(f.Pix[i*bytesPerPixel:], w)
	}
	return f, nil
}
