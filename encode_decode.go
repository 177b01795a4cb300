package hdrbridge

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, encodeErrorf("jpeg: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeJPEG(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeErrorf("jpeg: %v", err)
	}
	return img, nil
}

// sampleSDR returns linear BT.709 light of an 8-bit sRGB pixel, clamping coordinates.
func sampleSDR(img image.Image, x, y int) rgb {
	r, g, b := rgbAt(img, x, y)
	t := loadTables()
	return rgb{r: t.srgbDec[r], g: t.srgbDec[g], b: t.srgbDec[b]}
}

func clampPoint(b image.Rectangle, x, y int) (int, int) {
	x += b.Min.X
	y += b.Min.Y
	if x < b.Min.X {
		x = b.Min.X
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return x, y
}

// rgbAt reads 8-bit components at (x, y) relative to the image origin.
func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	x, y = clampPoint(img.Bounds(), x, y)
	switch im := img.(type) {
	case *image.RGBA:
		i := im.PixOffset(x, y)
		return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
	case *image.YCbCr:
		c := im.YCbCrAt(x, y)
		return color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
	case *image.Gray:
		v := im.GrayAt(x, y).Y
		return v, v, v
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func isGrayImage(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	default:
		return false
	}
}

// toRGBA copies any image into a tightly packed *image.RGBA with origin at zero.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bb := rgbAt(img, x, y)
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = r, g, bb, 0xFF
		}
	}
	return out
}
