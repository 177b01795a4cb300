package hdrbridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode converts a packed RGBA1010102 HLG or PQ frame into an UltraHDR JPEG.
//
// The base image is a tone-mapped BT.709 sRGB rendition; the gain map is computed
// against the base as it decodes from JPEG, so SDR-only viewers and gain-map aware
// viewers agree on the base.
func Encode(frame *RawFrame, options ...func(o *EncodeOptions)) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	opt := defaultEncodeOptions()
	for _, o := range options {
		o(&opt)
	}
	opt.normalize()

	hdr := frameToHDR(frame).ToGamut(GamutBT709)
	sdr := toneMapToSDR(hdr, newToneMapper(hdr, frame.Transfer))

	baseJPEG, err := encodeJPEG(sdr, opt.Quality)
	if err != nil {
		return nil, err
	}
	decodedBase, err := decodeJPEG(baseJPEG)
	if err != nil {
		return nil, fmt.Errorf("%w: re-decode base: %v", ErrEncode, err)
	}

	gainmap, meta, err := generateGainmap(toRGBA(decodedBase), hdr, &opt)
	if err != nil {
		return nil, err
	}
	gainmapJPEG, err := encodeJPEG(gainmap, opt.GainMapQuality)
	if err != nil {
		return nil, err
	}

	out, err := assembleContainer(baseJPEG, gainmapJPEG, meta)
	if err != nil {
		if errors.Is(err, ErrEncode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: assemble: %v", ErrEncode, err)
	}
	return out, nil
}

// EncodeFile reads a raw RGBA1010102 frame of width x height from inputPath and writes
// the UltraHDR JPEG to outputPath.
//
// The input must hold exactly width*height*4 bytes. On any failure outputPath is left
// untouched: the result is written to a temporary file next to it and renamed on success.
func EncodeFile(width, height int, inputPath, outputPath string, tf TransferFunction, options ...func(o *EncodeOptions)) error {
	if width <= 0 || height <= 0 {
		return decodeErrorf("invalid dimensions %dx%d", width, height)
	}
	in, err := os.Open(inputPath)
	if err != nil {
		return ioError("open input", err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return ioError("stat input", err)
	}
	want := int64(width) * int64(height) * bytesPerPixel
	if st.Size() != want {
		return decodeErrorf("input %s has %d bytes, %dx%d RGBA1010102 needs %d", inputPath, st.Size(), width, height, want)
	}

	frame := &RawFrame{Width: width, Height: height, Transfer: tf, Pix: make([]byte, want)}
	if _, err := io.ReadFull(in, frame.Pix); err != nil {
		return ioError("read input", err)
	}

	data, err := Encode(frame, options...)
	if err != nil {
		return err
	}
	return writeFileAtomic(outputPath, data)
}

// writeFileAtomic writes data to a temporary file in the target directory and renames it.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioError("create temp output", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return ioError("write output", err)
	}
	if err = tmp.Sync(); err != nil {
		return ioError("sync output", err)
	}
	if err = tmp.Close(); err != nil {
		return ioError("close output", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return ioError("rename output", err)
	}
	return nil
}
