package hdrbridge

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeRawFrame(t *testing.T, dir string, f *RawFrame) string {
	t.Helper()
	p := filepath.Join(dir, "frame.raw")
	if err := os.WriteFile(p, f.Pix, 0o600); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return p
}

func uniformFrame(w, h int, tf TransferFunction, code uint16) *RawFrame {
	f := NewRawFrame(w, h, tf)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, code, code, code, 3)
		}
	}
	return f
}

func TestEncodeFileMidGrayHLG(t *testing.T) {
	dir := t.TempDir()
	in := writeRawFrame(t, dir, uniformFrame(1920, 1080, TransferHLG, 512))
	out := filepath.Join(dir, "out.jpg")

	if err := EncodeFile(1920, 1080, in, out, TransferHLG); err != nil {
		t.Fatalf("encode file: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("output is not a JPEG")
	}

	ok, err := HasGainMap(bytes.NewReader(data))
	if err != nil || !ok {
		t.Fatalf("HasGainMap = %v, %v", ok, err)
	}

	r, err := Inspect(data)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if r.Width != 1920 || r.Height != 1080 {
		t.Fatalf("base is %dx%d", r.Width, r.Height)
	}
	if r.GainMapWidth != 1920 || r.GainMapHeight != 1080 {
		t.Fatalf("gain map is %dx%d", r.GainMapWidth, r.GainMapHeight)
	}
	if r.Meta.HDRCapacityMax <= 1 {
		t.Fatalf("no HDR headroom: %v", r.Meta.HDRCapacityMax)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected files left behind: %v", names)
	}
}

func TestEncodePQ(t *testing.T) {
	data, err := Encode(uniformFrame(64, 48, TransferPQ, 600))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	im, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := im.Base.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("base is %dx%d", b.Dx(), b.Dy())
	}
	if im.Meta.HDRCapacityMax <= 1 {
		t.Fatalf("no HDR headroom: %v", im.Meta.HDRCapacityMax)
	}
}

func TestEncodeFileSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	f := uniformFrame(16, 16, TransferHLG, 512)
	f.Pix = f.Pix[:len(f.Pix)-1]
	in := writeRawFrame(t, dir, f)
	out := filepath.Join(dir, "out.jpg")

	err := EncodeFile(16, 16, in, out, TransferHLG)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output written on failure: %v", err)
	}
}

func TestEncodeFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := EncodeFile(4, 4, filepath.Join(dir, "missing.raw"), filepath.Join(dir, "out.jpg"), TransferPQ)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestEncodeRejectsBlackFrame(t *testing.T) {
	dir := t.TempDir()
	in := writeRawFrame(t, dir, uniformFrame(32, 32, TransferHLG, 0))
	out := filepath.Join(dir, "out.jpg")

	err := EncodeFile(32, 32, in, out, TransferHLG)
	if !errors.Is(err, ErrDegenerateGainMap) {
		t.Fatalf("expected ErrDegenerateGainMap, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output written on failure: %v", err)
	}
}

func TestEncodeDimFrames(t *testing.T) {
	for _, tc := range []struct {
		tf   TransferFunction
		code uint16
	}{
		{TransferHLG, 100},
		{TransferHLG, 150},
		{TransferPQ, 250},
	} {
		data, err := Encode(uniformFrame(64, 64, tc.tf, tc.code))
		if err != nil {
			t.Fatalf("%s code %d: %v", tc.tf, tc.code, err)
		}
		_, _, meta, err := Split(data)
		if err != nil {
			t.Fatalf("%s code %d: split: %v", tc.tf, tc.code, err)
		}
		if err := validateMetadata(meta); err != nil {
			t.Fatalf("%s code %d: %v", tc.tf, tc.code, err)
		}
		if meta.HDRCapacityMax <= 1 {
			t.Fatalf("%s code %d: capacity max %v", tc.tf, tc.code, meta.HDRCapacityMax)
		}
	}
}

func TestEncodeRejectsMalformedBuffer(t *testing.T) {
	if _, err := Encode(&RawFrame{Width: 4, Height: 4, Pix: make([]byte, 10)}); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := Encode(&RawFrame{}); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for empty frame, got %v", err)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	f := NewRawFrame(40, 20, TransferHLG)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.Set(x, y, uint16(100+x*20), uint16(300+y*10), 600, 3)
		}
	}
	a, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding is not reproducible")
	}

	_, _, ma, _ := Split(a)
	_, _, mb, _ := Split(b)
	if *ma != *mb {
		t.Fatalf("metadata differs: %+v vs %+v", ma, mb)
	}
}

func TestEncodeOptions(t *testing.T) {
	f := uniformFrame(64, 32, TransferHLG, 700)
	data, err := Encode(f, func(o *EncodeOptions) {
		o.GainMapScale = 4
		o.UseMultiChannelGM = false
		o.Quality = 80
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	im, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := im.GainMap.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("gain map is %dx%d", b.Dx(), b.Dy())
	}
	if !isGrayImage(im.GainMap) {
		t.Fatalf("single channel gain map decoded as %T", im.GainMap)
	}
}

func TestReconstructRamp(t *testing.T) {
	const w, h = 128, 16
	f := NewRawFrame(w, h, TransferHLG)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := uint16(64 + x*7)
			f.Set(x, y, c, c, c, 3)
		}
	}
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	im, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	hdr, err := im.Reconstruct(0)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	want := frameToHDR(f).ToGamut(GamutBT709)

	prev := float32(-1)
	for x := 4; x < w-4; x += 8 {
		got := hdr.at(x, h/2)
		exp := want.at(x, h/2)
		if math.Abs(float64(got.g-exp.g)) > 0.06*float64(exp.g)+0.01 {
			t.Fatalf("column %d: got %v, want %v", x, got.g, exp.g)
		}
		if got.g < prev {
			t.Fatalf("reconstruction not monotonic at column %d: %v < %v", x, got.g, prev)
		}
		prev = got.g
	}

	sdrOnly, err := im.Reconstruct(1)
	if err != nil {
		t.Fatalf("reconstruct sdr: %v", err)
	}
	base := sampleSDR(im.Base, w-8, h/2)
	if v := sdrOnly.at(w-8, h/2); math.Abs(float64(v.g-base.g)) > 1e-3 {
		t.Fatalf("display boost 1 should yield the base: %v vs %v", v.g, base.g)
	}
}

func TestNormalizeKeepsGainMap(t *testing.T) {
	data, err := Encode(uniformFrame(32, 32, TransferPQ, 650))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	norm, err := Normalize(data)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, _, before, err := Split(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	_, _, after, err := Split(norm)
	if err != nil {
		t.Fatalf("split normalized: %v", err)
	}
	if !closeRel(before.HDRCapacityMax, after.HDRCapacityMax, 1e-4) || !closeRel(before.MaxContentBoost[1], after.MaxContentBoost[1], 1e-4) {
		t.Fatalf("metadata changed: %+v -> %+v", before, after)
	}

	if _, err := Normalize([]byte("not a jpeg")); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
