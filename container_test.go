package hdrbridge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/garyhouston/jpegsegs"
)

type markerInfo struct {
	marker byte
	prefix string
}

func markerSequence(t *testing.T, jpegData []byte) []markerInfo {
	t.Helper()
	var out []markerInfo
	err := walkHeader(jpegData, func(seg headerSegment) bool {
		p := jpegData[seg.start:seg.end]
		prefix := ""
		switch {
		case bytes.HasPrefix(p, xmpPrefix):
			prefix = "xmp"
		case bytes.HasPrefix(p, isoPrefix):
			prefix = "iso"
		case bytes.HasPrefix(p, mpfSig):
			prefix = "mpf"
		}
		out = append(out, markerInfo{marker: seg.marker, prefix: prefix})
		return true
	})
	if err != nil {
		t.Fatalf("walk header: %v", err)
	}
	return out
}

// findMpfPayload returns the MPF payload and the absolute offset of its TIFF header.
func findMpfPayload(t *testing.T, data []byte) ([]byte, int) {
	t.Helper()
	var (
		payload []byte
		tiff    int
	)
	_ = walkHeader(data, func(seg headerSegment) bool {
		if seg.marker == markerAPP2 && bytes.HasPrefix(data[seg.start:seg.end], mpfSig) {
			payload = data[seg.start:seg.end]
			tiff = seg.start + len(mpfSig)
			return false
		}
		return true
	})
	if payload == nil {
		t.Fatalf("mpf segment missing")
	}
	return payload, tiff
}

func encodeTestFrame(t *testing.T, w, h int, tf TransferFunction, code func(x, y int) uint16) []byte {
	t.Helper()
	f := NewRawFrame(w, h, tf)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := code(x, y)
			f.Set(x, y, c, c, c, 3)
		}
	}
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestContainerLayout(t *testing.T) {
	data := encodeTestFrame(t, 64, 32, TransferHLG, func(x, _ int) uint16 { return uint16(200 + x*12) })

	ranges, err := scanJPEGs(data)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("expected 2 JPEG streams, got %d", len(ranges))
	}
	if ranges[1][1] != len(data) {
		t.Fatalf("trailing bytes after gain map: %d", len(data)-ranges[1][1])
	}

	primary := data[ranges[0][0]:ranges[0][1]]
	secondary := data[ranges[1][0]:ranges[1][1]]

	want := []markerInfo{{markerAPP1, "xmp"}, {markerAPP2, "iso"}, {markerAPP2, "mpf"}}
	got := markerSequence(t, primary)
	if len(got) < len(want) {
		t.Fatalf("primary header too short: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("primary segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	got = markerSequence(t, secondary)
	if len(got) < 2 || got[0] != (markerInfo{markerAPP1, "xmp"}) || got[1] != (markerInfo{markerAPP2, "iso"}) {
		t.Fatalf("secondary header = %+v", got)
	}

	payload, tiffStart := findMpfPayload(t, data)
	entries, err := parseMpfEntries(payload)
	if err != nil {
		t.Fatalf("parse mpf: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("mpf entries: %d", len(entries))
	}
	if entries[0].Attr&mpfAttrTypePrimary == 0 || entries[0].Offset != 0 {
		t.Fatalf("primary entry %+v", entries[0])
	}
	if int(entries[0].Size) != len(primary) {
		t.Fatalf("primary size %d, actual %d", entries[0].Size, len(primary))
	}
	if int(entries[1].Size) != len(secondary) {
		t.Fatalf("secondary size %d, actual %d", entries[1].Size, len(secondary))
	}
	if tiffStart+int(entries[1].Offset) != ranges[1][0] {
		t.Fatalf("secondary offset %d points at %d, gain map starts at %d", entries[1].Offset, tiffStart+int(entries[1].Offset), ranges[1][0])
	}

	app1, _, err := appSegments(primary)
	if err != nil {
		t.Fatalf("app segments: %v", err)
	}
	n, ok := primaryXMPGainMapLength(findPrefixed(app1, xmpPrefix))
	if !ok || n != len(secondary) {
		t.Fatalf("Item:Length %d, secondary is %d bytes", n, len(secondary))
	}
}

func TestContainerSegmentsReadable(t *testing.T) {
	data := encodeTestFrame(t, 16, 16, TransferPQ, func(x, y int) uint16 { return uint16(400 + x*8 + y*4) })
	primary, gainmap, err := splitContainer(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	for name, img := range map[string][]byte{"primary": primary, "gainmap": gainmap} {
		var segs []jpegsegs.Segment
		scanner, err := jpegsegs.NewScanner(bytes.NewReader(img))
		if err == nil {
			segs, err = jpegsegs.ReadSegments(scanner)
		}
		if err != nil {
			t.Fatalf("%s: read segments: %v", name, err)
		}
		if len(segs) == 0 || segs[len(segs)-1].Marker != jpegsegs.SOS {
			t.Fatalf("%s: header does not end with SOS", name)
		}
		if segs[0].Marker != jpegsegs.APP0+1 {
			t.Fatalf("%s: first segment is %s", name, segs[0].Marker.Name())
		}
	}

	isMPF := false
	var segs []jpegsegs.Segment
	if scanner, err := jpegsegs.NewScanner(bytes.NewReader(primary)); err == nil {
		segs, _ = jpegsegs.ReadSegments(scanner)
	}
	for _, s := range segs {
		if ok, _ := jpegsegs.GetMPFHeader(s.Data); ok && s.Marker == jpegsegs.APP0+2 {
			isMPF = true
		}
	}
	if !isMPF {
		t.Fatalf("primary has no MPF segment")
	}
}

func TestStripAppSegments(t *testing.T) {
	data := encodeTestFrame(t, 8, 8, TransferHLG, func(x, _ int) uint16 { return uint16(300 + x*60) })
	primary, _, err := splitContainer(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	stripped, err := stripAppSegments(primary)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	for _, m := range markerSequence(t, stripped) {
		if m.marker >= markerAPP0 && m.marker <= markerAPP15 {
			t.Fatalf("APP segment %#x survived", m.marker)
		}
	}
	if _, err := decodeJPEG(stripped); err != nil {
		t.Fatalf("stripped JPEG does not decode: %v", err)
	}
}

func TestSplitWithoutGainMap(t *testing.T) {
	data := encodeTestFrame(t, 8, 8, TransferHLG, func(x, _ int) uint16 { return uint16(300 + x*60) })
	primary, _, err := splitContainer(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	plain, err := stripAppSegments(primary)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if _, _, _, err := Split(plain); !errors.Is(err, ErrRequiredGainMap) {
		t.Fatalf("expected ErrRequiredGainMap, got %v", err)
	}
}
