package hdrbridge

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/garyhouston/jpegsegs"
)

// Report describes an UltraHDR container.
type Report struct {
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	GainMapWidth  int              `json:"gainmap_width"`
	GainMapHeight int              `json:"gainmap_height"`
	PrimarySize   int              `json:"primary_size"`
	GainMapSize   int              `json:"gainmap_size"`
	XMPItemLength int              `json:"xmp_item_length,omitempty"`
	HasExif       bool             `json:"has_exif,omitempty"`
	ICCChunks     int              `json:"icc_chunks,omitempty"`
	Meta          *GainMapMetadata `json:"meta"`
	Primary       []SegmentInfo    `json:"primary_segments"`
	GainMap       []SegmentInfo    `json:"gainmap_segments"`
}

// SegmentInfo is one header segment of a JPEG stream.
type SegmentInfo struct {
	Marker string `json:"marker"`
	Size   int    `json:"size"`
	Kind   string `json:"kind,omitempty"`
}

// Inspect reports dimensions, metadata and header segments of an UltraHDR container.
func Inspect(data []byte) (*Report, error) {
	primary, gainmap, meta, err := Split(data)
	if err != nil {
		return nil, err
	}
	r := &Report{Meta: meta, PrimarySize: len(primary), GainMapSize: len(gainmap)}

	pc, err := jpeg.DecodeConfig(bytes.NewReader(primary))
	if err != nil {
		return nil, decodeErrorf("primary config: %v", err)
	}
	gc, err := jpeg.DecodeConfig(bytes.NewReader(gainmap))
	if err != nil {
		return nil, decodeErrorf("gainmap config: %v", err)
	}
	r.Width, r.Height = pc.Width, pc.Height
	r.GainMapWidth, r.GainMapHeight = gc.Width, gc.Height

	if r.Primary, err = listSegments(primary); err != nil {
		return nil, err
	}
	if r.GainMap, err = listSegments(gainmap); err != nil {
		return nil, err
	}

	app1, _, err := appSegments(primary)
	if err != nil {
		return nil, err
	}
	if xmp := findPrefixed(app1, xmpPrefix); xmp != nil {
		r.XMPItemLength, _ = primaryXMPGainMapLength(xmp)
	}
	exif, icc, err := extractExifAndIcc(primary)
	if err != nil {
		return nil, err
	}
	r.HasExif = exif != nil
	r.ICCChunks = len(icc)
	return r, nil
}

func listSegments(jpegData []byte) ([]SegmentInfo, error) {
	var segs []jpegsegs.Segment
	scanner, err := jpegsegs.NewScanner(bytes.NewReader(jpegData))
	if err == nil {
		segs, err = jpegsegs.ReadSegments(scanner)
	}
	if err != nil {
		return nil, decodeErrorf("read segments: %v", err)
	}
	out := make([]SegmentInfo, 0, len(segs))
	for _, s := range segs {
		out = append(out, SegmentInfo{Marker: s.Marker.Name(), Size: len(s.Data), Kind: segmentKind(s)})
	}
	return out, nil
}

func segmentKind(s jpegsegs.Segment) string {
	switch {
	case s.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(s.Data, xmpPrefix):
		if bytes.Contains(s.Data, []byte("Container:Directory")) {
			return "xmp-container"
		}
		return "xmp-hdrgm"
	case s.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(s.Data, exifSig):
		return "exif"
	case s.Marker == jpegsegs.APP0+2:
		if ok, _ := jpegsegs.GetMPFHeader(s.Data); ok {
			return "mpf"
		}
		if bytes.HasPrefix(s.Data, isoPrefix) {
			if len(s.Data) == len(isoPrefix)+isoVersionBlockLength {
				return "iso21496-version"
			}
			return "iso21496"
		}
		if bytes.HasPrefix(s.Data, iccSig) {
			return "icc"
		}
	}
	return ""
}

// String renders a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%dx%d base, %dx%d gain map, capacity %.3f..%.3f",
		r.Width, r.Height, r.GainMapWidth, r.GainMapHeight, r.Meta.HDRCapacityMin, r.Meta.HDRCapacityMax)
}
