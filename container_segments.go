package hdrbridge

import (
	"bytes"
	"errors"
)

// assembleContainer joins a base JPEG and a gain map JPEG into an UltraHDR container.
//
// Primary: SOI, APP1 EXIF, APP1 XMP directory, APP2 ISO version, APP2 ICC, APP2 MPF, base body.
// Secondary: SOI, APP1 XMP hdrgm, APP2 ISO metadata, gain map body.
// EXIF and ICC are carried over from primaryJPEG when present, other APPn segments are dropped.
func assembleContainer(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	exif, icc, err := extractExifAndIcc(primaryJPEG)
	if err != nil {
		return nil, err
	}
	primary, err := stripAppSegments(primaryJPEG)
	if err != nil {
		return nil, err
	}
	gainmap, err := stripAppSegments(gainmapJPEG)
	if err != nil {
		return nil, err
	}

	secondaryXMP := generateSecondaryXMP(meta)
	secondaryISO, err := buildIsoPayload(meta)
	if err != nil {
		return nil, err
	}
	secondaryImageSize := len(gainmap) + appSize(secondaryXMP) + appSize(secondaryISO)

	var out bytes.Buffer
	out.Grow(len(primary) + secondaryImageSize + 2048)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	writeAppSegment(&out, markerAPP1, exif)
	writeAppSegment(&out, markerAPP1, generatePrimaryXMP(secondaryImageSize))
	writeAppSegment(&out, markerAPP2, buildIsoVersionOnly())
	for _, chunk := range icc {
		writeAppSegment(&out, markerAPP2, chunk)
	}

	// MPF offsets count from its TIFF header: APP2 marker, length and "MPF\0" come first.
	primaryImageSize := out.Len() + 4 + calculateMpfSize() + len(primary) - 2
	secondaryOffset := primaryImageSize - out.Len() - 8
	writeAppSegment(&out, markerAPP2, generateMpf(primaryImageSize, secondaryImageSize, secondaryOffset))
	out.Write(primary[2:])

	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	writeAppSegment(&out, markerAPP1, secondaryXMP)
	writeAppSegment(&out, markerAPP2, secondaryISO)
	out.Write(gainmap[2:])

	if out.Len() != primaryImageSize+secondaryImageSize {
		return nil, encodeErrorf("container size mismatch: %d != %d+%d", out.Len(), primaryImageSize, secondaryImageSize)
	}
	return out.Bytes(), nil
}

// appSize is the on-disk size of an APPn segment with the given payload.
func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}
