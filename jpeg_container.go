package hdrbridge

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const (
	markerStart = 0xFF
	markerTEM   = 0x01
	markerRST0  = 0xD0
	markerRST7  = 0xD7
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
	markerAPP15 = 0xEF
	markerCOM   = 0xFE
)

const (
	xmpNamespace = "http://ns.adobe.com/xap/1.0/"
	isoNamespace = "urn:iso:std:iso:ts:21496:-1"
)

var (
	xmpPrefix = append([]byte(xmpNamespace), 0)
	isoPrefix = append([]byte(isoNamespace), 0)
	exifSig   = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig    = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)

func isStandalone(marker byte) bool {
	return marker == markerSOI || marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7)
}

// headerSegment is a marker segment found before SOS. start and end delimit the
// payload within the scanned buffer.
type headerSegment struct {
	marker     byte
	start, end int
}

// walkHeader visits marker segments of the JPEG that starts at data[0] up to SOS or EOI.
// fn returns false to stop the walk.
func walkHeader(data []byte, fn func(seg headerSegment) bool) error {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return decodeErrorf("missing SOI")
	}
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			return nil
		}
		if isStandalone(marker) {
			continue
		}
		if pos+1 >= len(data) {
			return decodeErrorf("truncated marker %#x", marker)
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return decodeErrorf("invalid length for marker %#x", marker)
		}
		if !fn(headerSegment{marker: marker, start: pos + 2, end: pos + segLen}) {
			return nil
		}
		pos += segLen
	}
	return nil
}

// splitContainer locates the primary and gain map JPEG streams, trusting MPF when it
// points at a valid SOI and falling back to a marker scan otherwise.
func splitContainer(data []byte) (primary, gainmap []byte, err error) {
	if ranges, ok := rangesByMPF(data); ok {
		return data[ranges[0][0]:ranges[0][1]], data[ranges[1][0]:ranges[1][1]], nil
	}
	ranges, err := scanJPEGs(data)
	if err != nil {
		return nil, nil, err
	}
	if len(ranges) < 2 {
		return data[ranges[0][0]:ranges[0][1]], nil, nil
	}
	return data[ranges[0][0]:ranges[0][1]], data[ranges[1][0]:ranges[1][1]], nil
}

func rangesByMPF(data []byte) ([2][2]int, bool) {
	var out [2][2]int
	var entries []mpfEntry
	tiffStart := 0
	err := walkHeader(data, func(seg headerSegment) bool {
		payload := data[seg.start:seg.end]
		if seg.marker != markerAPP2 || !bytes.HasPrefix(payload, mpfSig) {
			return true
		}
		var perr error
		entries, perr = parseMpfEntries(payload)
		if perr != nil {
			entries = nil
		}
		tiffStart = seg.start + len(mpfSig)
		return false
	})
	if err != nil || len(entries) < 2 {
		return out, false
	}

	var primary, secondary *mpfEntry
	for i := range entries {
		e := &entries[i]
		if e.Attr&mpfAttrTypePrimary != 0 && primary == nil {
			primary = e
		} else if secondary == nil {
			secondary = e
		}
	}
	if primary == nil || secondary == nil || primary.Size == 0 || secondary.Size == 0 {
		return out, false
	}
	secStart := tiffStart + int(secondary.Offset)
	secEnd := secStart + int(secondary.Size)
	if int(primary.Size) > len(data) || secEnd > len(data) || secStart+1 >= len(data) {
		return out, false
	}
	if data[secStart] != markerStart || data[secStart+1] != markerSOI {
		return out, false
	}
	out[0] = [2]int{0, int(primary.Size)}
	out[1] = [2]int{secStart, secEnd}
	return out, true
}

func scanJPEGs(data []byte) ([][2]int, error) {
	var ranges [][2]int
	for i := 0; i+1 < len(data); {
		if data[i] != markerStart || data[i+1] != markerSOI {
			i++
			continue
		}
		end, err := findJPEGEnd(data, i)
		if err != nil {
			if len(ranges) > 0 {
				break
			}
			return nil, err
		}
		ranges = append(ranges, [2]int{i, end})
		i = end
	}
	if len(ranges) == 0 {
		return nil, decodeErrorf("no JPEG images found")
	}
	return ranges, nil
}

// findJPEGEnd returns the offset just past the EOI of the JPEG starting at start.
func findJPEGEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, decodeErrorf("not a JPEG SOI at %d", start)
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		if inScan {
			next := data[pos+1]
			switch {
			case next == 0x00, next >= markerRST0 && next <= markerRST7, next == markerStart:
				pos++
				continue
			case next == markerEOI:
				return pos + 2, nil
			}
			// A marker between scans (DHT, SOS of a progressive image).
			inScan = false
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerEOI {
			return pos, nil
		}
		if isStandalone(marker) {
			continue
		}
		if pos+1 >= len(data) {
			return 0, decodeErrorf("truncated marker segment")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 {
			return 0, decodeErrorf("invalid marker length")
		}
		pos += segLen
		if marker == markerSOS {
			inScan = true
		}
	}
	return 0, decodeErrorf("no EOI found")
}

// appSegments copies APP1 and APP2 payloads from the header of a single JPEG.
func appSegments(jpegData []byte) (app1, app2 [][]byte, err error) {
	err = walkHeader(jpegData, func(seg headerSegment) bool {
		payload := append([]byte(nil), jpegData[seg.start:seg.end]...)
		switch seg.marker {
		case markerAPP1:
			app1 = append(app1, payload)
		case markerAPP2:
			app2 = append(app2, payload)
		}
		return true
	})
	return app1, app2, err
}

func findPrefixed(segs [][]byte, prefix []byte) []byte {
	for _, seg := range segs {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

// extractExifAndIcc returns the EXIF APP1 payload and the ordered ICC APP2 chunks.
func extractExifAndIcc(jpegData []byte) ([]byte, [][]byte, error) {
	app1, app2, err := appSegments(jpegData)
	if err != nil {
		return nil, nil, err
	}
	exif := findPrefixed(app1, exifSig)

	var icc [][]byte
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, iccSig) && len(seg) >= len(iccSig)+2 {
			icc = append(icc, seg)
		}
	}
	sort.SliceStable(icc, func(i, j int) bool { return icc[i][len(iccSig)] < icc[j][len(iccSig)] })
	return exif, icc, nil
}

// withExifAndIcc copies EXIF and ICC segments of src into the header of dst.
func withExifAndIcc(dst, src []byte) ([]byte, error) {
	exif, icc, err := extractExifAndIcc(src)
	if err != nil {
		return nil, err
	}
	if exif == nil && icc == nil {
		return dst, nil
	}
	var out bytes.Buffer
	out.Grow(len(dst) + len(exif) + 4)
	out.Write(dst[:2])
	writeAppSegment(&out, markerAPP1, exif)
	for _, chunk := range icc {
		writeAppSegment(&out, markerAPP2, chunk)
	}
	out.Write(dst[2:])
	return out.Bytes(), nil
}

// writeAppSegment writes nothing for an empty payload.
func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	if len(payload) == 0 {
		return
	}
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(payload)+2))
	out.Write(l[:])
	out.Write(payload)
}

// stripAppSegments removes APPn and COM segments, keeping tables and image data.
func stripAppSegments(jpegData []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(jpegData))
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	last := 2
	err := walkHeader(jpegData, func(seg headerSegment) bool {
		// seg.start-4 is the marker position.
		if (seg.marker >= markerAPP0 && seg.marker <= markerAPP15) || seg.marker == markerCOM {
			last = seg.end
			return true
		}
		out.Write(jpegData[seg.start-4 : seg.end])
		last = seg.end
		return true
	})
	if err != nil {
		return nil, err
	}
	out.Write(jpegData[last:])
	return out.Bytes(), nil
}
