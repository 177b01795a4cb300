package hdrbridge

import "encoding/binary"

const (
	mpfNumPictures = 2
	mpfEndianSize  = 4
	mpfTagCount    = 3
	mpfTagSize     = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag        = 0xB000
	mpfNumberOfImagesTag = 0xB001
	mpfEntryTag          = 0xB002
	mpfEntrySize         = 16

	mpfAttrFormatJpeg  = 0x0000000
	mpfAttrTypePrimary = 0x030000
)

var (
	mpfSig       = []byte{'M', 'P', 'F', 0}
	mpfBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfVersion   = []byte{'0', '1', '0', '0'}
)

func calculateMpfSize() int {
	return len(mpfSig) + mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4 + mpfNumPictures*mpfEntrySize
}

// generateMpf builds the APP2 MPF payload for a primary image at offset 0 and a
// secondary image at secondaryOffset, counted from the TIFF header that follows "MPF\0".
func generateMpf(primarySize, secondarySize, secondaryOffset int) []byte {
	be := binary.BigEndian
	buf := make([]byte, 0, calculateMpfSize())
	buf = append(buf, mpfSig...)
	buf = append(buf, mpfBigEndian...)

	// First IFD directly follows the TIFF header.
	buf = be.AppendUint32(buf, mpfEndianSize+4)
	buf = be.AppendUint16(buf, mpfTagCount)

	buf = be.AppendUint16(buf, mpfVersionTag)
	buf = be.AppendUint16(buf, mpfTypeUndefined)
	buf = be.AppendUint32(buf, uint32(len(mpfVersion)))
	buf = append(buf, mpfVersion...)

	buf = be.AppendUint16(buf, mpfNumberOfImagesTag)
	buf = be.AppendUint16(buf, mpfTypeLong)
	buf = be.AppendUint32(buf, 1)
	buf = be.AppendUint32(buf, mpfNumPictures)

	buf = be.AppendUint16(buf, mpfEntryTag)
	buf = be.AppendUint16(buf, mpfTypeUndefined)
	buf = be.AppendUint32(buf, mpfEntrySize*mpfNumPictures)
	buf = be.AppendUint32(buf, uint32(mpfEndianSize+4+2+mpfTagCount*mpfTagSize+4))

	// Next IFD offset.
	buf = be.AppendUint32(buf, 0)

	buf = appendMpfEntry(buf, mpfAttrFormatJpeg|mpfAttrTypePrimary, primarySize, 0)
	buf = appendMpfEntry(buf, mpfAttrFormatJpeg, secondarySize, secondaryOffset)
	return buf
}

func appendMpfEntry(buf []byte, attr uint32, size, offset int) []byte {
	buf = binary.BigEndian.AppendUint32(buf, attr)
	buf = binary.BigEndian.AppendUint32(buf, uint32(size))
	buf = binary.BigEndian.AppendUint32(buf, uint32(offset))
	// Dependent image entry numbers.
	return binary.BigEndian.AppendUint32(buf, 0)
}

// mpfEntry is one decoded MP entry.
type mpfEntry struct {
	Attr   uint32
	Size   uint32
	Offset uint32
}

// parseMpfEntries decodes the MP entries of an APP2 payload that starts with "MPF\0".
func parseMpfEntries(payload []byte) ([]mpfEntry, error) {
	if len(payload) < len(mpfSig)+8 || string(payload[:len(mpfSig)]) != string(mpfSig) {
		return nil, decodeErrorf("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "MM":
		order = binary.BigEndian
	case "II":
		order = binary.LittleEndian
	default:
		return nil, decodeErrorf("mpf byte order invalid")
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd+2 > len(tiff) {
		return nil, decodeErrorf("mpf ifd out of range")
	}
	count := int(order.Uint16(tiff[ifd:]))
	for i := 0; i < count; i++ {
		off := ifd + 2 + i*mpfTagSize
		if off+mpfTagSize > len(tiff) {
			return nil, decodeErrorf("mpf tag out of range")
		}
		if order.Uint16(tiff[off:]) != mpfEntryTag {
			continue
		}
		n := int(order.Uint32(tiff[off+4:])) / mpfEntrySize
		start := int(order.Uint32(tiff[off+8:]))
		if n <= 0 || start+n*mpfEntrySize > len(tiff) {
			return nil, decodeErrorf("mpf entries out of range")
		}
		entries := make([]mpfEntry, n)
		for j := range entries {
			e := tiff[start+j*mpfEntrySize:]
			entries[j] = mpfEntry{Attr: order.Uint32(e), Size: order.Uint32(e[4:]), Offset: order.Uint32(e[8:])}
		}
		return entries, nil
	}
	return nil, decodeErrorf("mpf entry tag missing")
}
