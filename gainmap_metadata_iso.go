package hdrbridge

import (
	"encoding/binary"
	"errors"
	"math"
)

// ISO 21496-1 flag bits.
const (
	isoFlagMultiChannel   = 1 << 7
	isoFlagUseBaseColor   = 1 << 6
	isoFlagBackward       = 1 << 2
	isoFlagCommonDenom    = 1 << 3
	isoVersionBlockLength = 4
)

type fraction struct {
	n int64
	d uint32
}

func (f fraction) float() float32 {
	if f.d == 0 {
		return 0
	}
	return float32(float64(f.n) / float64(f.d))
}

// isoChannel holds the per-channel rationals of ISO 21496-1.
type isoChannel struct {
	gainMin, gainMax      fraction // log2
	gamma                 fraction
	baseOffset, altOffset fraction
}

type isoMetadata struct {
	baseHeadroom, altHeadroom fraction // log2
	channels                  [3]isoChannel
	channelCount              int
	useBaseColorSpace         bool
	backward                  bool
}

// isoReader is a big-endian reader with a sticky error.
type isoReader struct {
	in  []byte
	pos int
	err error
}

func (r *isoReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.in) {
		r.err = decodeErrorf("iso metadata truncated at %d", r.pos)
		return nil
	}
	b := r.in[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *isoReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *isoReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *isoReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *isoReader) s32() int32 { return int32(r.u32()) }

func decodeGainmapMetadataISO(data []byte) (*GainMapMetadata, error) {
	m, err := parseISO(data)
	if err != nil {
		return nil, err
	}
	if m.backward {
		return nil, decodeErrorf("iso metadata with HDR base rendition not supported")
	}
	meta := &GainMapMetadata{Version: jpegrVersion, UseBaseCG: m.useBaseColorSpace}
	for i := 0; i < 3; i++ {
		ch := m.channels[i]
		if m.channelCount == 1 {
			ch = m.channels[0]
		}
		meta.MinContentBoost[i] = exp2f(ch.gainMin.float())
		meta.MaxContentBoost[i] = exp2f(ch.gainMax.float())
		meta.Gamma[i] = ch.gamma.float()
		meta.OffsetSDR[i] = ch.baseOffset.float()
		meta.OffsetHDR[i] = ch.altOffset.float()
	}
	meta.HDRCapacityMin = exp2f(m.baseHeadroom.float())
	meta.HDRCapacityMax = exp2f(m.altHeadroom.float())
	return meta, nil
}

func parseISO(data []byte) (*isoMetadata, error) {
	r := &isoReader{in: data}
	if minVersion := r.u16(); r.err == nil && minVersion != 0 {
		return nil, decodeErrorf("unsupported iso min_version %d", minVersion)
	}
	_ = r.u16() // writer_version
	flags := r.u8()
	if r.err != nil {
		return nil, r.err
	}

	m := &isoMetadata{channelCount: 1}
	if flags&isoFlagMultiChannel != 0 {
		m.channelCount = 3
	}
	m.useBaseColorSpace = flags&isoFlagUseBaseColor != 0
	m.backward = flags&isoFlagBackward != 0

	if flags&isoFlagCommonDenom != 0 {
		d := r.u32()
		m.baseHeadroom = fraction{n: int64(r.u32()), d: d}
		m.altHeadroom = fraction{n: int64(r.u32()), d: d}
		for c := 0; c < m.channelCount; c++ {
			ch := &m.channels[c]
			ch.gainMin = fraction{n: int64(r.s32()), d: d}
			ch.gainMax = fraction{n: int64(r.s32()), d: d}
			ch.gamma = fraction{n: int64(r.u32()), d: d}
			ch.baseOffset = fraction{n: int64(r.s32()), d: d}
			ch.altOffset = fraction{n: int64(r.s32()), d: d}
		}
	} else {
		m.baseHeadroom = fraction{n: int64(r.u32()), d: r.u32()}
		m.altHeadroom = fraction{n: int64(r.u32()), d: r.u32()}
		for c := 0; c < m.channelCount; c++ {
			ch := &m.channels[c]
			ch.gainMin = fraction{n: int64(r.s32()), d: r.u32()}
			ch.gainMax = fraction{n: int64(r.s32()), d: r.u32()}
			ch.gamma = fraction{n: int64(r.u32()), d: r.u32()}
			ch.baseOffset = fraction{n: int64(r.s32()), d: r.u32()}
			ch.altOffset = fraction{n: int64(r.s32()), d: r.u32()}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	for c := 0; c < m.channelCount; c++ {
		ch := m.channels[c]
		if ch.gainMin.d == 0 || ch.gainMax.d == 0 || ch.gamma.d == 0 || ch.baseOffset.d == 0 || ch.altOffset.d == 0 {
			return nil, decodeErrorf("iso metadata has zero denominator in channel %d", c)
		}
	}
	if m.baseHeadroom.d == 0 || m.altHeadroom.d == 0 {
		return nil, decodeErrorf("iso metadata has zero headroom denominator")
	}
	return m, nil
}

func encodeGainmapMetadataISO(meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	m := isoMetadata{useBaseColorSpace: meta.UseBaseCG, channelCount: 3}
	if metaAllChannelsIdentical(meta) {
		m.channelCount = 1
	}
	var err error
	if m.baseHeadroom, err = unsignedFraction(log2f(meta.HDRCapacityMin)); err != nil {
		return nil, err
	}
	if m.altHeadroom, err = unsignedFraction(log2f(meta.HDRCapacityMax)); err != nil {
		return nil, err
	}
	for c := 0; c < m.channelCount; c++ {
		ch := &m.channels[c]
		if ch.gainMin, err = signedFraction(log2f(meta.MinContentBoost[c])); err != nil {
			return nil, err
		}
		if ch.gainMax, err = signedFraction(log2f(meta.MaxContentBoost[c])); err != nil {
			return nil, err
		}
		if ch.gamma, err = unsignedFraction(meta.Gamma[c]); err != nil {
			return nil, err
		}
		if ch.baseOffset, err = signedFraction(meta.OffsetSDR[c]); err != nil {
			return nil, err
		}
		if ch.altOffset, err = signedFraction(meta.OffsetHDR[c]); err != nil {
			return nil, err
		}
	}
	return m.marshal(), nil
}

func (m *isoMetadata) marshal() []byte {
	flags := uint8(0)
	if m.channelCount == 3 {
		flags |= isoFlagMultiChannel
	}
	if m.useBaseColorSpace {
		flags |= isoFlagUseBaseColor
	}
	if m.backward {
		flags |= isoFlagBackward
	}

	denom := m.baseHeadroom.d
	common := m.altHeadroom.d == denom
	for c := 0; c < m.channelCount && common; c++ {
		ch := m.channels[c]
		for _, f := range []fraction{ch.gainMin, ch.gainMax, ch.gamma, ch.baseOffset, ch.altOffset} {
			if f.d != denom {
				common = false
			}
		}
	}
	if common {
		flags |= isoFlagCommonDenom
	}

	out := make([]byte, 0, 128)
	out = binary.BigEndian.AppendUint16(out, 0) // min_version
	out = binary.BigEndian.AppendUint16(out, 0) // writer_version
	out = append(out, flags)
	u32 := func(v uint32) { out = binary.BigEndian.AppendUint32(out, v) }

	if common {
		u32(denom)
		u32(uint32(m.baseHeadroom.n))
		u32(uint32(m.altHeadroom.n))
		for c := 0; c < m.channelCount; c++ {
			ch := m.channels[c]
			u32(uint32(int32(ch.gainMin.n)))
			u32(uint32(int32(ch.gainMax.n)))
			u32(uint32(ch.gamma.n))
			u32(uint32(int32(ch.baseOffset.n)))
			u32(uint32(int32(ch.altOffset.n)))
		}
		return out
	}

	u32(uint32(m.baseHeadroom.n))
	u32(m.baseHeadroom.d)
	u32(uint32(m.altHeadroom.n))
	u32(m.altHeadroom.d)
	for c := 0; c < m.channelCount; c++ {
		ch := m.channels[c]
		for _, f := range []fraction{ch.gainMin, ch.gainMax, ch.gamma, ch.baseOffset, ch.altOffset} {
			u32(uint32(int32(f.n)))
			u32(f.d)
		}
	}
	return out
}

func buildIsoPayload(meta *GainMapMetadata) ([]byte, error) {
	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoPrefix)+len(encoded))
	payload = append(payload, isoPrefix...)
	return append(payload, encoded...), nil
}

// buildIsoVersionOnly is the primary image ISO block: namespace plus min/writer versions.
func buildIsoVersionOnly() []byte {
	payload := append([]byte{}, isoPrefix...)
	return append(payload, make([]byte, isoVersionBlockLength)...)
}

func metaAllChannelsIdentical(m *GainMapMetadata) bool {
	for i := 1; i < 3; i++ {
		if m.MinContentBoost[0] != m.MinContentBoost[i] ||
			m.MaxContentBoost[0] != m.MaxContentBoost[i] ||
			m.Gamma[0] != m.Gamma[i] ||
			m.OffsetSDR[0] != m.OffsetSDR[i] ||
			m.OffsetHDR[0] != m.OffsetHDR[i] {
			return false
		}
	}
	return true
}

func signedFraction(v float32) (fraction, error) {
	const maxInt32 = uint32(math.MaxInt32)
	num, den, ok := continuedFraction(math.Abs(float64(v)), maxInt32)
	if !ok {
		return fraction{}, encodeErrorf("cannot encode %v as signed fraction", v)
	}
	n := int64(num)
	if v < 0 {
		n = -n
	}
	return fraction{n: n, d: den}, nil
}

func unsignedFraction(v float32) (fraction, error) {
	num, den, ok := continuedFraction(float64(v), math.MaxUint32)
	if !ok {
		return fraction{}, encodeErrorf("cannot encode %v as unsigned fraction", v)
	}
	return fraction{n: int64(num), d: den}, nil
}

// continuedFraction approximates v with the largest denominator keeping the numerator
// within maxNumerator.
func continuedFraction(v float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNumerator) {
		return 0, 0, false
	}
	maxD := float64(math.MaxUint32)
	if v > 1 {
		maxD = math.Floor(float64(maxNumerator) / v)
	}

	den, prevD := uint32(1), uint32(0)
	rem := v - math.Floor(v)
	for iter := 0; iter < 39; iter++ {
		numF := float64(den) * v
		if numF > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(numF))
		if numF == float64(num) || rem == 0 {
			return num, den, true
		}
		rem = 1.0 / rem
		newD := float64(prevD) + math.Floor(rem)*float64(den)
		if newD > maxD {
			return num, den, true
		}
		prevD = den
		den = uint32(newD)
		rem -= math.Floor(rem)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}
