package hdrbridge

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

const (
	hdrgmNamespace     = "http://ns.adobe.com/hdr-gain-map/1.0/"
	containerNamespace = "http://ns.google.com/photos/1.0/container/"
	itemNamespace      = "http://ns.google.com/photos/1.0/container/item/"
)

var (
	reVersion   = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reBaseIsHDR = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
	reItemLen   = regexp.MustCompile(`Item:Semantic="GainMap"[^>]*Item:Length="(\d+)"|Item:Length="(\d+)"[^>]*Item:Semantic="GainMap"`)
)

// xmpFloatField binds an hdrgm attribute to the linear metadata value it carries.
type xmpFloatField struct {
	name     string
	re       *regexp.Regexp
	required bool
	log2     bool
	set      func(m *GainMapMetadata, v float32)
}

var xmpFloatFields = []xmpFloatField{
	{name: "GainMapMax", re: hdrgmAttr("GainMapMax"), required: true, log2: true, set: func(m *GainMapMetadata, v float32) { m.MaxContentBoost = [3]float32{v, v, v} }},
	{name: "GainMapMin", re: hdrgmAttr("GainMapMin"), log2: true, set: func(m *GainMapMetadata, v float32) { m.MinContentBoost = [3]float32{v, v, v} }},
	{name: "Gamma", re: hdrgmAttr("Gamma"), set: func(m *GainMapMetadata, v float32) { m.Gamma = [3]float32{v, v, v} }},
	{name: "OffsetSDR", re: hdrgmAttr("OffsetSDR"), set: func(m *GainMapMetadata, v float32) { m.OffsetSDR = [3]float32{v, v, v} }},
	{name: "OffsetHDR", re: hdrgmAttr("OffsetHDR"), set: func(m *GainMapMetadata, v float32) { m.OffsetHDR = [3]float32{v, v, v} }},
	{name: "HDRCapacityMin", re: hdrgmAttr("HDRCapacityMin"), log2: true, set: func(m *GainMapMetadata, v float32) { m.HDRCapacityMin = v }},
	{name: "HDRCapacityMax", re: hdrgmAttr("HDRCapacityMax"), required: true, log2: true, set: func(m *GainMapMetadata, v float32) { m.HDRCapacityMax = v }},
}

func hdrgmAttr(name string) *regexp.Regexp {
	return regexp.MustCompile(`hdrgm:` + name + `="([^"]+)"`)
}

// parseXMP reads hdrgm attributes of a gain map APP1 payload.
func parseXMP(app1 []byte) (*GainMapMetadata, error) {
	if !bytes.HasPrefix(app1, xmpPrefix) || len(app1) < len(xmpPrefix)+1 {
		return nil, decodeErrorf("xmp namespace mismatch")
	}
	xml := string(app1[len(xmpPrefix):])

	meta := &GainMapMetadata{
		UseBaseCG:       true,
		MinContentBoost: [3]float32{1, 1, 1},
		MaxContentBoost: [3]float32{1, 1, 1},
		Gamma:           [3]float32{1, 1, 1},
		OffsetSDR:       [3]float32{gainOffsetSDR, gainOffsetSDR, gainOffsetSDR},
		OffsetHDR:       [3]float32{gainOffsetHDR, gainOffsetHDR, gainOffsetHDR},
		HDRCapacityMin:  1,
		HDRCapacityMax:  1,
	}

	m := reVersion.FindStringSubmatch(xml)
	if m == nil {
		return nil, decodeErrorf("xmp missing hdrgm:Version")
	}
	meta.Version = m[1]

	for _, f := range xmpFloatFields {
		m := f.re.FindStringSubmatch(xml)
		if m == nil {
			if f.required {
				return nil, decodeErrorf("xmp missing hdrgm:%s", f.name)
			}
			continue
		}
		v, err := strconv.ParseFloat(m[1], 32)
		if err != nil {
			return nil, decodeErrorf("xmp attribute %q: %v", m[0], err)
		}
		if f.log2 {
			v = float64(exp2f(float32(v)))
		}
		f.set(meta, float32(v))
	}

	if m := reBaseIsHDR.FindStringSubmatch(xml); m != nil && m[1] == "True" {
		return nil, decodeErrorf("base rendition HDR not supported")
	}
	return meta, nil
}

// primaryXMPGainMapLength returns Item:Length of the GainMap container item.
func primaryXMPGainMapLength(app1 []byte) (int, bool) {
	m := reItemLen.FindSubmatch(app1)
	if m == nil {
		return 0, false
	}
	s := m[1]
	if len(s) == 0 {
		s = m[2]
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// generatePrimaryXMP describes the container directory of the primary image.
func generatePrimaryXMP(secondaryLength int) []byte {
	var b bytes.Buffer
	b.Write(xmpPrefix)
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">`)
	b.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`)
	fmt.Fprintf(&b, `<rdf:Description xmlns:Container=%q xmlns:Item=%q xmlns:hdrgm=%q hdrgm:Version=%q>`,
		containerNamespace, itemNamespace, hdrgmNamespace, jpegrVersion)
	b.WriteString(`<Container:Directory><rdf:Seq>`)
	b.WriteString(`<rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/></rdf:li>`)
	fmt.Fprintf(&b, `<rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="%d"/></rdf:li>`, secondaryLength)
	b.WriteString(`</rdf:Seq></Container:Directory></rdf:Description></rdf:RDF></x:xmpmeta>`)
	return b.Bytes()
}

// generateSecondaryXMP writes metadata as hdrgm attributes. Multi-channel values are
// collapsed to the channel extremes; the ISO block keeps the exact per-channel values.
func generateSecondaryXMP(meta *GainMapMetadata) []byte {
	gmin := meta.MinContentBoost[0]
	gmax := meta.MaxContentBoost[0]
	for c := 1; c < 3; c++ {
		if meta.MinContentBoost[c] < gmin {
			gmin = meta.MinContentBoost[c]
		}
		if meta.MaxContentBoost[c] > gmax {
			gmax = meta.MaxContentBoost[c]
		}
	}
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'f', 6, 32) }

	var b bytes.Buffer
	b.Write(xmpPrefix)
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">`)
	b.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`)
	fmt.Fprintf(&b, `<rdf:Description xmlns:hdrgm=%q`, hdrgmNamespace)
	fmt.Fprintf(&b, ` hdrgm:Version=%q`, meta.Version)
	fmt.Fprintf(&b, ` hdrgm:GainMapMin="%s"`, f(log2f(gmin)))
	fmt.Fprintf(&b, ` hdrgm:GainMapMax="%s"`, f(log2f(gmax)))
	fmt.Fprintf(&b, ` hdrgm:Gamma="%s"`, f(meta.Gamma[0]))
	fmt.Fprintf(&b, ` hdrgm:OffsetSDR="%s"`, f(meta.OffsetSDR[0]))
	fmt.Fprintf(&b, ` hdrgm:OffsetHDR="%s"`, f(meta.OffsetHDR[0]))
	fmt.Fprintf(&b, ` hdrgm:HDRCapacityMin="%s"`, f(log2f(meta.HDRCapacityMin)))
	fmt.Fprintf(&b, ` hdrgm:HDRCapacityMax="%s"`, f(log2f(meta.HDRCapacityMax)))
	b.WriteString(` hdrgm:BaseRenditionIsHDR="False"/>`)
	b.WriteString(`</rdf:RDF></x:xmpmeta>`)
	return b.Bytes()
}
