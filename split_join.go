package hdrbridge

// Split extracts the primary and gain map JPEG streams and the gain map metadata.
// ISO 21496-1 metadata is preferred over XMP. Images without a gain map fail with
// ErrRequiredGainMap.
func Split(data []byte) (primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata, err error) {
	primaryJPEG, gainmapJPEG, err = splitContainer(data)
	if err != nil {
		return nil, nil, nil, err
	}
	if gainmapJPEG == nil {
		return nil, nil, nil, ErrRequiredGainMap
	}

	app1, app2, err := appSegments(gainmapJPEG)
	if err != nil {
		return nil, nil, nil, err
	}
	if iso := findPrefixed(app2, isoPrefix); iso != nil {
		meta, err = decodeGainmapMetadataISO(iso[len(isoPrefix):])
	} else if xmp := findPrefixed(app1, xmpPrefix); xmp != nil {
		meta, err = parseXMP(xmp)
	} else {
		return nil, nil, nil, ErrRequiredGainMap
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return primaryJPEG, gainmapJPEG, meta, nil
}

// Join assembles an UltraHDR container from a base JPEG, a gain map JPEG and metadata.
// EXIF and ICC segments of the base are kept.
func Join(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, encodeErrorf("metadata required")
	}
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}
	return assembleContainer(primaryJPEG, gainmapJPEG, meta)
}

// validateMetadata rejects values that cannot round-trip through the ISO encoding.
func validateMetadata(m *GainMapMetadata) error {
	for c := 0; c < 3; c++ {
		if !finite(m.MaxContentBoost[c]) || !finite(m.MinContentBoost[c]) || m.MinContentBoost[c] <= 0 || m.MaxContentBoost[c] < m.MinContentBoost[c] {
			return encodeErrorf("invalid content boost in channel %d: min %v max %v", c, m.MinContentBoost[c], m.MaxContentBoost[c])
		}
		if !finite(m.Gamma[c]) || m.Gamma[c] <= 0 {
			return encodeErrorf("invalid gamma in channel %d: %v", c, m.Gamma[c])
		}
		if !finite(m.OffsetSDR[c]) || !finite(m.OffsetHDR[c]) {
			return encodeErrorf("invalid offset in channel %d", c)
		}
	}
	if !finite(m.HDRCapacityMin) || !finite(m.HDRCapacityMax) || m.HDRCapacityMin <= 0 || m.HDRCapacityMax < m.HDRCapacityMin {
		return encodeErrorf("invalid hdr capacity %v..%v", m.HDRCapacityMin, m.HDRCapacityMax)
	}
	return nil
}
