package hdrbridge

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
	hlgMaxNits   = 1000.0
	hlgGamma     = 1.2
)

const (
	defaultGainMapScale   = 1
	defaultBaseQuality    = 95
	defaultGainMapQuality = 95
	defaultGamma          = 1.0
)

const (
	jpegrVersion = "1.0"
)

const (
	// Offsets keep gain ratios finite for black pixels.
	gainOffsetSDR = 1.0 / 64.0
	gainOffsetHDR = 1.0 / 64.0

	// Lower bound for the largest log2 boost written to metadata.
	minLog2Boost = 1.0 / 64.0
)
