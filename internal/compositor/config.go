// Package compositor turns an UltraHDR photo into a short HLG video.
//
// A producer renders the photo into pooled RGBA1010102 frames and feeds a bounded
// queue; a VideoEncoder drains it. Both sides stop together on failure or cancellation.
package compositor

import "time"

// MimeHEVC is the codec recorded for hardware encoders.
const MimeHEVC = "video/hevc"

// Config describes the produced clip.
type Config struct {
	FrameCount       int
	FrameRate        int
	BitRate          int
	KeyframeInterval time.Duration
	// QueueDepth bounds both the frame queue and the number of pooled buffers.
	QueueDepth int
	MimeType   string

	// MaxDimension limits the longer side of the video, 0 keeps the photo size.
	MaxDimension int

	// DisplayBoost selects the rendition headroom, non-positive uses the full capacity.
	DisplayBoost float32
}

// DefaultConfig returns a one second 30 fps HEVC clip.
func DefaultConfig() Config {
	return Config{
		FrameCount:       30,
		FrameRate:        30,
		BitRate:          5_000_000,
		KeyframeInterval: time.Second,
		QueueDepth:       32,
		MimeType:         MimeHEVC,
		MaxDimension:     3840,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.FrameCount <= 0 {
		c.FrameCount = d.FrameCount
	}
	if c.FrameRate <= 0 {
		c.FrameRate = d.FrameRate
	}
	if c.BitRate <= 0 {
		c.BitRate = d.BitRate
	}
	if c.KeyframeInterval <= 0 {
		c.KeyframeInterval = d.KeyframeInterval
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.MimeType == "" {
		c.MimeType = d.MimeType
	}
	if c.MaxDimension < 0 {
		c.MaxDimension = 0
	}
}

// keyframeEvery returns the keyframe period in frames.
func (c Config) keyframeEvery() int {
	n := int(c.KeyframeInterval * time.Duration(c.FrameRate) / time.Second)
	if n < 1 {
		n = 1
	}
	return n
}

// Timestamp returns the presentation time of frame i.
func (c Config) Timestamp(i int) time.Duration {
	return time.Duration(i) * time.Second / time.Duration(c.FrameRate)
}
