// Package pipeline wires frame capture, the UltraHDR codec, the video compositor and
// the media store into the user facing conversions.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/hdrbridge"
	"github.com/vearutop/hdrbridge/internal/compositor"
	"github.com/vearutop/hdrbridge/internal/framesource"
	"github.com/vearutop/hdrbridge/internal/mediastore"
)

// SaveQuality is used when re-encoding images for storage.
const SaveQuality = 95

// Service runs conversions and stores their results.
type Service struct {
	Store      *mediastore.Store
	Compositor *compositor.Compositor
	Log        *logrus.Entry

	// Encode adjusts hdrbridge.EncodeFile options.
	Encode []func(o *hdrbridge.EncodeOptions)

	// Now is used for display names.
	Now func() time.Time
}

// New creates a service storing into store.
func New(store *mediastore.Store) *Service {
	return &Service{Store: store, Compositor: compositor.New(), Now: time.Now}
}

func (s *Service) log() *logrus.Entry {
	if s.Log != nil {
		return s.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (s *Service) millis() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}

func saveQuality(o *hdrbridge.EncodeOptions) {
	o.Quality = SaveQuality
	o.GainMapQuality = SaveQuality
}

// VideoFrameToUltraHDR captures the frame at positionMs and stores it as
// Pictures/<app>/ultrahdr_<millis>.jpg. Staged files are removed on every path.
func (s *Service) VideoFrameToUltraHDR(ctx context.Context, src framesource.Source, positionMs int64) (string, error) {
	log := s.log().WithFields(logrus.Fields{"position_ms": positionMs})

	frame, err := src.Frame(ctx, positionMs)
	if err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}

	raw, err := s.Store.Stage("rgba1010102", ".raw")
	if err != nil {
		return "", err
	}
	defer func() { s.cleanup(log, raw) }()

	result, err := s.Store.Stage("ultrahdr", ".jpg")
	if err != nil {
		return "", err
	}
	defer func() { s.cleanup(log, result) }()

	if err := os.WriteFile(raw.Path, frame.Pix, 0o600); err != nil {
		return "", fmt.Errorf("%w: write raw frame: %w", hdrbridge.ErrIO, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	if err := hdrbridge.EncodeFile(frame.Width, frame.Height, raw.Path, result.Path, frame.Transfer, s.Encode...); err != nil {
		return "", fmt.Errorf("encode ultrahdr: %w", err)
	}

	encoded, err := os.ReadFile(result.Path)
	if err != nil {
		return "", fmt.Errorf("%w: read encoded image: %w", hdrbridge.ErrIO, err)
	}
	normalized, err := hdrbridge.Normalize(encoded, saveQuality)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}

	name := fmt.Sprintf("ultrahdr_%d.jpg", s.millis())
	p, err := s.Store.Insert(mediastore.KindImage, name, bytes.NewReader(normalized))
	if err != nil {
		return "", err
	}

	log.WithFields(logrus.Fields{
		"width":    frame.Width,
		"height":   frame.Height,
		"transfer": frame.Transfer.String(),
		"bytes":    len(normalized),
		"elapsed":  time.Since(start).String(),
	}).Info("frame saved as ultrahdr")

	return p, nil
}

// UltraHDRToVideo composes a short HLG clip from an UltraHDR photo and stores it under
// Movies/<app>. Photos without a gain map fail with hdrbridge.ErrRequiredUltraHDRPhoto.
func (s *Service) UltraHDRToVideo(ctx context.Context, data []byte) (string, error) {
	log := s.log()

	staged, err := s.Store.Stage("UltraHdrToHdrVideo", ".y4m")
	if err != nil {
		return "", err
	}
	defer func() { s.cleanup(log, staged) }()

	f, err := os.Create(staged.Path)
	if err != nil {
		return "", fmt.Errorf("%w: open staged video: %w", hdrbridge.ErrIO, err)
	}

	c := compositor.New()
	if s.Compositor != nil {
		*c = *s.Compositor
	}
	if c.Log == nil {
		c.Log = log
	}

	runErr := c.Run(ctx, data, compositor.NewY4MWriter(f))
	if cerr := f.Close(); runErr == nil && cerr != nil {
		runErr = fmt.Errorf("%w: close staged video: %w", hdrbridge.ErrIO, cerr)
	}
	if runErr != nil {
		return "", runErr
	}

	return s.Store.InsertFile(mediastore.KindVideo, fmt.Sprintf("UltraHdrToHdrVideo_%d.y4m", s.millis()), staged.Path)
}

// ImportGainMapImage stores an image that carries a gain map as an UltraHDR JPEG.
// Images without a gain map fail with hdrbridge.ErrRequiredGainMap.
func (s *Service) ImportGainMapImage(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, _, _, err := hdrbridge.Split(data); err != nil {
		return "", err
	}
	normalized, err := hdrbridge.Normalize(data, saveQuality)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	return s.Store.Insert(mediastore.KindImage, s.importName(name), bytes.NewReader(normalized))
}

func (s *Service) importName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return fmt.Sprintf("PNG_TO_JPEG_%d.jpeg", s.millis())
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpeg"
}

func (s *Service) cleanup(log *logrus.Entry, st *mediastore.Staged) {
	if err := st.Remove(); err != nil {
		log.WithError(err).WithField("path", st.Path).Warn("failed to remove staged file")
	}
}
