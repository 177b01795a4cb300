package compositor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	"github.com/vearutop/hdrbridge"
	"golang.org/x/sync/errgroup"
)

// Frame is one queued video frame. Raw belongs to the compositor pool and must not be
// retained after EncodeFrame returns.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Keyframe  bool
	Raw       *hdrbridge.RawFrame
}

// VideoEncoder consumes HLG RGBA1010102 frames.
//
// Begin is called once before the first frame; End is called once after Begin succeeded,
// also when encoding failed or was cancelled.
type VideoEncoder interface {
	Begin(cfg Config, width, height int) error
	EncodeFrame(ctx context.Context, f Frame) error
	End() error
}

// Compositor renders UltraHDR photos into video frames.
type Compositor struct {
	Config Config
	Log    *logrus.Entry
}

// New creates a compositor with DefaultConfig adjusted by options.
func New(options ...func(c *Config)) *Compositor {
	cfg := DefaultConfig()
	for _, o := range options {
		o(&cfg)
	}
	return &Compositor{Config: cfg}
}

func (c *Compositor) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Render reconstructs the HDR rendition of img and packs it as an HLG frame.
func Render(img *hdrbridge.Image, displayBoost float32) (*hdrbridge.RawFrame, error) {
	hdr, err := img.Reconstruct(displayBoost)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	f, err := hdrbridge.PackRGBA1010102(hdr, hdrbridge.TransferHLG)
	if err != nil {
		return nil, fmt.Errorf("pack frame: %w", err)
	}
	return f, nil
}

// fit scales the base image down so that its longer side is at most maxDim.
// The gain map is sampled relative to the base, so it is left as is.
func fit(img *hdrbridge.Image, maxDim int) *hdrbridge.Image {
	b := img.Base.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	out := *img
	if w >= h {
		out.Base = resize.Resize(uint(maxDim), 0, img.Base, resize.Lanczos3)
	} else {
		out.Base = resize.Resize(0, uint(maxDim), img.Base, resize.Lanczos3)
	}
	return &out
}

// Run decodes an UltraHDR photo and feeds Config.FrameCount identical frames to enc.
// Photos without a gain map fail with hdrbridge.ErrRequiredUltraHDRPhoto before the
// encoder is started.
func (c *Compositor) Run(ctx context.Context, data []byte, enc VideoEncoder) error {
	cfg := c.Config
	cfg.normalize()

	img, err := hdrbridge.Decode(data)
	if err != nil {
		if errors.Is(err, hdrbridge.ErrRequiredGainMap) {
			return hdrbridge.ErrRequiredUltraHDRPhoto
		}
		return err
	}
	img = fit(img, cfg.MaxDimension)

	rendered, err := Render(img, cfg.DisplayBoost)
	if err != nil {
		return err
	}

	pool := newFramePool(cfg.QueueDepth, rendered.Width, rendered.Height, hdrbridge.TransferHLG)
	return c.stream(ctx, cfg, rendered, enc, pool)
}

// stream runs the producer and the encoder until all frames are encoded or one side fails.
func (c *Compositor) stream(ctx context.Context, cfg Config, rendered *hdrbridge.RawFrame, enc VideoEncoder, pool *framePool) (err error) {
	log := c.log().WithFields(logrus.Fields{
		"width":  rendered.Width,
		"height": rendered.Height,
		"frames": cfg.FrameCount,
		"fps":    cfg.FrameRate,
		"mime":   cfg.MimeType,
	})

	if err := enc.Begin(cfg, rendered.Width, rendered.Height); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	defer func() {
		if cerr := enc.End(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("finish encoder: %w", cerr))
		}
	}()

	queue := make(chan Frame, cfg.QueueDepth)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)

		keyEvery := cfg.keyframeEvery()
		for i := 0; i < cfg.FrameCount; i++ {
			buf, err := pool.Get(gctx)
			if err != nil {
				return err
			}
			copy(buf.Pix, rendered.Pix)

			f := Frame{Index: i, Timestamp: cfg.Timestamp(i), Keyframe: i%keyEvery == 0, Raw: buf}
			select {
			case queue <- f:
			case <-gctx.Done():
				pool.Put(buf)
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for f := range queue {
			err := enc.EncodeFrame(gctx, f)
			pool.Put(f.Raw)
			if err != nil {
				return fmt.Errorf("encode frame %d: %w", f.Index, err)
			}
		}
		return nil
	})

	err = g.Wait()

	// Frames left in the queue after an encoder failure.
	for f := range queue {
		pool.Put(f.Raw)
	}

	if err != nil {
		log.WithError(err).Warn("video composition stopped")
		return err
	}

	log.WithField("elapsed", time.Since(start).String()).Info("video composed")
	return nil
}

// Run composes data with the default configuration.
func Run(ctx context.Context, data []byte, enc VideoEncoder) error {
	return New().Run(ctx, data, enc)
}
