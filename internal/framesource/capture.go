package framesource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/hdrbridge"
)

// DefaultFrameTimeout bounds the wait for a decoded frame to reach the render texture.
const DefaultFrameTimeout = 500 * time.Millisecond

var (
	// ErrFrameTimeout is returned when no decoded frame arrived within the frame timeout.
	ErrFrameTimeout = errors.New("timed out waiting for decoded frame")

	// ErrNotBound is returned by Frame when no surface or video is attached.
	ErrNotBound = errors.New("capture has no bound decoder")
)

// Source produces one HDR frame at a position of a video.
type Source interface {
	Frame(ctx context.Context, positionMs int64) (*hdrbridge.RawFrame, error)
	Info() VideoInfo
}

// Surface is a render target, e.g. an on-screen preview.
type Surface interface {
	SetFixedSize(width, height int)
}

// Video is a playable video handle.
type Video interface {
	Info(ctx context.Context) (VideoInfo, error)
}

// Backend creates GPU processors.
type Backend interface {
	NewProcessor(ctx context.Context, s Surface, width, height int, tf hdrbridge.TransferFunction) (Processor, error)
}

// Processor renders decoded frames and reads them back as RGBA1010102.
type Processor interface {
	// NewDecoder binds a video decoder to a texture owned by the processor.
	NewDecoder(ctx context.Context, v Video) (Decoder, error)
	// DrawAndRead draws the latest decoded frame and returns bottom-up RGBA1010102 rows.
	// It fails with context.DeadlineExceeded when no frame arrives before ctx expires.
	DrawAndRead(ctx context.Context, d Decoder) ([]byte, error)
	Close() error
}

// Decoder is a video decoder whose output feeds a processor texture.
type Decoder interface {
	SeekTo(ctx context.Context, positionMs int64) error
	Close() error
}

// State of a Capture.
type State int

// Capture states.
const (
	StateIdle     State = iota // nothing allocated
	StatePrepared              // processor allocated
	StateBound                 // processor and decoder allocated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateBound:
		return "bound"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Capture owns the processor and decoder of a preview surface and a selected video.
//
// Attaching or detaching a surface and loading a video are transitions; each one tears
// down the resources of the previous state before allocating the next.
type Capture struct {
	Backend      Backend
	FrameTimeout time.Duration
	Log          *logrus.Entry

	mu        sync.Mutex
	surface   Surface
	video     Video
	info      VideoInfo
	hasInfo   bool
	tf        hdrbridge.TransferFunction
	width     int
	height    int
	processor Processor
	decoder   Decoder
}

// NewCapture creates an idle capture.
func NewCapture(b Backend) *Capture {
	return &Capture{Backend: b, FrameTimeout: DefaultFrameTimeout}
}

func (c *Capture) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state()
}

func (c *Capture) state() State {
	switch {
	case c.decoder != nil:
		return StateBound
	case c.processor != nil:
		return StatePrepared
	default:
		return StateIdle
	}
}

// Info returns the loaded video metadata.
func (c *Capture) Info() VideoInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.info
}

// AttachSurface switches rendering to s, recreating processor and decoder.
func (c *Capture) AttachSurface(ctx context.Context, s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.teardown()
	c.surface = s
	if rerr := c.rebuild(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

// DetachSurface releases all resources; the loaded video is kept for the next surface.
func (c *Capture) DetachSurface() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface = nil
	return c.teardown()
}

// Load classifies v and binds a decoder for it. SDR or unknown colorimetry fails with
// hdrbridge.ErrRequiredHdrVideo before anything is allocated or released.
func (c *Capture) Load(ctx context.Context, v Video) error {
	info, err := v.Info(ctx)
	if err != nil {
		return fmt.Errorf("read video info: %w", err)
	}
	tf, err := info.Transfer()
	if err != nil {
		return err
	}
	w, h := info.DisplaySize()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: video size %dx%d", hdrbridge.ErrDecode, w, h)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reconfigure := !c.hasInfo || w != c.width || h != c.height || tf != c.tf
	c.video, c.info, c.hasInfo = v, info, true
	c.width, c.height, c.tf = w, h, tf

	c.log().WithFields(logrus.Fields{
		"width":       w,
		"height":      h,
		"transfer":    tf.String(),
		"rotation":    info.Rotation,
		"reconfigure": reconfigure,
	}).Debug("video loaded")

	// The processor survives a video change with the same size and colorspace.
	var terr error
	if reconfigure {
		terr = c.teardown()
	} else {
		terr = c.closeDecoder()
	}
	if err := c.rebuild(ctx); err != nil {
		return errors.Join(terr, err)
	}
	return terr
}

// Frame seeks to positionMs and reads the rendered frame, top-down.
func (c *Capture) Frame(ctx context.Context, positionMs int64) (*hdrbridge.RawFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state() != StateBound {
		return nil, ErrNotBound
	}
	if err := c.decoder.SeekTo(ctx, positionMs); err != nil {
		return nil, fmt.Errorf("seek to %d ms: %w", positionMs, err)
	}

	timeout := c.FrameTimeout
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	drawCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pix, err := c.processor.DrawAndRead(drawCtx, c.decoder)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s at %d ms", ErrFrameTimeout, timeout, positionMs)
		}
		return nil, fmt.Errorf("draw frame: %w", err)
	}

	f := &hdrbridge.RawFrame{Width: c.width, Height: c.height, Pix: pix, Transfer: c.tf}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.FlipVertical()
	return f, nil
}

// Close releases all resources and forgets the surface and video.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface = nil
	c.video = nil
	c.hasInfo = false
	return c.teardown()
}

// rebuild allocates whatever the current surface and video allow.
func (c *Capture) rebuild(ctx context.Context) error {
	if c.surface == nil || !c.hasInfo {
		return nil
	}
	if c.processor == nil {
		p, err := c.Backend.NewProcessor(ctx, c.surface, c.width, c.height, c.tf)
		if err != nil {
			return fmt.Errorf("prepare processor: %w", err)
		}
		c.surface.SetFixedSize(c.width, c.height)
		c.processor = p
	}
	if c.decoder == nil && c.video != nil {
		d, err := c.processor.NewDecoder(ctx, c.video)
		if err != nil {
			return fmt.Errorf("bind decoder: %w", err)
		}
		c.decoder = d
	}
	return nil
}

func (c *Capture) closeDecoder() error {
	if c.decoder == nil {
		return nil
	}
	err := c.decoder.Close()
	c.decoder = nil
	if err != nil {
		return fmt.Errorf("close decoder: %w", err)
	}
	return nil
}

// teardown closes the decoder before the processor that owns its texture.
func (c *Capture) teardown() error {
	err := c.closeDecoder()
	if c.processor != nil {
		if perr := c.processor.Close(); perr != nil {
			err = errors.Join(err, fmt.Errorf("close processor: %w", perr))
		}
		c.processor = nil
	}
	return err
}
