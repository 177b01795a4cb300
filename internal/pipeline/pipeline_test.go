package pipeline_test

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/hdrbridge"
	"github.com/vearutop/hdrbridge/internal/compositor"
	"github.com/vearutop/hdrbridge/internal/framesource"
	"github.com/vearutop/hdrbridge/internal/mediastore"
	"github.com/vearutop/hdrbridge/internal/pipeline"
)

type frameSource struct {
	frame *hdrbridge.RawFrame
	err   error
	asked []int64
}

func (s *frameSource) Frame(_ context.Context, positionMs int64) (*hdrbridge.RawFrame, error) {
	s.asked = append(s.asked, positionMs)
	return s.frame, s.err
}

func (s *frameSource) Info() framesource.VideoInfo {
	return framesource.VideoInfo{
		Width: s.frame.Width, Height: s.frame.Height,
		ColorStandard: framesource.StandardBT2020,
		ColorTransfer: framesource.TransferHLG,
	}
}

func uniform(w, h int, code uint16) *hdrbridge.RawFrame {
	f := hdrbridge.NewRawFrame(w, h, hdrbridge.TransferHLG)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, code, code, code, 3)
		}
	}
	return f
}

func newService(t *testing.T) (*pipeline.Service, string) {
	t.Helper()

	root := t.TempDir()
	s := pipeline.New(mediastore.New(root))
	s.Now = func() time.Time { return time.UnixMilli(1700000000123) }
	s.Compositor = compositor.New(func(c *compositor.Config) { c.FrameCount = 2 })
	return s, root
}

func assertNoStaged(t *testing.T, root string) {
	t.Helper()

	entries, err := os.ReadDir(filepath.Join(root, ".staging"))
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files left behind")
}

func plainJPEG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func TestVideoFrameToUltraHDR(t *testing.T) {
	s, root := newService(t)
	src := &frameSource{frame: uniform(64, 36, 512)}

	p, err := s.VideoFrameToUltraHDR(context.Background(), src, 2500)
	require.NoError(t, err)
	assert.Equal(t, []int64{2500}, src.asked)
	assert.Equal(t, filepath.Join(root, "Pictures", "andAicaroid", "ultrahdr_1700000000123.jpg"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	ok, err := hdrbridge.HasGainMap(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, ok)

	im, err := hdrbridge.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 64, im.Base.Bounds().Dx())
	assert.Equal(t, 36, im.Base.Bounds().Dy())

	assertNoStaged(t, root)
}

func TestVideoFrameToUltraHDRCleansUpOnFailure(t *testing.T) {
	s, root := newService(t)

	_, err := s.VideoFrameToUltraHDR(context.Background(), &frameSource{frame: uniform(16, 16, 0)}, 0)
	assert.ErrorIs(t, err, hdrbridge.ErrDegenerateGainMap)
	assertNoStaged(t, root)
	assert.NoDirExists(t, filepath.Join(root, "Pictures"))

	_, err = s.VideoFrameToUltraHDR(context.Background(), &frameSource{frame: uniform(2, 2, 0), err: hdrbridge.ErrRequiredHdrVideo}, 0)
	assert.ErrorIs(t, err, hdrbridge.ErrRequiredHdrVideo)
	assertNoStaged(t, root)
}

func TestVideoFrameToUltraHDRCancelled(t *testing.T) {
	s, root := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.VideoFrameToUltraHDR(ctx, &frameSource{frame: uniform(8, 8, 512)}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoStaged(t, root)
}

func TestUltraHDRToVideo(t *testing.T) {
	s, root := newService(t)

	data, err := hdrbridge.Encode(uniform(16, 8, 600))
	require.NoError(t, err)

	p, err := s.UltraHDRToVideo(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Movies", "andAicaroid", "UltraHdrToHdrVideo_1700000000123.y4m"), p)

	video, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(video, []byte("YUV4MPEG2 W16 H8 F30:1")))
	assert.Equal(t, 2, bytes.Count(video, []byte("FRAME\n")))
	assertNoStaged(t, root)
}

func TestUltraHDRToVideoRequiresGainMap(t *testing.T) {
	s, root := newService(t)

	_, err := s.UltraHDRToVideo(context.Background(), plainJPEG(t))
	assert.ErrorIs(t, err, hdrbridge.ErrRequiredUltraHDRPhoto)
	assertNoStaged(t, root)
	assert.NoDirExists(t, filepath.Join(root, "Movies"))
}

func TestImportGainMapImage(t *testing.T) {
	s, root := newService(t)

	data, err := hdrbridge.Encode(uniform(16, 16, 700))
	require.NoError(t, err)

	p, err := s.ImportGainMapImage(context.Background(), data, "holiday.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Pictures", "andAicaroid", "holiday.jpeg"), p)

	p, err = s.ImportGainMapImage(context.Background(), data, "")
	require.NoError(t, err)
	assert.Equal(t, "PNG_TO_JPEG_1700000000123.jpeg", filepath.Base(p))

	stored, err := os.ReadFile(p)
	require.NoError(t, err)
	_, _, meta, err := hdrbridge.Split(stored)
	require.NoError(t, err)
	assert.Greater(t, meta.HDRCapacityMax, float32(1))

	_, err = s.ImportGainMapImage(context.Background(), plainJPEG(t), "flat.png")
	assert.ErrorIs(t, err, hdrbridge.ErrRequiredGainMap)
}
