package mediastore_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/hdrbridge"
	"github.com/vearutop/hdrbridge/internal/mediastore"
)

func TestStage(t *testing.T) {
	s := mediastore.New(t.TempDir())

	a, err := s.Stage("UltraHdrToHdrVideo", ".y4m")
	require.NoError(t, err)
	b, err := s.Stage("UltraHdrToHdrVideo", ".y4m")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path), "UltraHdrToHdrVideo_"))
	assert.Equal(t, ".y4m", filepath.Ext(a.Path))
	assert.FileExists(t, a.Path)

	require.NoError(t, a.Remove())
	require.NoError(t, a.Remove())
	assert.NoFileExists(t, a.Path)

	// Already deleted by someone else.
	require.NoError(t, os.Remove(b.Path))
	assert.NoError(t, b.Remove())
}

func TestStageCustomTempDir(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "cache")
	s := &mediastore.Store{Root: t.TempDir(), TempDir: tmp}

	st, err := s.Stage("frame", ".raw")
	require.NoError(t, err)
	assert.Equal(t, tmp, filepath.Dir(st.Path))
}

func TestInsert(t *testing.T) {
	root := t.TempDir()
	s := mediastore.New(root)

	p, err := s.Insert(mediastore.KindImage, "ultrahdr_1.jpg", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Pictures", "andAicaroid", "ultrahdr_1.jpg"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	// Same name again keeps the first file.
	p2, err := s.Insert(mediastore.KindImage, "ultrahdr_1.jpg", bytes.NewReader([]byte("two")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Pictures", "andAicaroid", "ultrahdr_1 (1).jpg"), p2)
	data, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	v, err := s.Insert(mediastore.KindVideo, "clip.y4m", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Movies", "andAicaroid", "clip.y4m"), v)

	entries, err := os.ReadDir(filepath.Join(root, "Pictures", "andAicaroid"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no pending files left behind")
}

func TestInsertFailures(t *testing.T) {
	root := t.TempDir()
	s := mediastore.New(root)

	for _, name := range []string{"", "../escape.jpg", "a/b.jpg", ".hidden"} {
		_, err := s.Insert(mediastore.KindImage, name, bytes.NewReader(nil))
		assert.ErrorIs(t, err, hdrbridge.ErrIO, name)
	}

	readErr := errors.New("read failed")
	_, err := s.Insert(mediastore.KindImage, "broken.jpg", iotest.ErrReader(readErr))
	assert.ErrorIs(t, err, hdrbridge.ErrIO)
	assert.ErrorIs(t, err, readErr)

	entries, err := os.ReadDir(s.Dir(mediastore.KindImage))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.InsertFile(mediastore.KindImage, "x.jpg", filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, hdrbridge.ErrIO)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "Pictures", mediastore.KindImage.Dir())
	assert.Equal(t, "Movies", mediastore.KindVideo.Dir())
	assert.Equal(t, "image/jpeg", mediastore.KindImage.MimeType())
}
