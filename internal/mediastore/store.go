// Package mediastore persists finished artifacts under a shared media root and stages
// intermediate files next to it.
package mediastore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vearutop/hdrbridge"
)

// DefaultAppName is the folder created under each collection.
const DefaultAppName = "andAicaroid"

// Kind selects a media collection.
type Kind int

// Media collections.
const (
	KindImage Kind = iota
	KindVideo
)

// Dir returns the collection directory name.
func (k Kind) Dir() string {
	if k == KindVideo {
		return "Movies"
	}
	return "Pictures"
}

// MimeType returns the mime type of files stored in the collection.
func (k Kind) MimeType() string {
	if k == KindVideo {
		return "video/x-yuv4mpeg"
	}
	return "image/jpeg"
}

// Store writes into Root/<collection>/<AppName>.
type Store struct {
	Root    string
	AppName string
	// TempDir holds staged files, Root/.staging is used when empty.
	TempDir string
	Log     *logrus.Entry
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{Root: root, AppName: DefaultAppName}
}

func (s *Store) log() *logrus.Entry {
	if s.Log != nil {
		return s.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (s *Store) tempDir() string {
	if s.TempDir != "" {
		return s.TempDir
	}
	return filepath.Join(s.Root, ".staging")
}

// Dir returns the directory of a collection.
func (s *Store) Dir(kind Kind) string {
	app := s.AppName
	if app == "" {
		app = DefaultAppName
	}
	return filepath.Join(s.Root, kind.Dir(), app)
}

// Staged is a temporary file owned by the caller.
type Staged struct {
	Path string

	once sync.Once
	err  error
}

// Remove deletes the staged file. It is safe to call more than once.
func (st *Staged) Remove() error {
	if st == nil {
		return nil
	}
	st.once.Do(func() {
		if err := os.Remove(st.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			st.err = fmt.Errorf("%w: remove staged file: %w", hdrbridge.ErrIO, err)
		}
	})
	return st.err
}

// Stage creates an empty uniquely named file, e.g. prefix_<uuid>.raw.
func (s *Store) Stage(prefix, ext string) (*Staged, error) {
	dir := s.tempDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %w", hdrbridge.ErrIO, err)
	}
	p := filepath.Join(dir, prefix+"_"+uuid.NewString()+ext)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: stage file: %w", hdrbridge.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("%w: stage file: %w", hdrbridge.ErrIO, err)
	}
	return &Staged{Path: p}, nil
}

// Insert copies r into the collection as displayName and returns the stored path.
// An existing file is never overwritten; a numbered name is chosen instead.
func (s *Store) Insert(kind Kind, displayName string, r io.Reader) (string, error) {
	if displayName == "" || displayName != filepath.Base(displayName) || strings.HasPrefix(displayName, ".") {
		return "", fmt.Errorf("%w: invalid display name %q", hdrbridge.ErrIO, displayName)
	}
	dir := s.Dir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create collection: %w", hdrbridge.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return "", fmt.Errorf("%w: create pending file: %w", hdrbridge.ErrIO, err)
	}
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write %s: %w", hdrbridge.ErrIO, displayName, err)
	}

	final, err := publish(tmp.Name(), dir, displayName)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: publish %s: %w", hdrbridge.ErrIO, displayName, err)
	}

	s.log().WithFields(logrus.Fields{
		"path":  final,
		"bytes": n,
		"mime":  kind.MimeType(),
	}).Info("media stored")

	return final, nil
}

// InsertFile is Insert reading from a file.
func (s *Store) InsertFile(kind Kind, displayName, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", hdrbridge.ErrIO, path, err)
	}
	defer f.Close()

	return s.Insert(kind, displayName, f)
}

// publish hard-links tmp under a free name and removes tmp.
func publish(tmp, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		final := filepath.Join(dir, candidate)

		err := os.Link(tmp, final)
		if err == nil {
			_ = os.Remove(tmp)
			return final, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}

		// Filesystems without hard links.
		if _, serr := os.Lstat(final); serr == nil {
			continue
		}
		return final, os.Rename(tmp, final)
	}
	return "", fmt.Errorf("no free name for %s", name)
}
