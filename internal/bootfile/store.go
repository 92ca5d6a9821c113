// Package bootfile serves boot images from a directory.
package bootfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("boot file not found")

// Store resolves requested names inside a single directory. Only the base
// name of a request is used, a device cannot escape the directory.
type Store struct {
	fs afero.Fs
}

type StoreOpt func(*Store)

func WithFs(fs afero.Fs) StoreOpt {
	return func(s *Store) { s.fs = fs }
}

func NewStore(dir string, opts ...StoreOpt) *Store {
	s := &Store{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(s)
	}
	s.fs = afero.NewBasePathFs(s.fs, dir)
	return s
}

func (s *Store) ReadFile(name string) ([]byte, error) {
	base, err := baseName(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, base)
		}
		return nil, errors.Wrap(err, "afero.ReadFile")
	}
	return data, nil
}

// Stat reports whether name can be served and its size.
func (s *Store) Stat(name string) (int64, error) {
	base, err := baseName(name)
	if err != nil {
		return 0, err
	}
	fi, err := s.fs.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrap(ErrNotFound, base)
		}
		return 0, errors.Wrap(err, "afero.Stat")
	}
	if fi.IsDir() {
		return 0, errors.Wrap(ErrNotFound, base)
	}
	return fi.Size(), nil
}

func baseName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "", errors.Wrapf(ErrNotFound, "invalid name %q", name)
	}
	return "/" + base, nil
}
