package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LocalStore writes uploads under a directory that is served at PublicPrefix.
type LocalStore struct {
	fs           afero.Fs
	dir          string
	publicPrefix string
	log          *zap.Logger
}

func NewLocalStore(fs afero.Fs, dir, publicPrefix string, log *zap.Logger) (*LocalStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if publicPrefix == "" {
		publicPrefix = "uploads"
	}
	return &LocalStore{fs: fs, dir: dir, publicPrefix: publicPrefix, log: log}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save copies f.Body to completion. The destination is closed on every path
// and removed if anything fails.
func (s *LocalStore) Save(ctx context.Context, f File) (locator string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(f.Name)
	full := filepath.Join(s.dir, name)

	dst, err := s.fs.Create(full)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			if rerr := s.fs.Remove(full); rerr != nil {
				s.log.Warn("remove partial upload", zap.String("file", full), zap.Error(rerr))
			}
		}
	}()

	if _, err = io.Copy(dst, &ctxReader{ctx: ctx, r: f.Body}); err != nil {
		return "", err
	}
	return path.Join(s.publicPrefix, name), nil
}

func (s *LocalStore) Remove(_ context.Context, locator string) error {
	name := path.Base(locator)
	if name == "." || name == "/" {
		return nil
	}
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
