// Package blob stores attachment bytes outside the record store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reference does not resolve to a stored blob.
var ErrNotFound = errors.New("blob not found")

// Store persists opaque byte streams under generated references.
type Store interface {
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)
	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

type fsStore struct {
	dir     string
	baseURL string
}

// NewFSStore keeps blobs as files in dir and resolves them below baseURL.
func NewFSStore(dir, baseURL string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &fsStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *fsStore) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	ref := uuid.NewString()
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, readerWithContext(ctx, r))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(ref)); err != nil {
		return "", 0, fmt.Errorf("commit blob: %w", err)
	}
	return ref, size, nil
}

func (s *fsStore) URL(_ context.Context, ref string) (string, error) {
	if !validRef(ref) {
		return "", ErrNotFound
	}
	if _, err := os.Stat(s.path(ref)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat blob: %w", err)
	}
	return s.baseURL + "/" + ref, nil
}

func (s *fsStore) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return ErrNotFound
	}
	if err := os.Remove(s.path(ref)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *fsStore) path(ref string) string {
	return filepath.Join(s.dir, ref)
}

// validRef keeps client-supplied references from escaping the blob dir.
func validRef(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil && !strings.ContainsAny(ref, `/\.`)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
