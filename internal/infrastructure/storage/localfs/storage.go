package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// Storage keeps artifacts on the local disk. Keys are slash-separated paths
// below basePath.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, mapFSError("open object", key, err)
	}
	return f, nil
}

func (s *Storage) Stat(_ context.Context, key string) (ports.ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return ports.ObjectInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ports.ObjectInfo{}, mapFSError("stat object", key, err)
	}
	if fi.IsDir() {
		return ports.ObjectInfo{}, domain.WrapError(domain.ErrNotFound, "stat object", fmt.Errorf("%s is a directory", key))
	}

	mimeType, err := detectMimeType(path)
	if err != nil {
		return ports.ObjectInfo{}, err
	}
	return ports.ObjectInfo{
		Key:       key,
		Size:      fi.Size(),
		MimeType:  mimeType,
		UpdatedAt: fi.ModTime().UTC(),
	}, nil
}

func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve object key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, clean), nil
}

// detectMimeType prefers the extension and falls back to content sniffing.
func detectMimeType(path string) (string, error) {
	if byExt := domain.MimeTypeByExtension(path); byExt != "" {
		return byExt, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for sniffing: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read for sniffing: %w", err)
	}
	return domain.NormalizeMimeType(http.DetectContentType(head[:n])), nil
}

func mapFSError(op, key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("object %s", key))
	}
	return fmt.Errorf("%s: %w", op, err)
}
