// Package storage persists uploaded PDF files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty or would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Local stores files in a directory that the router serves under PublicPrefix.
type Local struct {
	dir          string
	publicPrefix string
}

// NewLocal creates dir if needed.
func NewLocal(dir, publicPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	return &Local{dir: dir, publicPrefix: publicPrefix}, nil
}

// Ping reports whether the root directory is still usable.
func (l *Local) Ping(_ context.Context) error {
	fi, err := os.Stat(l.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", l.dir)
	}
	return nil
}

// Save writes data atomically (temp file + rename) and returns the public URL.
func (l *Local) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(l.dir, key)); err != nil {
		return "", fmt.Errorf("move upload into place: %w", err)
	}

	return path.Join(l.publicPrefix, key), nil
}

// Delete removes the file. A missing file is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
