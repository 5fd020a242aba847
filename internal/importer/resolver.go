package importer

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileResolver resolves file:// URIs and plain local paths. It serves
// desktop pickers and the command line, where no access grant exists.
type FileResolver struct{}

var _ ContentResolver = FileResolver{}

// LocalPath converts a file:// URI or a path into a local path.
func LocalPath(ref string) (string, error) {
	if ref == "" {
		return "", ErrNoContent
	}
	if filepath.IsAbs(ref) || !strings.Contains(ref, ":") {
		return filepath.Clean(ref), nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse content reference: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRef, u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote host %s", ErrUnsupportedRef, u.Host)
	}
	if u.Path == "" {
		return "", ErrNoContent
	}
	return filepath.FromSlash(u.Path), nil
}

// TakePersistableReadPermission is a no-op for local files.
func (FileResolver) TakePersistableReadPermission(ref string, _ GrantFlags) error {
	_, err := LocalPath(ref)
	return err
}

// DisplayName returns the base name of the file.
func (FileResolver) DisplayName(ref string) (string, error) {
	p, err := LocalPath(ref)
	if err != nil {
		return "", err
	}
	return filepath.Base(p), nil
}

// Open opens the file for reading.
func (FileResolver) Open(ref string) (io.ReadCloser, error) {
	p, err := LocalPath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}
