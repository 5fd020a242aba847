package importer

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const tempPattern = ".oxygencrate-*.part"

// copied is the result of a completed copy.
type copied struct {
	path   string
	size   int64
	digest []byte
}

// SanitizeName reduces a display name to a single path element. It returns
// "" when nothing usable remains.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '\\':
			return '/'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	if strings.TrimSpace(name) == "" {
		return ""
	}

	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// copyInto streams src into dir/name. Bytes land in a hidden temporary
// file which is synced and renamed over the destination only after the
// whole stream has been copied; on any error the temporary file is removed.
func copyInto(dir, name string, src io.Reader, mode os.FileMode) (copied, error) {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return copied{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	h, err := blake2b.New256(nil)
	if err != nil {
		return copied{}, fmt.Errorf("init digest: %w", err)
	}

	n, err := io.Copy(io.MultiWriter(tmp, h), src)
	if err != nil {
		return copied{}, fmt.Errorf("copy content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return copied{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return copied{}, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return copied{}, fmt.Errorf("close temp file: %w", err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpName, dest); err != nil {
		return copied{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true

	// The file is in place; a failed directory sync only weakens durability.
	_ = syncDir(dir)

	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	return copied{path: abs, size: n, digest: h.Sum(nil)}, nil
}
