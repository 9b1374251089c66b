package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir archives into a local directory tree mirroring the keys.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("archive: invalid key %q", key)
	}
	path := filepath.Join(d.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
