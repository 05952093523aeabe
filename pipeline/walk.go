package pipeline

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// CollectFiles returns every regular file under root whose name ends in ext,
// in lexical walk order. An empty ext matches all files. Unreadable entries below
// root are logged and skipped; only a missing or unreadable root is an error.
func CollectFiles(root, ext string) ([]string, error) {
	c := &fileCollector{root: root, ext: ext}
	if err := filepath.WalkDir(root, c.visit); err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}
	return c.paths, nil
}

type fileCollector struct {
	root  string
	ext   string
	paths []string
}

func (c *fileCollector) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		if path == c.root {
			return err
		}
		slog.Warn("skipping unreadable path", slog.String("path", path), slog.Any("error", err))
		if d != nil && d.IsDir() {
			return fs.SkipDir
		}
		return nil
	}
	if !d.Type().IsRegular() {
		return nil
	}
	if c.ext == "" || strings.EqualFold(filepath.Ext(path), c.ext) {
		c.paths = append(c.paths, path)
	}
	return nil
}
