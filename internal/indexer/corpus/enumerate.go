package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Enumerator lists the source files of a corpus.
type Enumerator struct {
	Suffix string
}

// Walk calls fn with the root-relative, slash-separated locator of every
// regular file under root whose name ends in Suffix, in lexical order.
// Unreadable subdirectories are skipped; fn errors and cancellation stop
// the walk.
func (e Enumerator) Walk(ctx context.Context, root string, fn func(locator string) error) error {
	suffix := e.Suffix
	if suffix == "" {
		suffix = ".txt"
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("opening corpus root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root %s is not a directory", root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativising %s: %w", path, err)
		}
		return fn(filepath.ToSlash(rel))
	})
}
