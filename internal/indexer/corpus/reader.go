package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

// Reader re-reads source files by locator.
type Reader struct {
	root      string
	extractor Extractor
}

func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// ReadRaw returns the bytes of the file at locator. Locators that would
// escape the corpus root are rejected.
func (r *Reader) ReadRaw(locator string) ([]byte, error) {
	if !filepath.IsLocal(filepath.FromSlash(locator)) {
		return nil, fmt.Errorf("%w: locator %q escapes corpus root", apperrors.ErrInvalidInput, locator)
	}
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(locator)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", locator, err)
	}
	return data, nil
}

// ReadText returns the TEXT body of the file at locator.
func (r *Reader) ReadText(locator string) (string, error) {
	data, err := r.ReadRaw(locator)
	if err != nil {
		return "", err
	}
	return r.extractor.ExtractText(data), nil
}

// TextSource is what snippet generation needs from the corpus.
type TextSource interface {
	ReadText(locator string) (string, error)
}

// CachedReader keeps recently re-read document bodies in an LRU so popular
// documents are not re-parsed for every query.
type CachedReader struct {
	source TextSource
	cache  *lru.Cache[string, string]
}

func NewCachedReader(source TextSource, size int) (*CachedReader, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	return &CachedReader{source: source, cache: cache}, nil
}

func (c *CachedReader) ReadText(locator string) (string, error) {
	if text, ok := c.cache.Get(locator); ok {
		return text, nil
	}
	text, err := c.source.ReadText(locator)
	if err != nil {
		return "", err
	}
	c.cache.Add(locator, text)
	return text, nil
}

// Purge empties the cache, e.g. after the corpus changed on disk.
func (c *CachedReader) Purge() {
	c.cache.Purge()
}

func (c *CachedReader) Len() int {
	return c.cache.Len()
}
