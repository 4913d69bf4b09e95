package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

const sampleDoc = `<DOC>
<DOCNO> APW19981001.0001 </DOCNO>
<DOCTYPE> NEWS STORY </DOCTYPE>
<TXTTYPE> NEWSWIRE </TXTTYPE>
<TEXT>
  Hurricane Georges   struck the
  Florida Keys.
</TEXT>
</DOC>
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtract(t *testing.T) {
	rec, ok := Extractor{}.Extract([]byte(sampleDoc))
	require.True(t, ok)
	assert.Equal(t, "APW19981001.0001", rec.DocID)
	assert.Equal(t, "Hurricane Georges   struck the\n  Florida Keys.", rec.Text)
	assert.Equal(t, "NEWS STORY", rec.Fields[FieldDocType])
	assert.Equal(t, "NEWSWIRE", rec.Fields[FieldTxtType])
}

func TestExtractMissingMarkers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no docno", "<TEXT>body</TEXT>"},
		{"no text", "<DOCNO>X1</DOCNO>"},
		{"unclosed text", "<DOCNO>X1</DOCNO><TEXT>body"},
		{"blank text", "<DOCNO>X1</DOCNO><TEXT>  \n </TEXT>"},
		{"blank docno", "<DOCNO> </DOCNO><TEXT>body</TEXT>"},
		{"empty", ""},
		{"garbage", "\xff\xfe<<<>>>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Extractor{}.Extract([]byte(tt.raw))
			assert.False(t, ok)
		})
	}
}

func TestExtractDefaultsMetadata(t *testing.T) {
	rec, ok := Extractor{}.Extract([]byte("<DOCNO>X1</DOCNO><TEXT>body</TEXT>"))
	require.True(t, ok)
	assert.Equal(t, MissingField, rec.Fields[FieldDocType])
	assert.Equal(t, MissingField, rec.Fields[FieldTxtType])
}

func TestExtractDropsInvalidUTF8(t *testing.T) {
	rec, ok := Extractor{}.Extract([]byte("<DOCNO>X1</DOCNO><TEXT>caf\xffe</TEXT>"))
	require.True(t, ok)
	assert.Equal(t, "cafe", rec.Text)
}

func TestWalkLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/2.txt", sampleDoc)
	writeFile(t, root, "a/1.txt", sampleDoc)
	writeFile(t, root, "a/notes.md", "ignored")
	writeFile(t, root, "c.txt", sampleDoc)

	var got []string
	err := Enumerator{Suffix: ".txt"}.Walk(context.Background(), root, func(loc string) error {
		got = append(got, loc)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1.txt", "b/2.txt", "c.txt"}, got)
}

func TestWalkMissingRoot(t *testing.T) {
	err := Enumerator{}.Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), func(string) error {
		return nil
	})
	assert.Error(t, err)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "1.txt", sampleDoc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Enumerator{}.Walk(ctx, root, func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "apw/1.txt", sampleDoc)
	r := NewReader(root)

	text, err := r.ReadText("apw/1.txt")
	require.NoError(t, err)
	assert.Contains(t, text, "Hurricane Georges")

	_, err = r.ReadText("apw/missing.txt")
	assert.Error(t, err)

	_, err = r.ReadText("../outside.txt")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type countingSource struct {
	calls int
}

func (c *countingSource) ReadText(locator string) (string, error) {
	c.calls++
	return "text of " + locator, nil
}

func TestCachedReader(t *testing.T) {
	src := &countingSource{}
	cr, err := NewCachedReader(src, 2)
	require.NoError(t, err)

	for range 3 {
		text, err := cr.ReadText("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "text of a.txt", text)
	}
	assert.Equal(t, 1, src.calls)

	_, _ = cr.ReadText("b.txt")
	_, _ = cr.ReadText("c.txt")
	assert.Equal(t, 2, cr.Len())

	_, _ = cr.ReadText("a.txt")
	assert.Equal(t, 4, src.calls)

	cr.Purge()
	assert.Zero(t, cr.Len())
}

func TestCachedReaderRejectsBadSize(t *testing.T) {
	_, err := NewCachedReader(&countingSource{}, 0)
	assert.Error(t, err)
}
