// Package benchmark measures indexing and retrieval throughput end to end:
// tokenization, write batches, commits and query execution.
package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
)

const benchBody = "hurricane mitch moved across central america leaving relief agencies in new york scrambling for supplies"

// BenchmarkMemoryIndexAdd measures per-document insert throughput into the
// uncommitted write batch.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := index.NewMemoryIndex()
	tokens := tokenizer.Tokenize(benchBody)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddDocument(uint32(i), tokens)
	}
}

// BenchmarkSnapshotPostings measures single-term lookup latency over 10 000
// committed documents.
func BenchmarkSnapshotPostings(b *testing.B) {
	snap := buildSnapshot(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = snap.Postings("hurrican")
	}
}

// BenchmarkSnapshotPostingsParallel measures concurrent read throughput.
func BenchmarkSnapshotPostingsParallel(b *testing.B) {
	snap := buildSnapshot(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = snap.Postings("hurrican")
		}
	})
}

// BenchmarkCommit measures writing and publishing a snapshot of n documents.
func BenchmarkCommit(b *testing.B) {
	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			tokens := tokenizer.Tokenize(benchBody)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				st, err := store.Open(b.TempDir())
				if err != nil {
					b.Fatal(err)
				}
				w, err := st.Writer()
				if err != nil {
					b.Fatal(err)
				}
				for d := 0; d < n; d++ {
					if err := w.WriteDocument(index.Document{ID: fmt.Sprintf("D%d", d)}, tokens); err != nil {
						b.Fatal(err)
					}
				}
				if _, err := w.Commit(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBuildIndex measures a full corpus build with varying worker counts.
func BenchmarkBuildIndex(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 500; i++ {
		content := fmt.Sprintf("<DOC>\n<DOCNO> D%04d </DOCNO>\n<DOCTYPE> NEWS STORY </DOCTYPE>\n<TEXT>\n%s %d\n</TEXT>\n</DOC>\n", i, benchBody, i)
		if err := os.WriteFile(filepath.Join(root, fmt.Sprintf("d%04d.txt", i)), []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				st, err := store.Open(b.TempDir())
				if err != nil {
					b.Fatal(err)
				}
				if _, err := indexer.NewBuilder(st, indexer.WithWorkers(workers)).BuildIndex(b.Context(), root); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func buildSnapshot(b *testing.B, n int) *store.Snapshot {
	b.Helper()
	st, err := store.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	w, err := st.Writer()
	if err != nil {
		b.Fatal(err)
	}
	for d := 0; d < n; d++ {
		text := benchBody
		if d%3 == 0 {
			text += " flood damage in honduras"
		}
		if err := w.WriteDocument(index.Document{ID: fmt.Sprintf("D%d", d)}, tokenizer.Tokenize(text)); err != nil {
			b.Fatal(err)
		}
	}
	snap, err := w.Commit()
	if err != nil {
		b.Fatal(err)
	}
	return snap
}
