// Package segment persists a committed index snapshot as a single
// self-describing file: a fixed header, per-term postings blocks, a sorted
// term dictionary, the stored document table, and a checksummed footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
)

// MagicBytes identifies a valid .tdx segment file.
const (
	MagicBytes    uint32 = 0x54445831
	FormatVersion uint32 = 2
	HeaderSize    int    = 96
	FooterSize    int    = 16
	FileSuffix           = ".tdx"
)

// SegmentHeader is written at the start of every segment. The three blocks
// follow it back to back: postings, dictionary, documents. CreatedAt is Unix
// nanoseconds.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	Snapshot   uint64
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Name returns the file name of the segment holding snapshot version v.
// Zero padding keeps lexical order equal to version order.
func Name(v uint64) string {
	return fmt.Sprintf("seg_%020d%s", v, FileSuffix)
}

// Writer serialises snapshots into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates the segment for snapshot version v. Entries must
// be sorted by term. It writes to a .tmp file first, syncs, and renames on
// success, so a reader never observes a partially written segment. The
// footer checksum covers every byte between header and footer.
func (w *Writer) Write(v uint64, createdAt time.Time, entries []index.TermEntry, docs []index.Document) (string, error) {
	segmentName := Name(v)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	committed := false
	defer func() {
		f.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(docs)),
		Snapshot:  v,
		CreatedAt: createdAt.UnixNano(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}
	checksum := crc32.NewIEEE()
	body := io.MultiWriter(f, checksum)

	offset := int64(HeaderSize)
	header.PostOffset = offset
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := body.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset - header.PostOffset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
	}
	header.PostSize = offset - header.PostOffset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := body.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictOffset = offset
	header.DictSize = int64(len(dictData))
	offset += header.DictSize

	docsData, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshaling document table: %w", err)
	}
	if _, err := body.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document table: %w", err)
	}
	header.DocsOffset = offset
	header.DocsSize = int64(len(docsData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)
	binary.LittleEndian.PutUint64(footer[8:16], v)
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	committed = true
	return segmentName, nil
}

func encodeHeader(h SegmentHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.Snapshot)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(buf[72:80], uint64(h.DocsSize))
	return buf
}

func decodeHeader(buf []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:   binary.LittleEndian.Uint32(buf[12:16]),
		Snapshot:   binary.LittleEndian.Uint64(buf[16:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[24:32])),
		DictOffset: int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[40:48])),
		PostOffset: int64(binary.LittleEndian.Uint64(buf[48:56])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[56:64])),
		DocsOffset: int64(binary.LittleEndian.Uint64(buf[64:72])),
		DocsSize:   int64(binary.LittleEndian.Uint64(buf[72:80])),
	}
}
