package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
)

// ErrCorrupt is returned for a segment whose layout or checksum does not
// hold together.
var ErrCorrupt = errors.New("corrupt segment")

// Reader is a fully validated segment held in memory. Every offset it uses
// has been checked against the file's real size.
type Reader struct {
	path     string
	header   SegmentHeader
	postings []byte
	dict     []DictEntry
	docs     []index.Document
}

func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segment file: %w", err)
	}
	r, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.path = path
	return r, nil
}

func parse(data []byte) (*Reader, error) {
	size := int64(len(data))
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: %d bytes is shorter than header and footer", ErrCorrupt, size)
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment format version %d", header.Version)
	}
	if err := checkLayout(header, size); err != nil {
		return nil, err
	}

	bodyEnd := size - int64(FooterSize)
	footer := data[bodyEnd:]
	if got := binary.LittleEndian.Uint32(footer[4:8]); got != MagicBytes {
		return nil, fmt.Errorf("%w: bad footer magic %x", ErrCorrupt, got)
	}
	if got := binary.LittleEndian.Uint64(footer[8:16]); got != header.Snapshot {
		return nil, fmt.Errorf("%w: footer version %d, header version %d", ErrCorrupt, got, header.Snapshot)
	}
	want := binary.LittleEndian.Uint32(footer[0:4])
	if got := crc32.ChecksumIEEE(data[HeaderSize:bodyEnd]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch: stored %08x, computed %08x", ErrCorrupt, want, got)
	}

	r := &Reader{
		header:   header,
		postings: data[header.PostOffset : header.PostOffset+header.PostSize],
	}
	if err := json.Unmarshal(data[header.DictOffset:header.DictOffset+header.DictSize], &r.dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", ErrCorrupt, err)
	}
	if err := json.Unmarshal(data[header.DocsOffset:header.DocsOffset+header.DocsSize], &r.docs); err != nil {
		return nil, fmt.Errorf("%w: parsing document table: %v", ErrCorrupt, err)
	}
	if len(r.dict) != int(header.TermCount) || len(r.docs) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: header counts %d terms, %d docs; found %d, %d",
			ErrCorrupt, header.TermCount, header.DocCount, len(r.dict), len(r.docs))
	}
	return r, nil
}

// checkLayout requires the three blocks to tile the file exactly between
// header and footer.
func checkLayout(h SegmentHeader, size int64) error {
	for _, n := range []int64{h.PostSize, h.DictSize, h.DocsSize} {
		if n < 0 || n > size {
			return fmt.Errorf("%w: block size %d outside file of %d bytes", ErrCorrupt, n, size)
		}
	}
	switch {
	case h.PostOffset != int64(HeaderSize),
		h.DictOffset != h.PostOffset+h.PostSize,
		h.DocsOffset != h.DictOffset+h.DictSize,
		h.DocsOffset+h.DocsSize != size-int64(FooterSize):
		return fmt.Errorf("%w: block offsets do not match a file of %d bytes", ErrCorrupt, size)
	}
	return nil
}

func (r *Reader) readPostings(entry DictEntry) (index.PostingList, error) {
	n := int64(len(r.postings))
	start, length := entry.PostOffset, int64(entry.PostLen)
	if start < 0 || length < 0 || start > n || length > n-start {
		return nil, fmt.Errorf("%w: postings for %q out of bounds", ErrCorrupt, entry.Term)
	}
	var postings index.PostingList
	if err := json.Unmarshal(r.postings[start:start+length], &postings); err != nil {
		return nil, fmt.Errorf("%w: parsing postings for %q: %v", ErrCorrupt, entry.Term, err)
	}
	return postings, nil
}

// Entries decodes every term's postings, in dictionary order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.readPostings(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	return entries, nil
}

func (r *Reader) Documents() []index.Document {
	return r.docs
}

// Snapshot is the snapshot version the segment was written for.
func (r *Reader) Snapshot() uint64 {
	return r.header.Snapshot
}

// CreatedAt is when the snapshot was committed.
func (r *Reader) CreatedAt() time.Time {
	return time.Unix(0, r.header.CreatedAt)
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() int {
	return len(r.docs)
}

func (r *Reader) Path() string {
	return r.path
}
