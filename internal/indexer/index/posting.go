// Package index holds the inverted-index data model shared by the write
// path and the on-disk segment format: postings, term entries, and the
// stored document table.
package index

// Posting records one document's occurrences of a term. Doc is the
// store-internal document number, assigned in write order.
type Posting struct {
	Doc       uint32 `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p"`
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Document is the stored row for an indexed document. Content is not kept;
// Locator lets callers re-read the raw text.
type Document struct {
	ID      string            `json:"id"`
	Locator string            `json:"loc"`
	Fields  map[string]string `json:"f,omitempty"`
}
