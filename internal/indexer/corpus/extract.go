// Package corpus reads the raw TDT collection: it enumerates source files,
// extracts the tagged fields of each record, and re-reads raw text for
// snippet generation.
package corpus

import (
	"strings"
)

const (
	FieldDocType = "doctype"
	FieldTxtType = "txttype"

	// MissingField is stored when an optional tag is absent.
	MissingField = "N/A"
)

// Record is the extracted content of one source file.
type Record struct {
	DocID  string
	Text   string
	Fields map[string]string
}

// Extractor pulls records out of the SGML-like TDT format:
//
//	<DOC>
//	<DOCNO> APW19981001.0001 </DOCNO>
//	<DOCTYPE> NEWS STORY </DOCTYPE>
//	<TXTTYPE> NEWSWIRE </TXTTYPE>
//	<TEXT>
//	...
//	</TEXT>
//	</DOC>
//
// Only the first occurrence of each tag is considered.
type Extractor struct{}

// Extract returns false when DOCNO or TEXT is missing or blank. It never
// fails on malformed input.
func (Extractor) Extract(raw []byte) (Record, bool) {
	content := strings.ToValidUTF8(string(raw), "")
	docID, ok := tagValue(content, "DOCNO")
	if !ok || docID == "" {
		return Record{}, false
	}
	text, ok := tagValue(content, "TEXT")
	if !ok || text == "" {
		return Record{}, false
	}
	return Record{
		DocID:  docID,
		Text:   text,
		Fields: metadata(content),
	}, true
}

// ExtractText returns only the TEXT body, or "" when absent.
func (Extractor) ExtractText(raw []byte) string {
	text, _ := tagValue(strings.ToValidUTF8(string(raw), ""), "TEXT")
	return text
}

func metadata(content string) map[string]string {
	fields := make(map[string]string, 2)
	for field, tag := range map[string]string{FieldDocType: "DOCTYPE", FieldTxtType: "TXTTYPE"} {
		v, ok := tagValue(content, tag)
		if !ok || v == "" {
			v = MissingField
		}
		fields[field] = v
	}
	return fields
}

// tagValue returns the trimmed text between the first <tag> and the next
// </tag> after it.
func tagValue(content, tag string) (string, bool) {
	open := "<" + tag + ">"
	start := strings.Index(content, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(content[start:], "</"+tag+">")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(content[start : start+end]), true
}
