package kafka

import "time"

// IndexCommitted announces a new committed index snapshot. Search services
// reload their snapshot and drop cached responses when they receive it.
type IndexCommitted struct {
	Version     uint64    `json:"version"`
	DocCount    int       `json:"doc_count"`
	DocsAdded   int       `json:"docs_added"`
	IndexDir    string    `json:"index_dir"`
	CommittedAt time.Time `json:"committed_at"`
}

// Key partitions commit events by index directory so that events for one
// index stay ordered.
func (e IndexCommitted) Key() string {
	return e.IndexDir
}
