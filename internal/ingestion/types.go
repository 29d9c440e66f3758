// Package ingestion defines the upload response and the Kafka event schema
// shared by the upload pipeline and the index consumers.
package ingestion

import "time"

// UploadResponse is returned after a document is stored and the index rebuilt.
type UploadResponse struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
	Documents  int    `json:"documents"`
	Units      int    `json:"units"`
}

// EventIndexComplete is the event-type header of IndexCompleteEvent messages.
const EventIndexComplete = "index.complete"

// IndexCompleteEvent is published after a generation is committed, so other
// processes serving the same index root can switch to it.
type IndexCompleteEvent struct {
	IndexRoot   string    `json:"index_root"`
	Generation  uint64    `json:"generation"`
	Documents   int       `json:"documents"`
	Units       int       `json:"units"`
	Origin      string    `json:"origin"`
	CompletedAt time.Time `json:"completed_at"`
}
