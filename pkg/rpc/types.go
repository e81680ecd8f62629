package rpc

import "time"

// StatusRequest asks the processor for the pipeline state of a document.
type StatusRequest struct {
	DocumentID string `json:"document_id"`
}

// StatusResponse reports a document's position in the processing pipeline.
type StatusResponse struct {
	DocumentID   string    `json:"document_id"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	QualityScore float64   `json:"quality_score"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReprocessRequest asks the processor to run a stored document through the
// pipeline again, replacing its existing chunks.
type ReprocessRequest struct {
	DocumentID string `json:"document_id"`
}

// ReprocessResponse acknowledges a reprocess request.
type ReprocessResponse struct {
	DocumentID string `json:"document_id"`
	Accepted   bool   `json:"accepted"`
}
