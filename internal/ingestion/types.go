package ingestion

import "time"

// UploadRequest is the JSON body of POST /api/v1/documents. Content is
// base64-encoded raw bytes.
type UploadRequest struct {
	Filename       string `json:"filename"`
	ContentType    string `json:"content_type"`
	Content        string `json:"content"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// UploadResponse acknowledges an accepted upload. Processing continues in
// the background; Status is always "queued" on a fresh upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// DocumentSummary is the read model returned by document listing and detail
// endpoints.
type DocumentSummary struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	ContentType     string     `json:"content_type"`
	ContentSize     int        `json:"content_size"`
	Processed       bool       `json:"processed"`
	ProcessingError *string    `json:"processing_error,omitempty"`
	Preview         string     `json:"preview,omitempty"`
	ChunkCount      int        `json:"chunk_count"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}
