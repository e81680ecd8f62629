// Package store is the persistence adapter over PostgreSQL. Every row shape
// coming back from the database is normalized into one canonical struct at
// this boundary; core packages never see raw rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/postgres"
)

// Document is one uploaded document and its processing state.
type Document struct {
	ID              string
	OwnerID         string
	Filename        string
	ContentType     string
	RawContent      []byte
	ContentSize     int
	Processed       bool
	ProcessingError *string
	Preview         string
	ChunkCount      int
	IdempotencyKey  *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// ChunkRecord is a chunk prepared for persistence.
type ChunkRecord struct {
	Index         int
	Content       string
	Heading       *string
	TokenEstimate int
	Embedding     []float32
}

// ChunkHit is the canonical retrieval row: every search path (vector,
// keyword, recency) returns this one shape.
type ChunkHit struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Heading    *string
	Filename   string
	Similarity *float64
}

// Store wraps the PostgreSQL client with document and chunk operations.
type Store struct {
	pg *postgres.Client
}

// New creates a Store.
func New(pg *postgres.Client) *Store {
	return &Store{pg: pg}
}

// FormatVector renders an embedding as the bracketed comma-separated string
// the vector column and the search function both expect.
func FormatVector(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v)*10 + 2)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// InsertDocument persists a new unprocessed document row.
func (s *Store) InsertDocument(ctx context.Context, doc *Document) error {
	_, err := s.pg.DB.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, filename, content_type, raw_content, content_size, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		doc.ID, doc.OwnerID, doc.Filename, doc.ContentType, doc.RawContent, doc.ContentSize, doc.IdempotencyKey,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return apperrors.Newf(apperrors.ErrIdempotencyConflict, 409, "document %s", doc.ID)
		}
		return fmt.Errorf("%w: inserting document: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

// GetDocument loads a document's metadata (no raw content).
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.pg.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, content_type, content_size, processed,
		       processing_error, extracted_text_preview, chunk_count, created_at, processed_at
		FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// GetDocumentWithContent loads a document including its raw bytes.
func (s *Store) GetDocumentWithContent(ctx context.Context, id string) (*Document, error) {
	row := s.pg.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, content_type, content_size, processed,
		       processing_error, extracted_text_preview, chunk_count, created_at, processed_at,
		       raw_content
		FROM documents WHERE id = $1`, id)

	var doc Document
	var processingError, preview sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.ContentType,
		&doc.ContentSize, &doc.Processed, &processingError, &preview,
		&doc.ChunkCount, &doc.CreatedAt, &processedAt, &doc.RawContent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%w: loading document: %v", apperrors.ErrPersistence, err)
	}
	applyNullable(&doc, processingError, preview, processedAt)
	return &doc, nil
}

// FindByIdempotencyKey returns the existing document for an idempotency key,
// or ErrDocumentNotFound.
func (s *Store) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*Document, error) {
	row := s.pg.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, content_type, content_size, processed,
		       processing_error, extracted_text_preview, chunk_count, created_at, processed_at
		FROM documents WHERE owner_id = $1 AND idempotency_key = $2`, ownerID, key)
	return scanDocument(row)
}

// ListDocuments returns the owner's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, ownerID string, limit int) ([]*Document, error) {
	rows, err := s.pg.DB.QueryContext(ctx, `
		SELECT id, owner_id, filename, content_type, content_size, processed,
		       processing_error, extracted_text_preview, chunk_count, created_at, processed_at
		FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var processingError, preview sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.ContentType,
		&doc.ContentSize, &doc.Processed, &processingError, &preview,
		&doc.ChunkCount, &doc.CreatedAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%w: scanning document: %v", apperrors.ErrPersistence, err)
	}
	applyNullable(&doc, processingError, preview, processedAt)
	return &doc, nil
}

func applyNullable(doc *Document, processingError, preview sql.NullString, processedAt sql.NullTime) {
	if processingError.Valid {
		doc.ProcessingError = &processingError.String
	}
	if preview.Valid {
		doc.Preview = preview.String
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
}

// PersistChunks replaces a document's chunks and marks it processed, all in
// one transaction. A failure anywhere rolls back every row, so a document is
// never left partially embedded.
func (s *Store) PersistChunks(ctx context.Context, doc *Document, preview string, chunks []ChunkRecord) error {
	err := s.pg.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_chunks WHERE document_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("clearing existing chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO document_chunks (id, document_id, owner_id, chunk_index, content, token_estimate, heading, embedding, created_at)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7::vector, NOW())`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, doc.ID, doc.OwnerID, c.Index,
				c.Content, c.TokenEstimate, c.Heading, FormatVector(c.Embedding)); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET processed = TRUE, processing_error = NULL,
			    extracted_text_preview = $2, chunk_count = $3, processed_at = NOW()
			WHERE id = $1`, doc.ID, preview, len(chunks)); err != nil {
			return fmt.Errorf("marking document processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

// MarkFailed records a processing error and leaves the document unprocessed
// so it can be retried.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.pg.DB.ExecContext(ctx, `
		UPDATE documents SET processed = FALSE, processing_error = $2 WHERE id = $1`,
		id, message)
	if err != nil {
		return fmt.Errorf("%w: marking document failed: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

// ResetDocument clears processing state and chunks ahead of a reprocess.
func (s *Store) ResetDocument(ctx context.Context, id string) error {
	err := s.pg.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET processed = FALSE, processing_error = NULL,
			    extracted_text_preview = NULL, chunk_count = 0, processed_at = NULL
			WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("resetting document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrDocumentNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return nil
}
