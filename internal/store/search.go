package store

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
)

// VectorSearch calls the search_documents function, which performs
// cosine-ordered approximate nearest-neighbor search over the owner's
// chunks.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, ownerID string, threshold float64, count int) ([]ChunkHit, error) {
	rows, err := s.pg.DB.QueryContext(ctx, `
		SELECT document_id, chunk_index, content, heading, filename, similarity
		FROM search_documents($1::vector, $2, $3, $4)`,
		FormatVector(embedding), ownerID, threshold, count)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var hits []ChunkHit
	for rows.Next() {
		var h ChunkHit
		var similarity float64
		if err := rows.Scan(&h.DocumentID, &h.ChunkIndex, &h.Content, &h.Heading, &h.Filename, &similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning vector hit: %v", apperrors.ErrPersistence, err)
		}
		h.Similarity = &similarity
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// KeywordSearch matches chunks containing any of the keywords (OR
// semantics), owner-scoped, ordered by document recency then chunk order.
func (s *Store) KeywordSearch(ctx context.Context, keywords []string, ownerID string, limit int) ([]ChunkHit, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(keywords))
	args := []any{ownerID}
	for _, kw := range keywords {
		args = append(args, "%"+kw+"%")
		conditions = append(conditions, fmt.Sprintf("c.content ILIKE $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT c.document_id, c.chunk_index, c.content, c.heading, d.filename
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.owner_id = $1 AND (%s)
		ORDER BY d.created_at DESC, c.chunk_index ASC
		LIMIT $%d`, strings.Join(conditions, " OR "), len(args))

	rows, err := s.pg.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()
	return scanHits(rows)
}

// RecentChunks returns the owner's chunks in document order, the retrieval
// path of last resort.
func (s *Store) RecentChunks(ctx context.Context, ownerID string, limit int) ([]ChunkHit, error) {
	rows, err := s.pg.DB.QueryContext(ctx, `
		SELECT c.document_id, c.chunk_index, c.content, c.heading, d.filename
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.owner_id = $1
		ORDER BY d.created_at DESC, c.chunk_index ASC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent chunks: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()
	return scanHits(rows)
}

type hitRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanHits(rows hitRows) ([]ChunkHit, error) {
	var hits []ChunkHit
	for rows.Next() {
		var h ChunkHit
		if err := rows.Scan(&h.DocumentID, &h.ChunkIndex, &h.Content, &h.Heading, &h.Filename); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk hit: %v", apperrors.ErrPersistence, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
