package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

var _ VectorIndex = (*vectorRepository)(nil)

// vectorRepository stores entry embeddings in a pgvector table. Scores are
// cosine similarity (1 - cosine distance), so higher is closer.
type vectorRepository struct {
	db *DB
}

func NewVectorRepository(db *DB) VectorIndex {
	return &vectorRepository{db: db}
}

func (r *vectorRepository) UpsertVector(ctx context.Context, entryID string, embedding []float32, title string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for entry %s", entryID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_vectors (entry_id, embedding, title)
		VALUES ($1, $2::vector, $3)
		ON CONFLICT (entry_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			title = EXCLUDED.title,
			updated_at = NOW()
	`, entryID, encodeVector(embedding), title)

	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	return nil
}

func (r *vectorRepository) QueryVectors(ctx context.Context, embedding []float32, topK int, minScore float64) ([]VectorHit, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}
	if topK <= 0 {
		topK = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, 1 - (embedding <=> $1::vector) AS score, title
		FROM search_vectors
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, encodeVector(embedding), minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var hit VectorHit
		if err := rows.Scan(&hit.EntryID, &hit.Score, &hit.Title); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector hits: %w", err)
	}

	return hits, nil
}

func (r *vectorRepository) DeleteVectors(ctx context.Context, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM search_vectors WHERE entry_id = ANY($1)`, pq.Array(entryIDs))
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	return nil
}

func (r *vectorRepository) ListVectorIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entry_id FROM search_vectors`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vector ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector ids: %w", err)
	}

	return ids, nil
}

func (r *vectorRepository) CountVectors(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_vectors`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// encodeVector renders an embedding in pgvector's text format: [1,2,3].
func encodeVector(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
