package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresRetriever queries a pgvector-backed passage index. The index
// itself is produced by the offline ingestion pipeline; this retriever
// only reads it.
type PostgresRetriever struct {
	pool     *pgxpool.Pool
	embedder Embedder
	dim      int
}

func NewPostgresRetriever(ctx context.Context, databaseURL string, embedder Embedder, dim int) (*PostgresRetriever, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresRetriever{pool: pool, embedder: embedder, dim: dim}, nil
}

// Ready verifies the passage index exists and holds at least one row.
// An absent or empty index is a configuration error the operator must
// fix before the service can answer anything.
func (r *PostgresRetriever) Ready(ctx context.Context) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'passages')`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("probe passage index: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: table passages does not exist (run the ingestion pipeline first)", ErrNotReady)
	}

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&count); err != nil {
		return fmt.Errorf("probe passage index: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: table passages is empty", ErrNotReady)
	}
	return nil
}

func (r *PostgresRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k < 1 {
		k = 1
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if r.dim > 0 && len(vec) != r.dim {
		return nil, fmt.Errorf("query embedding dimension %d does not match index dimension %d", len(vec), r.dim)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT content, metadata
		 FROM passages
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vec),
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	passages := make([]Passage, 0, k)
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.Text, &p.Metadata); err != nil {
			return nil, fmt.Errorf("scan passage row: %w", err)
		}
		p.Rank = len(passages)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passage rows: %w", err)
	}
	return passages, nil
}

func (r *PostgresRetriever) Close() error {
	r.pool.Close()
	return nil
}
