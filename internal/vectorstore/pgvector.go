package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

func init() {
	Register("pgvector", func(cfg config.VectorConfig) (contracts.VectorStoreDriver, error) {
		if cfg.PgvectorURL == "" {
			return nil, fmt.Errorf("pgvector: CANVAS_PGVECTOR_URL is required")
		}
		return NewPgvector(context.Background(), cfg.PgvectorURL)
	})
}

// Pgvector implements the vector store on PostgreSQL with the pgvector
// extension. Users must provide their own instance with pgvector
// installed. All collections share one table keyed by collection name,
// so dropping a collection is a single DELETE.
type Pgvector struct {
	pool *pgxpool.Pool
}

// NewPgvector connects and creates the required table if missing.
func NewPgvector(ctx context.Context, connURL string) (*Pgvector, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &Pgvector{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Msg("pgvector store initialized")
	return s, nil
}

func (s *Pgvector) migrate(ctx context.Context) error {
	ddl := `
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS canvas_vectors (
			id         TEXT NOT NULL,
			collection TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			vector     vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_canvas_vectors_collection ON canvas_vectors (collection);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *Pgvector) Kind() string { return "pgvector" }

func (s *Pgvector) EnsureCollection(ctx context.Context, collection string) error {
	// Collections are rows in a shared table; nothing to create.
	return nil
}

func (s *Pgvector) DropCollection(ctx context.Context, collection string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM canvas_vectors WHERE collection = $1", collection)
	return err
}

func (s *Pgvector) Upsert(ctx context.Context, collection string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO canvas_vectors (id, collection, content, metadata, vector) VALUES `)

	args := make([]interface{}, 0, len(records)*5)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*5 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4))
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		args = append(args, r.ID, collection, r.Content, metadata, pgvectorArray(r.Vector))
	}

	sb.WriteString(` ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		vector = EXCLUDED.vector`)

	_, err := s.pool.Exec(ctx, sb.String(), args...)
	return err
}

func (s *Pgvector) Query(ctx context.Context, collection string, vector []float64, topK int) ([]models.VectorMatch, error) {
	query := `SELECT id, metadata, vector <=> $1 AS distance
		FROM canvas_vectors
		WHERE collection = $2
		ORDER BY vector <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, pgvectorArray(vector), collection, topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer rows.Close()

	var matches []models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		if err := rows.Scan(&m.ID, &m.Metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *Pgvector) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM canvas_vectors WHERE collection = $1", collection).Scan(&count)
	return count, err
}

func (s *Pgvector) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Pgvector) Close() {
	s.pool.Close()
}

// pgvectorArray converts a float64 slice to pgvector's text format: [1.0,2.0,3.0]
func pgvectorArray(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sb.String()
}
