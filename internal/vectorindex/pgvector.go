package vectorindex

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/model"
)

type pgvectorConfig struct {
	DSN       string `json:"dsn"`
	Table     string `json:"table"`
	Dimension int    `json:"dimension"`
}

type pgvectorIndex struct {
	db    *sqlx.DB
	table string
	model string
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func init() {
	Register("pgvector", createPgvectorIndex)
}

func createPgvectorIndex(args interface{}, embedModel string) (Index, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector dimension is required")
	}
	if cfg.Table == "" {
		cfg.Table = "medical_chunks"
	}
	if !identPattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid pgvector table name: %s", cfg.Table)
	}

	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect vector database: %w", err)
	}
	idx := &pgvectorIndex{db: db, table: cfg.Table, model: embedModel}
	if err := idx.bootstrap(cfg.Dimension); err != nil {
		return nil, err
	}
	idx.warnOnModelMismatch(context.Background())
	return idx, nil
}

func (p *pgvectorIndex) bootstrap(dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			content TEXT NOT NULL,
			source_file TEXT NOT NULL,
			page INT NOT NULL,
			start_offset INT NOT NULL
		)`, p.table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_model_idx ON %s (model_name)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap vector table: %w", err)
		}
	}
	return nil
}

// warnOnModelMismatch surfaces the "index was built with a different
// embedding model" condition at startup instead of letting every query
// quietly return nothing.
func (p *pgvectorIndex) warnOnModelMismatch(ctx context.Context) {
	logger := logutil.GetLogger(ctx)
	var total, mine int64
	if err := p.db.GetContext(ctx, &total, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)); err != nil {
		logger.Warn("failed to inspect vector table", zap.Error(err))
		return
	}
	if err := p.db.GetContext(ctx, &mine, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE model_name = $1`, p.table), p.model); err != nil {
		logger.Warn("failed to inspect vector table", zap.Error(err))
		return
	}
	if total > 0 && mine == 0 {
		logger.Warn("vector index has no entries for the configured embedding model; re-ingest the corpus",
			zap.String("model", p.model), zap.Int64("total_entries", total))
	}
}

func (p *pgvectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, model_name, embedding, content, source_file, page, start_offset)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			embedding = EXCLUDED.embedding,
			content = EXCLUDED.content,
			source_file = EXCLUDED.source_file,
			page = EXCLUDED.page,
			start_offset = EXCLUDED.start_offset
	`, p.table)

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query,
			entry.ID,
			p.model,
			pgvector.NewVector(entry.Vector),
			entry.Chunk.Text,
			entry.Chunk.SourceFile,
			entry.Chunk.Page,
			entry.Chunk.StartOffset,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", entry.ID, err)
		}
	}
	return tx.Commit()
}

type pgvectorRow struct {
	ID          string  `db:"id"`
	Content     string  `db:"content"`
	SourceFile  string  `db:"source_file"`
	Page        int     `db:"page"`
	StartOffset int     `db:"start_offset"`
	Score       float64 `db:"score"`
}

func (p *pgvectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	// <=> is cosine distance; 1 - distance restores the documented
	// higher-is-better similarity convention.
	query := fmt.Sprintf(`
		SELECT id, content, source_file, page, start_offset,
		       1 - (embedding <=> $1) AS score
		FROM %s
		WHERE model_name = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, p.table)

	var rows []pgvectorRow
	if err := p.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vector), p.model, topK); err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Chunk: model.DocumentChunk{
				ID:          row.ID,
				Text:        row.Content,
				SourceFile:  row.SourceFile,
				Page:        row.Page,
				StartOffset: row.StartOffset,
			},
			Score: float32(row.Score),
		})
	}
	return matches, nil
}

func (p *pgvectorIndex) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE model_name = $1`, p.table)
	if err := p.db.GetContext(ctx, &count, query, p.model); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}
