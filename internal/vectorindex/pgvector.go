package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type pgvectorConfig struct {
	DSN        string `json:"dsn"`
	Table      string `json:"table"`
	Dimensions int    `json:"dimensions"`
}

// pgvectorIndex ranks with the cosine distance operator of the pgvector
// extension. It reuses the service database unless a dsn is configured.
type pgvectorIndex struct {
	db       *sql.DB
	ownsDB   bool
	table    string
	embedder Embedder
}

func init() {
	Register("pgvector", createPGVectorIndex)
}

func createPGVectorIndex(args interface{}, deps Deps) (Index, error) {
	cfg := &pgvectorConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Table == "" {
		cfg.Table = "vector_chunks"
	}
	if !tableNameRegex.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid pgvector table name %q", appErr.ErrConfiguration, cfg.Table)
	}
	db := deps.DB
	ownsDB := false
	if cfg.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector db: %w", err)
		}
		ownsDB = true
	}
	if db == nil {
		return nil, fmt.Errorf("%w: pgvector needs vector_index.data.dsn or the service database", appErr.ErrConfiguration)
	}
	idx := &pgvectorIndex{db: db, ownsDB: ownsDB, table: cfg.Table, embedder: deps.Embedder}
	if err := idx.migrate(context.Background(), cfg.Dimensions); err != nil {
		if ownsDB {
			_ = db.Close()
		}
		return nil, err
	}
	return idx, nil
}

func (p *pgvectorIndex) migrate(ctx context.Context, dims int) error {
	column := "vector"
	if dims > 0 {
		column = fmt.Sprintf("vector(%d)", dims)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			owner_id TEXT NOT NULL,
			id TEXT NOT NULL,
			document TEXT NOT NULL,
			metadata JSONB NOT NULL,
			embedding %s NOT NULL,
			mtime BIGINT NOT NULL,
			PRIMARY KEY (owner_id, id)
		)`, p.table, column),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init pgvector schema: %w", err)
		}
	}
	return nil
}

func (p *pgvectorIndex) Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]interface{}) error {
	records, err := prepareRecords(ids, documents, metadatas)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		texts = append(texts, rec.document)
	}
	vectors, err := p.embedder.Embed(ctx, texts, ai.TaskTypeDocument)
	if err != nil {
		return err
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: got %d vectors for %d documents", appErr.ErrMalformedResponse, len(vectors), len(records))
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, owner_id, document, metadata, embedding, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			document = EXCLUDED.document,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime`, p.table)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().Unix()
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, stmt, rec.id, rec.ownerID, rec.document, string(rec.metadata), pgvector.NewVector(vectors[i]), now); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.id, err)
		}
	}
	return tx.Commit()
}

func (p *pgvectorIndex) Query(ctx context.Context, ownerID string, queryText string, topK int) ([]model.ContextChunk, error) {
	if err := checkQuery(ownerID, topK); err != nil {
		return nil, err
	}
	vectors, err := p.embedder.Embed(ctx, []string{queryText}, ai.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", appErr.ErrMalformedResponse, len(vectors))
	}
	stmt := fmt.Sprintf(`SELECT id, document, metadata, embedding <=> $2 AS distance
		FROM %s WHERE owner_id = $1
		ORDER BY distance ASC, id ASC
		LIMIT $3`, p.table)
	rows, err := p.db.QueryContext(ctx, stmt, ownerID, pgvector.NewVector(vectors[0]), topK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]model.ContextChunk, 0, topK)
	for rows.Next() {
		var (
			id, document string
			rawMeta      []byte
			distance     float64
		)
		if err := rows.Scan(&id, &document, &rawMeta, &distance); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(rawMeta)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		if model.MetaString(meta, model.MetaOwnerID) != ownerID {
			continue
		}
		d := distance
		out = append(out, model.ContextChunk{ID: id, Text: document, Metadata: meta, Distance: &d})
	}
	return out, rows.Err()
}

func (p *pgvectorIndex) DeleteByPrefix(ctx context.Context, ownerID string, idPrefix string) error {
	return p.DeleteByPrefixExcept(ctx, ownerID, idPrefix, nil)
}

func (p *pgvectorIndex) DeleteByPrefixExcept(ctx context.Context, ownerID string, idPrefix string, keep []string) error {
	if err := checkDelete(ownerID, idPrefix); err != nil {
		return err
	}
	if keep == nil {
		keep = []string{}
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1 AND substr(id, 1, $2) = $3 AND NOT (id = ANY($4))`, p.table)
	_, err := p.db.ExecContext(ctx, stmt, ownerID, len(idPrefix), idPrefix, pq.Array(keep))
	return err
}

func (p *pgvectorIndex) Close() error {
	if p.ownsDB {
		return p.db.Close()
	}
	return nil
}
