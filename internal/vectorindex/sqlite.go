package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

const sqliteTable = "vector_chunks"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS vector_chunks (
		owner_id TEXT NOT NULL,
		id TEXT NOT NULL,
		document TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		PRIMARY KEY (owner_id, id)
	)`,
}

type sqliteConfig struct {
	Path string `json:"path"`
}

// sqliteIndex keeps vectors in a local sqlite file and ranks them with an
// exact cosine scan over the owner's rows.
type sqliteIndex struct {
	db       *sql.DB
	embedder Embedder
}

func init() {
	Register("sqlite", createSQLiteIndex)
}

func createSQLiteIndex(args interface{}, deps Deps) (Index, error) {
	cfg := &sqliteConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: vector_index.data.path is required for sqlite", appErr.ErrConfiguration)
	}
	return OpenSQLite(cfg.Path, deps.Embedder)
}

func OpenSQLite(path string, embedder Embedder) (Index, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vector index dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init vector index schema: %w", err)
		}
	}
	return &sqliteIndex{db: db, embedder: embedder}, nil
}

func (s *sqliteIndex) Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]interface{}) error {
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
	vectors, err := s.embedder.Embed(ctx, texts, ai.TaskTypeDocument)
	if err != nil {
		return err
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: got %d vectors for %d documents", appErr.ErrMalformedResponse, len(vectors), len(records))
	}
	now := time.Now().Unix()
	rows := make([]map[string]interface{}, 0, len(records))
	for i, rec := range records {
		blob, err := json.Marshal(vectors[i])
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"id":        rec.id,
			"owner_id":  rec.ownerID,
			"document":  rec.document,
			"metadata":  string(rec.metadata),
			"embedding": string(blob),
			"mtime":     now,
		})
	}
	sqlStr, args, err := builder.BuildInsert(sqliteTable, rows)
	if err != nil {
		return err
	}
	// Conflicts resolve on (owner_id, id), so one owner never replaces another's row.
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

type scoredChunk struct {
	chunk    model.ContextChunk
	distance float64
}

func (s *sqliteIndex) Query(ctx context.Context, ownerID string, queryText string, topK int) ([]model.ContextChunk, error) {
	if err := checkQuery(ownerID, topK); err != nil {
		return nil, err
	}
	vectors, err := s.embedder.Embed(ctx, []string{queryText}, ai.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", appErr.ErrMalformedResponse, len(vectors))
	}
	query := vectors[0]

	where := map[string]interface{}{"owner_id": ownerID}
	sqlStr, args, err := builder.BuildSelect(sqliteTable, where, []string{"id", "owner_id", "document", "metadata", "embedding"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	logger := logutil.GetLogger(ctx)
	var scored []scoredChunk
	for rows.Next() {
		var id, owner, document, rawMeta, rawEmb string
		if err := rows.Scan(&id, &owner, &document, &rawMeta, &rawEmb); err != nil {
			return nil, err
		}
		if owner != ownerID {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(rawEmb), &emb); err != nil {
			logger.Warn("skip vector with bad embedding", zap.String("id", id), zap.Error(err))
			continue
		}
		if len(emb) != len(query) {
			logger.Warn("skip vector with mismatched dimension", zap.String("id", id), zap.Int("dim", len(emb)), zap.Int("query_dim", len(query)))
			continue
		}
		meta, err := decodeMetadata([]byte(rawMeta))
		if err != nil {
			logger.Warn("skip vector with bad metadata", zap.String("id", id), zap.Error(err))
			continue
		}
		if model.MetaString(meta, model.MetaOwnerID) != ownerID {
			continue
		}
		distance := 1 - cosineSimilarity(query, emb)
		scored = append(scored, scoredChunk{
			chunk:    model.ContextChunk{ID: id, Text: document, Metadata: meta},
			distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].distance == scored[j].distance {
			return scored[i].chunk.ID < scored[j].chunk.ID
		}
		return scored[i].distance < scored[j].distance
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]model.ContextChunk, 0, len(scored))
	for _, item := range scored {
		d := item.distance
		item.chunk.Distance = &d
		out = append(out, item.chunk)
	}
	return out, nil
}

func (s *sqliteIndex) DeleteByPrefix(ctx context.Context, ownerID string, idPrefix string) error {
	return s.DeleteByPrefixExcept(ctx, ownerID, idPrefix, nil)
}

func (s *sqliteIndex) DeleteByPrefixExcept(ctx context.Context, ownerID string, idPrefix string, keep []string) error {
	if err := checkDelete(ownerID, idPrefix); err != nil {
		return err
	}
	stmt := "DELETE FROM vector_chunks WHERE owner_id = ? AND substr(id, 1, ?) = ?"
	args := []interface{}{ownerID, len(idPrefix), idPrefix}
	if len(keep) > 0 {
		stmt += " AND id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",") + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *sqliteIndex) Close() error {
	return s.db.Close()
}
