package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/xxxsen/careercopilot/internal/config"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

// Index stores owner scoped text chunks with their embeddings.
//
// Records are keyed by (owner_id, id): Upsert replaces a record only within
// its owner. Query only ever returns records whose owner_id metadata equals
// ownerID, best match first. DeleteByPrefixExcept removes the owner's records
// under idPrefix whose id is not in keep.
type Index interface {
	Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]interface{}) error
	Query(ctx context.Context, ownerID string, queryText string, topK int) ([]model.ContextChunk, error)
	DeleteByPrefix(ctx context.Context, ownerID string, idPrefix string) error
	DeleteByPrefixExcept(ctx context.Context, ownerID string, idPrefix string, keep []string) error
	Close() error
}

type Embedder interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// Deps carries the shared handles a backend may use.
type Deps struct {
	Embedder Embedder
	DB       *sql.DB
}

type Factory func(args interface{}, deps Deps) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorIndexConfig, deps Deps) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("%w: vector_index.type is required", appErr.ErrConfiguration)
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("%w: vector index needs an embedder", appErr.ErrConfiguration)
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported vector index type: %s", appErr.ErrConfiguration, cfg.Type)
	}
	return factory(cfg.Data, deps)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("%w: vector index config is required", appErr.ErrConfiguration)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector index config: %w", err)
	}
	return nil
}

type record struct {
	id       string
	ownerID  string
	document string
	metadata []byte
}

// prepareRecords checks the parallel slices and pulls the owner key out of
// each metadata map.
func prepareRecords(ids []string, documents []string, metadatas []map[string]interface{}) ([]record, error) {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return nil, appErr.NewValidationError("ids", fmt.Sprintf("length mismatch: %d ids, %d documents, %d metadatas", len(ids), len(documents), len(metadatas)))
	}
	out := make([]record, 0, len(ids))
	seen := make(map[string]int, len(ids))
	for i := range ids {
		id := strings.TrimSpace(ids[i])
		if id == "" {
			return nil, appErr.NewValidationError("ids", fmt.Sprintf("id at %d is empty", i))
		}
		owner := model.MetaString(metadatas[i], model.MetaOwnerID)
		if owner == "" {
			return nil, appErr.NewValidationError("metadatas", fmt.Sprintf("record %s has no owner_id", id))
		}
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", id, err)
		}
		rec := record{id: id, ownerID: owner, document: documents[i], metadata: meta}
		// later duplicates win within one batch
		if pos, ok := seen[id]; ok {
			out[pos] = rec
			continue
		}
		seen[id] = len(out)
		out = append(out, rec)
	}
	return out, nil
}

func checkQuery(ownerID string, topK int) error {
	if strings.TrimSpace(ownerID) == "" {
		return appErr.NewValidationError("owner_id", "owner_id is required")
	}
	if topK < 1 {
		return appErr.NewValidationError("top_k", "top_k must be at least 1")
	}
	return nil
}

func checkDelete(ownerID, idPrefix string) error {
	if strings.TrimSpace(ownerID) == "" || idPrefix == "" {
		return appErr.NewValidationError("owner_id", "owner_id and prefix are required")
	}
	return nil
}

func decodeMetadata(raw []byte) (map[string]interface{}, error) {
	meta := map[string]interface{}{}
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
