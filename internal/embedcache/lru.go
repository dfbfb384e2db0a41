package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// Wrap puts an in-memory cache in front of e. The retrieval loop embeds the
// same question once per attempt, so widened attempts hit the cache.
// A non-positive size or ttl returns e unchanged.
func Wrap(e Embedder, modelName string, size int, ttl time.Duration) Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	return &lruEmbedder{
		next:  e,
		model: modelName,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  Embedder
	model string
	cache *expirable.LRU[string, []float32]
}

// Embed serves cached vectors and sends only the misses upstream, in one call.
func (l *lruEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = cacheKey(l.model, taskType, text)
		if cached, ok := l.cache.Get(keys[i]); ok {
			out[i] = clone(cached)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("task_type", taskType), zap.Int("count", len(texts)))
		return out, nil
	}
	vectors, err := l.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(vectors) {
			break
		}
		out[i] = vectors[j]
		l.cache.Add(keys[i], clone(vectors[j]))
	}
	return out, nil
}

func cacheKey(modelName, taskType, text string) string {
	hash := sha256.Sum256([]byte(text))
	return modelName + ":" + taskType + ":" + hex.EncodeToString(hash[:])
}

func clone(values []float32) []float32 {
	if values == nil {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
