package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CompleterEntry struct {
	Name      string
	Completer ICompleter
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// groupCompleter tries each entry in order and returns the first success.
type groupCompleter struct {
	items []CompleterEntry
}

func NewGroupCompleter(items []CompleterEntry) ICompleter {
	if len(items) == 0 {
		return nil
	}
	return &groupCompleter{items: items}
}

func (g *groupCompleter) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Completer == nil {
			continue
		}
		res, err := item.Completer.CompleteJSON(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("completer failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("completer not configured")
	}
	return "", lastErr
}

// groupEmbedder falls back across providers. Vectors from different models
// are not comparable, so the first entry should be the one the index was
// built with.
type groupEmbedder struct {
	items []EmbedderEntry
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, texts, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "|")
}
