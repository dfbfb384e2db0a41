package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/careercopilot/internal/config"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

type ManagerConfig struct {
	Timeout int
}

// Manager is the gateway the rest of the service uses for model calls. It
// applies the per call timeout and maps provider failures onto the
// upstream error kinds.
type Manager struct {
	completer ICompleter
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(completer ICompleter, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		completer: completer,
		embedder:  embedder,
		cfg:       cfg,
	}
}

// NewManagerFromConfig builds the provider groups described by cfg.
func NewManagerFromConfig(cfg config.AIConfig) (*Manager, error) {
	completers := make([]CompleterEntry, 0, len(cfg.Completion))
	for _, item := range cfg.Completion {
		provider, err := NewProvider(item.Name, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init completion provider %s: %w", item.Name, err)
		}
		completers = append(completers, CompleterEntry{
			Name:      item.Name + ":" + item.Model,
			Completer: NewCompleter(provider, item.Model),
		})
	}
	embedders := make([]EmbedderEntry, 0, len(cfg.Embedding))
	for _, item := range cfg.Embedding {
		provider, err := NewEmbedProvider(item.Name, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider %s: %w", item.Name, err)
		}
		embedders = append(embedders, EmbedderEntry{
			Name:     item.Name + ":" + item.Model,
			Embedder: NewEmbedder(provider, item.Model),
		})
	}
	if len(completers) == 0 || len(embedders) == 0 {
		return nil, fmt.Errorf("%w: completion and embedding providers are required", appErr.ErrConfiguration)
	}
	return NewManager(NewGroupCompleter(completers), NewGroupEmbedder(embedders), ManagerConfig{Timeout: cfg.Timeout}), nil
}

// Embed returns one vector per text, in input order.
func (m *Manager) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", appErr.ErrConfiguration)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	vectors, err := m.embedder.Embed(ctx, texts, taskType)
	if err != nil {
		return nil, classify(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", appErr.ErrMalformedResponse, len(vectors), len(texts))
	}
	return vectors, nil
}

func (m *Manager) EmbedModel() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// CompleteJSON returns the raw reply text. It does not parse it.
func (m *Manager) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	if m.completer == nil {
		return "", fmt.Errorf("%w: completer not configured", appErr.ErrConfiguration)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	out, err := m.completer.CompleteJSON(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty completion", appErr.ErrMalformedResponse)
	}
	return out, nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return context.WithCancel(ctx)
}

func classify(err error) error {
	if errors.Is(err, appErr.ErrConfiguration) || errors.Is(err, appErr.ErrUpstreamUnavailable) || errors.Is(err, appErr.ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", appErr.ErrUpstreamUnavailable, err)
}
