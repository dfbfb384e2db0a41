package crag

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/model"
)

const (
	AcceptThreshold = 7
	TopKStep        = 4
	MaxTopK         = 20
)

type Retriever interface {
	Query(ctx context.Context, ownerID string, queryText string, topK int) ([]model.ContextChunk, error)
}

type RelevanceScorer interface {
	Score(ctx context.Context, question string, contexts []model.ContextChunk) RelevanceScore
}

// Attempt records one retrieve-and-grade round. Err is set when the
// retrieval itself failed; such a round is not scored.
type Attempt struct {
	Number   int
	TopK     int
	Contexts []model.ContextChunk
	Score    RelevanceScore
	Err      error
}

type Retrieval struct {
	Contexts  []model.ContextChunk
	BestScore int
	Accepted  bool
	Attempts  []Attempt
}

type Loop struct {
	retriever Retriever
	scorer    RelevanceScorer
}

func NewLoop(retriever Retriever, scorer RelevanceScorer) *Loop {
	return &Loop{retriever: retriever, scorer: scorer}
}

// RetrieveWithCorrection queries the owner's index, grades the result and
// widens top_k until a grade reaches AcceptThreshold or the retry budget
// runs out. Without an accepted round it returns the highest graded set,
// keeping the earliest on ties. It never returns an error.
func (l *Loop) RetrieveWithCorrection(ctx context.Context, ownerID, question string, initialTopK, maxRetries int) *Retrieval {
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID))
	if maxRetries < 0 {
		maxRetries = 0
	}
	topK := clampTopK(initialTopK)
	out := &Retrieval{Contexts: []model.ContextChunk{}}
	bestScore := 0
	bestContexts := []model.ContextChunk{}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("retrieval stopped", zap.Int("attempt", attempt+1), zap.Error(err))
			break
		}
		round := Attempt{Number: attempt + 1, TopK: topK}
		contexts, err := l.retriever.Query(ctx, ownerID, question, topK)
		if err != nil {
			round.Err = err
			logger.Warn("retrieval query failed", zap.Int("attempt", round.Number), zap.Int("top_k", topK), zap.Error(err))
		} else {
			if contexts == nil {
				contexts = []model.ContextChunk{}
			}
			round.Contexts = contexts
			round.Score = l.scorer.Score(ctx, question, contexts)
			logger.Info("retrieval graded",
				zap.Int("attempt", round.Number),
				zap.Int("top_k", topK),
				zap.Int("contexts", len(contexts)),
				zap.Int("score", round.Score.RelevanceScore),
				zap.String("reasoning", round.Score.Reasoning),
			)
			if round.Score.RelevanceScore > bestScore {
				bestScore = round.Score.RelevanceScore
				bestContexts = contexts
			}
			if round.Score.RelevanceScore >= AcceptThreshold {
				out.Attempts = append(out.Attempts, round)
				out.Contexts = contexts
				out.BestScore = round.Score.RelevanceScore
				out.Accepted = true
				return out
			}
		}
		out.Attempts = append(out.Attempts, round)
		topK = min(topK+TopKStep, MaxTopK)
	}
	out.Contexts = bestContexts
	out.BestScore = bestScore
	return out
}

func clampTopK(topK int) int {
	if topK < 1 {
		return 1
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}
