package crag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/model"
)

const (
	scoreContextLimit = 5
	fallbackScore     = 5
	fallbackReasoning = "Scoring failed."
)

// Completer is the single structured completion call every LLM step uses.
type Completer interface {
	CompleteJSON(ctx context.Context, req ai.CompletionRequest) (string, error)
}

type RelevanceScore struct {
	RelevanceScore int    `json:"relevance_score"`
	Reasoning      string `json:"reasoning"`
}

func FallbackScore() RelevanceScore {
	return RelevanceScore{RelevanceScore: fallbackScore, Reasoning: fallbackReasoning}
}

type Scorer struct {
	completer Completer
}

func NewScorer(completer Completer) *Scorer {
	return &Scorer{completer: completer}
}

// Score grades how well contexts answer question. It never fails: any
// upstream or parse problem yields FallbackScore.
func (s *Scorer) Score(ctx context.Context, question string, contexts []model.ContextChunk) RelevanceScore {
	logger := logutil.GetLogger(ctx)
	if len(contexts) > scoreContextLimit {
		contexts = contexts[:scoreContextLimit]
	}
	if contexts == nil {
		contexts = []model.ContextChunk{}
	}
	serialized, err := json.Marshal(contexts)
	if err != nil {
		logger.Warn("encode contexts for scoring failed", zap.Error(err))
		return FallbackScore()
	}
	raw, err := s.completer.CompleteJSON(ctx, ai.CompletionRequest{
		System:      scorePrompt,
		User:        fmt.Sprintf("Question: %s\nContext: %s", question, serialized),
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("relevance scoring failed", zap.Error(err))
		return FallbackScore()
	}
	if err := validateReply(scoreSchema, raw); err != nil {
		logger.Warn("relevance score reply rejected", zap.Error(err))
		return FallbackScore()
	}
	var reply struct {
		RelevanceScore float64 `json:"relevance_score"`
		Reasoning      string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		logger.Warn("decode relevance score failed", zap.Error(err))
		return FallbackScore()
	}
	return RelevanceScore{RelevanceScore: int(reply.RelevanceScore), Reasoning: reply.Reasoning}
}
