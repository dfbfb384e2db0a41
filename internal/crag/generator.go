package crag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

const (
	generateContextLimit = 12
	tailorTextLimit      = 12000
	matchTextLimit       = 14000

	groundedTemperature = 0.3
	tailorTemperature   = 0.4
	matchTemperature    = 0.2
)

// Generator turns grounded contexts or a resume/job pair into a
// schema-complete result. Upstream and parse failures never escape: each
// mode degrades to its failure payload.
type Generator struct {
	completer Completer
}

func NewGenerator(completer Completer) *Generator {
	return &Generator{completer: completer}
}

type questionPayload struct {
	Question string               `json:"question"`
	Contexts []model.ContextChunk `json:"contexts"`
}

type pairPayload struct {
	ResumeText string `json:"resume_text"`
	JobText    string `json:"job_text"`
}

func (g *Generator) Analyze(ctx context.Context, question string, contexts []model.ContextChunk) *AnalyzeResult {
	if len(contexts) == 0 {
		return insufficientAnalyze()
	}
	var reply struct {
		MissingKeywords        []string `json:"missing_keywords"`
		ImprovementSuggestions []string `json:"improvement_suggestions"`
		RewrittenBullets       []string `json:"rewritten_bullets"`
	}
	if err := g.generate(ctx, ModeAnalyze, analyzePrompt, groundedTemperature, groundedPayload(question, contexts), analyzeSchema, &reply); err != nil {
		return failedAnalyze()
	}
	return &AnalyzeResult{
		MissingKeywords:        orEmpty(reply.MissingKeywords),
		ImprovementSuggestions: orEmpty(reply.ImprovementSuggestions),
		RewrittenBullets:       orEmpty(reply.RewrittenBullets),
	}
}

func (g *Generator) Chat(ctx context.Context, question string, contexts []model.ContextChunk) *ChatResult {
	if len(contexts) == 0 {
		return &ChatResult{Answer: insufficientContextMessage}
	}
	var reply struct {
		Answer *string `json:"answer"`
	}
	if err := g.generate(ctx, ModeChat, chatPrompt, groundedTemperature, groundedPayload(question, contexts), chatSchema, &reply); err != nil {
		return &ChatResult{Answer: generationFailedMessage}
	}
	if reply.Answer == nil {
		return &ChatResult{Answer: chatIncompleteAnswer}
	}
	return &ChatResult{Answer: *reply.Answer}
}

// Tailor rewrites bullets and drafts a cover letter from retrieved contexts.
func (g *Generator) Tailor(ctx context.Context, question string, contexts []model.ContextChunk) *TailorResult {
	if len(contexts) == 0 {
		return insufficientTailor()
	}
	return g.tailor(ctx, ModeTailor, groundedTemperature, groundedPayload(question, contexts))
}

// TailorDirect does the same from a known resume and job, without retrieval.
func (g *Generator) TailorDirect(ctx context.Context, resumeText, jobText string) *TailorResult {
	payload := pairPayload{
		ResumeText: truncateRunes(resumeText, tailorTextLimit),
		JobText:    truncateRunes(jobText, tailorTextLimit),
	}
	return g.tailor(ctx, ModeTailorDirect, tailorTemperature, payload)
}

func (g *Generator) tailor(ctx context.Context, mode Mode, temperature float64, payload interface{}) *TailorResult {
	var reply struct {
		TailoredBullets []string `json:"tailored_bullets"`
		CoverLetter     *string  `json:"cover_letter"`
	}
	if err := g.generate(ctx, mode, tailorPrompt, temperature, payload, tailorSchema, &reply); err != nil {
		return failedTailor(mode)
	}
	out := &TailorResult{TailoredBullets: orEmpty(reply.TailoredBullets), mode: mode}
	if reply.CoverLetter != nil {
		out.CoverLetter = *reply.CoverLetter
	}
	return out
}

// Match scores a resume against a job description. Scores are rounded and
// clamped to 0..100; a missing ats_score mirrors match_score.
func (g *Generator) Match(ctx context.Context, resumeText, jobText string) *MatchResult {
	payload := pairPayload{
		ResumeText: truncateRunes(resumeText, matchTextLimit),
		JobText:    truncateRunes(jobText, matchTextLimit),
	}
	var reply struct {
		MatchScore             *float64 `json:"match_score"`
		ATSScore               *float64 `json:"ats_score"`
		MatchedKeywords        []string `json:"matched_keywords"`
		MissingKeywords        []string `json:"missing_keywords"`
		SkillGaps              []string `json:"skill_gaps"`
		ImprovementSuggestions []string `json:"improvement_suggestions"`
		TailoredResumeBullets  []string `json:"tailored_resume_bullets"`
		CoverLetterSnippet     *string  `json:"cover_letter_snippet"`
	}
	if err := g.generate(ctx, ModeMatch, matchPrompt, matchTemperature, payload, matchSchema, &reply); err != nil {
		return failedMatch()
	}
	out := &MatchResult{
		MatchScore:             percent(reply.MatchScore),
		MatchedKeywords:        orEmpty(reply.MatchedKeywords),
		MissingKeywords:        orEmpty(reply.MissingKeywords),
		SkillGaps:              orEmpty(reply.SkillGaps),
		ImprovementSuggestions: orEmpty(reply.ImprovementSuggestions),
		TailoredResumeBullets:  orEmpty(reply.TailoredResumeBullets),
	}
	out.ATSScore = out.MatchScore
	if reply.ATSScore != nil {
		out.ATSScore = percent(reply.ATSScore)
	}
	if reply.CoverLetterSnippet != nil {
		out.CoverLetterSnippet = *reply.CoverLetterSnippet
	}
	return out
}

// generate runs one structured completion and decodes the validated reply
// into dst. Failures are logged here and returned so the caller can pick
// its failure payload.
func (g *Generator) generate(ctx context.Context, mode Mode, system string, temperature float64, payload interface{}, schema *gojsonschema.Schema, dst interface{}) error {
	logger := logutil.GetLogger(ctx).With(zap.String("mode", string(mode)))
	user, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encode generation payload failed", zap.Error(err))
		return err
	}
	raw, err := g.completer.CompleteJSON(ctx, ai.CompletionRequest{
		System:      system,
		User:        string(user),
		Temperature: temperature,
	})
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return err
	}
	if err := validateReply(schema, raw); err != nil {
		logger.Error("generation reply rejected", zap.Error(err))
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		err = fmt.Errorf("%w: %w", appErr.ErrMalformedResponse, err)
		logger.Error("decode generation reply failed", zap.Error(err))
		return err
	}
	return nil
}

func groundedPayload(question string, contexts []model.ContextChunk) questionPayload {
	if len(contexts) > generateContextLimit {
		contexts = contexts[:generateContextLimit]
	}
	return questionPayload{Question: question, Contexts: contexts}
}

func percent(v *float64) int {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	n := int(math.Round(*v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
