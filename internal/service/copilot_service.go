package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/crag"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
	"github.com/xxxsen/careercopilot/internal/pkg/timeutil"
)

type Retrieval interface {
	RetrieveWithCorrection(ctx context.Context, ownerID, question string, initialTopK, maxRetries int) *crag.Retrieval
}

type Generation interface {
	Analyze(ctx context.Context, question string, contexts []model.ContextChunk) *crag.AnalyzeResult
	Chat(ctx context.Context, question string, contexts []model.ContextChunk) *crag.ChatResult
	Tailor(ctx context.Context, question string, contexts []model.ContextChunk) *crag.TailorResult
	TailorDirect(ctx context.Context, resumeText, jobText string) *crag.TailorResult
	Match(ctx context.Context, resumeText, jobText string) *crag.MatchResult
}

type ResumeReader interface {
	GetByID(ctx context.Context, userID, resumeID string) (*model.Resume, error)
}

type JobReader interface {
	GetByID(ctx context.Context, userID, jobID string) (*model.Job, error)
}

type AnalysisStore interface {
	Create(ctx context.Context, record *model.AnalysisRecord) error
	ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.AnalysisRecord, error)
}

type AnalyzeRequest struct {
	Query string `json:"query" validate:"required,min=3"`
	TopK  *int   `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type AskRequest struct {
	Question string `json:"question" validate:"required,min=3"`
	TopK     *int   `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type TailorRequest struct {
	Query    string `json:"query"`
	ResumeID string `json:"resume_id"`
	JobID    string `json:"job_id"`
	TopK     *int   `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type MatchRequest struct {
	ResumeID string `json:"resume_id" validate:"required"`
	JobID    string `json:"job_id" validate:"required"`
}

// MatchResponse is a match result plus the id of the record it was saved as.
type MatchResponse struct {
	*crag.MatchResult
	AnalysisID string `json:"analysis_id,omitempty"`
}

type CopilotConfig struct {
	InitialTopK int
	MaxRetries  int
}

type CopilotService struct {
	retrieval Retrieval
	generator Generation
	resumes   ResumeReader
	jobs      JobReader
	analyses  AnalysisStore
	cfg       CopilotConfig
}

func NewCopilotService(retrieval Retrieval, generator Generation, resumes ResumeReader, jobs JobReader, analyses AnalysisStore, cfg CopilotConfig) *CopilotService {
	return &CopilotService{
		retrieval: retrieval,
		generator: generator,
		resumes:   resumes,
		jobs:      jobs,
		analyses:  analyses,
		cfg:       cfg,
	}
}

func (s *CopilotService) Analyze(ctx context.Context, userID string, req AnalyzeRequest) (*crag.AnalyzeResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	contexts := s.retrieve(ctx, userID, req.Query, req.TopK)
	return s.generator.Analyze(ctx, req.Query, contexts), nil
}

func (s *CopilotService) Ask(ctx context.Context, userID string, req AskRequest) (*crag.ChatResult, error) {
	req.Question = strings.TrimSpace(req.Question)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	contexts := s.retrieve(ctx, userID, req.Question, req.TopK)
	return s.generator.Chat(ctx, req.Question, contexts), nil
}

// Tailor works directly on a resume/job pair when both ids are given and
// falls back to retrieval over the user's documents otherwise.
func (s *CopilotService) Tailor(ctx context.Context, userID string, req TailorRequest) (*crag.TailorResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.ResumeID = strings.TrimSpace(req.ResumeID)
	req.JobID = strings.TrimSpace(req.JobID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.ResumeID != "" && req.JobID != "" {
		resume, job, err := s.loadPair(ctx, userID, req.ResumeID, req.JobID)
		if err != nil {
			return nil, err
		}
		return s.generator.TailorDirect(ctx, resume.Content, job.Description), nil
	}
	if req.Query == "" {
		return nil, appErr.NewValidationError("query", "is required unless resume_id and job_id are both set")
	}
	contexts := s.retrieve(ctx, userID, req.Query, req.TopK)
	return s.generator.Tailor(ctx, req.Query, contexts), nil
}

// Match scores an owned resume against an owned job and records the
// outcome. A failed save is logged and the result is still returned.
func (s *CopilotService) Match(ctx context.Context, userID string, req MatchRequest) (*MatchResponse, error) {
	req.ResumeID = strings.TrimSpace(req.ResumeID)
	req.JobID = strings.TrimSpace(req.JobID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	resume, job, err := s.loadPair(ctx, userID, req.ResumeID, req.JobID)
	if err != nil {
		return nil, err
	}
	result := s.generator.Match(ctx, resume.Content, job.Description)
	record := &model.AnalysisRecord{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		ResumeID:               resume.ID,
		JobID:                  job.ID,
		MatchScore:             result.MatchScore,
		MatchedKeywords:        result.MatchedKeywords,
		MissingKeywords:        result.MissingKeywords,
		ImprovementSuggestions: result.ImprovementSuggestions,
		Ctime:                  timeutil.NowUnix(),
	}
	resp := &MatchResponse{MatchResult: result}
	if err := s.analyses.Create(ctx, record); err != nil {
		logutil.GetLogger(ctx).Error("save analysis failed",
			zap.String("user_id", userID), zap.String("resume_id", resume.ID), zap.String("job_id", job.ID), zap.Error(err))
		return resp, nil
	}
	resp.AnalysisID = record.ID
	return resp, nil
}

func (s *CopilotService) ListAnalyses(ctx context.Context, userID string, offset, limit uint) ([]model.AnalysisRecord, error) {
	return s.analyses.ListByUser(ctx, userID, offset, limit)
}

func (s *CopilotService) loadPair(ctx context.Context, userID, resumeID, jobID string) (*model.Resume, *model.Job, error) {
	resume, err := s.resumes.GetByID(ctx, userID, resumeID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return nil, nil, err
	}
	return resume, job, nil
}

func (s *CopilotService) retrieve(ctx context.Context, userID, question string, topK *int) []model.ContextChunk {
	initial := s.cfg.InitialTopK
	if topK != nil {
		initial = *topK
	}
	retrieval := s.retrieval.RetrieveWithCorrection(ctx, userID, question, initial, s.cfg.MaxRetries)
	logutil.GetLogger(ctx).Info("retrieval finished",
		zap.String("user_id", userID),
		zap.Int("attempts", len(retrieval.Attempts)),
		zap.Int("best_score", retrieval.BestScore),
		zap.Bool("accepted", retrieval.Accepted),
		zap.Int("contexts", len(retrieval.Contexts)),
	)
	return retrieval.Contexts
}
