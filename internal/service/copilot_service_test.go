package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careercopilot/internal/crag"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

type retrievalCall struct {
	ownerID    string
	question   string
	topK       int
	maxRetries int
}

type fakeRetrieval struct {
	contexts []model.ContextChunk
	calls    []retrievalCall
}

func (f *fakeRetrieval) RetrieveWithCorrection(_ context.Context, ownerID, question string, initialTopK, maxRetries int) *crag.Retrieval {
	f.calls = append(f.calls, retrievalCall{ownerID, question, initialTopK, maxRetries})
	return &crag.Retrieval{Contexts: f.contexts, BestScore: 8, Accepted: true}
}

type fakeGeneration struct {
	calls    []string
	lastText [2]string
	match    *crag.MatchResult
}

func (f *fakeGeneration) Analyze(_ context.Context, question string, contexts []model.ContextChunk) *crag.AnalyzeResult {
	f.calls = append(f.calls, "analyze")
	return &crag.AnalyzeResult{MissingKeywords: []string{question}, ImprovementSuggestions: []string{}, RewrittenBullets: []string{}}
}

func (f *fakeGeneration) Chat(_ context.Context, question string, _ []model.ContextChunk) *crag.ChatResult {
	f.calls = append(f.calls, "chat")
	return &crag.ChatResult{Answer: "answer to " + question}
}

func (f *fakeGeneration) Tailor(_ context.Context, _ string, _ []model.ContextChunk) *crag.TailorResult {
	f.calls = append(f.calls, "tailor")
	return &crag.TailorResult{TailoredBullets: []string{}}
}

func (f *fakeGeneration) TailorDirect(_ context.Context, resumeText, jobText string) *crag.TailorResult {
	f.calls = append(f.calls, "tailor_direct")
	f.lastText = [2]string{resumeText, jobText}
	return &crag.TailorResult{TailoredBullets: []string{"bullet"}, CoverLetter: "letter"}
}

func (f *fakeGeneration) Match(_ context.Context, resumeText, jobText string) *crag.MatchResult {
	f.calls = append(f.calls, "match")
	f.lastText = [2]string{resumeText, jobText}
	return f.match
}

type fakeResumes struct {
	items map[string]*model.Resume
}

func (f *fakeResumes) GetByID(_ context.Context, userID, resumeID string) (*model.Resume, error) {
	r, ok := f.items[resumeID]
	if !ok || r.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return r, nil
}

type fakeJobs struct {
	items map[string]*model.Job
}

func (f *fakeJobs) GetByID(_ context.Context, userID, jobID string) (*model.Job, error) {
	j, ok := f.items[jobID]
	if !ok || j.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return j, nil
}

type fakeAnalyses struct {
	records []model.AnalysisRecord
	err     error
}

func (f *fakeAnalyses) Create(_ context.Context, record *model.AnalysisRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeAnalyses) ListByUser(_ context.Context, userID string, _, _ uint) ([]model.AnalysisRecord, error) {
	out := []model.AnalysisRecord{}
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type copilotFixture struct {
	retrieval *fakeRetrieval
	generator *fakeGeneration
	analyses  *fakeAnalyses
	svc       *CopilotService
}

func newCopilotFixture() *copilotFixture {
	f := &copilotFixture{
		retrieval: &fakeRetrieval{contexts: []model.ContextChunk{{ID: "resume-r1-0", Text: "go"}}},
		generator: &fakeGeneration{match: &crag.MatchResult{
			MatchScore:             64,
			ATSScore:               64,
			MatchedKeywords:        []string{"go"},
			MissingKeywords:        []string{"kafka"},
			SkillGaps:              []string{},
			ImprovementSuggestions: []string{"mention kafka"},
			TailoredResumeBullets:  []string{},
		}},
		analyses: &fakeAnalyses{},
	}
	resumes := &fakeResumes{items: map[string]*model.Resume{
		"r1": {ID: "r1", UserID: "u1", Content: "resume text"},
		"r2": {ID: "r2", UserID: "u2", Content: "someone else"},
	}}
	jobs := &fakeJobs{items: map[string]*model.Job{
		"j1": {ID: "j1", UserID: "u1", Description: "job text"},
	}}
	f.svc = NewCopilotService(f.retrieval, f.generator, resumes, jobs, f.analyses, CopilotConfig{InitialTopK: 8, MaxRetries: 2})
	return f
}

func intPtr(v int) *int { return &v }

func TestCopilotAnalyzeUsesConfiguredDefaults(t *testing.T) {
	f := newCopilotFixture()
	got, err := f.svc.Analyze(context.Background(), "u1", AnalyzeRequest{Query: "  missing skills  "})
	require.NoError(t, err)
	assert.Equal(t, []string{"missing skills"}, got.MissingKeywords)
	require.Len(t, f.retrieval.calls, 1)
	assert.Equal(t, retrievalCall{"u1", "missing skills", 8, 2}, f.retrieval.calls[0])

	_, err = f.svc.Analyze(context.Background(), "u1", AnalyzeRequest{Query: "kubernetes gaps", TopK: intPtr(15)})
	require.NoError(t, err)
	assert.Equal(t, 15, f.retrieval.calls[1].topK)
}

func TestCopilotRejectsBadRequestsBeforeRetrieval(t *testing.T) {
	f := newCopilotFixture()
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "u1", AnalyzeRequest{Query: "ab"})
	var verr *appErr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	_, err = f.svc.Analyze(ctx, "u1", AnalyzeRequest{Query: "valid query", TopK: intPtr(0)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "top_k", verr.Field)

	_, err = f.svc.Ask(ctx, "u1", AskRequest{Question: "why?", TopK: intPtr(21)})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.Ask(ctx, "u1", AskRequest{Question: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.Tailor(ctx, "u1", TailorRequest{ResumeID: "r1"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	_, err = f.svc.Match(ctx, "u1", MatchRequest{ResumeID: "r1"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "job_id", verr.Field)

	assert.Empty(t, f.retrieval.calls)
	assert.Empty(t, f.generator.calls)
}

func TestCopilotAsk(t *testing.T) {
	f := newCopilotFixture()
	got, err := f.svc.Ask(context.Background(), "u1", AskRequest{Question: "what did I build?"})
	require.NoError(t, err)
	assert.Equal(t, "answer to what did I build?", got.Answer)
	assert.Equal(t, []string{"chat"}, f.generator.calls)
}

func TestCopilotTailorModes(t *testing.T) {
	f := newCopilotFixture()
	ctx := context.Background()

	got, err := f.svc.Tailor(ctx, "u1", TailorRequest{ResumeID: "r1", JobID: "j1", Query: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "letter", got.CoverLetter)
	assert.Equal(t, [2]string{"resume text", "job text"}, f.generator.lastText)
	assert.Empty(t, f.retrieval.calls)

	_, err = f.svc.Tailor(ctx, "u1", TailorRequest{ResumeID: "r2", JobID: "j1"})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = f.svc.Tailor(ctx, "u1", TailorRequest{ResumeID: "r1", JobID: "missing"})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = f.svc.Tailor(ctx, "u1", TailorRequest{Query: "tailor for backend roles"})
	require.NoError(t, err)
	assert.Len(t, f.retrieval.calls, 1)
	assert.Equal(t, []string{"tailor_direct", "tailor"}, f.generator.calls)
}

func TestCopilotMatchPersistsRecord(t *testing.T) {
	f := newCopilotFixture()
	got, err := f.svc.Match(context.Background(), "u1", MatchRequest{ResumeID: "r1", JobID: "j1"})
	require.NoError(t, err)
	assert.Equal(t, 64, got.MatchScore)
	assert.NotEmpty(t, got.AnalysisID)

	require.Len(t, f.analyses.records, 1)
	rec := f.analyses.records[0]
	assert.Equal(t, got.AnalysisID, rec.ID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "r1", rec.ResumeID)
	assert.Equal(t, "j1", rec.JobID)
	assert.Equal(t, 64, rec.MatchScore)
	assert.Equal(t, []string{"go"}, rec.MatchedKeywords)
	assert.Equal(t, []string{"kafka"}, rec.MissingKeywords)
	assert.Equal(t, []string{"mention kafka"}, rec.ImprovementSuggestions)

	list, err := f.svc.ListAnalyses(context.Background(), "u1", 0, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCopilotMatchForeignResume(t *testing.T) {
	f := newCopilotFixture()
	_, err := f.svc.Match(context.Background(), "u1", MatchRequest{ResumeID: "r2", JobID: "j1"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
	assert.Empty(t, f.generator.calls)
	assert.Empty(t, f.analyses.records)
}

func TestCopilotMatchSaveFailureStillReturnsResult(t *testing.T) {
	f := newCopilotFixture()
	f.analyses.err = errors.New("db down")
	got, err := f.svc.Match(context.Background(), "u1", MatchRequest{ResumeID: "r1", JobID: "j1"})
	require.NoError(t, err)
	assert.Equal(t, 64, got.MatchScore)
	assert.Empty(t, got.AnalysisID)
}
