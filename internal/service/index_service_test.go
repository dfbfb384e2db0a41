package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

type fakeChunkWriter struct {
	mu        sync.Mutex
	ops       []string
	ids       []string
	documents []string
	metas     []map[string]interface{}
	upsertErr error
}

func (f *fakeChunkWriter) Upsert(_ context.Context, ids []string, documents []string, metadatas []map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.ids = append(f.ids, ids...)
	f.documents = append(f.documents, documents...)
	f.metas = append(f.metas, metadatas...)
	return nil
}

func (f *fakeChunkWriter) DeleteByPrefix(_ context.Context, ownerID string, idPrefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "delete:"+ownerID+":"+idPrefix)
	return nil
}

func (f *fakeChunkWriter) DeleteByPrefixExcept(_ context.Context, ownerID string, idPrefix string, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "trim:"+ownerID+":"+idPrefix+":"+strings.Join(keep, ","))
	return nil
}

type fakeIndexStore struct {
	mu            sync.Mutex
	staleResumes  []model.Resume
	staleJobs     []model.Job
	markedResumes []string
	markedJobs    []string
}

func (f *fakeIndexStore) resumes() *resumeIndexStore { return &resumeIndexStore{f} }
func (f *fakeIndexStore) jobs() *jobIndexStore       { return &jobIndexStore{f} }

type resumeIndexStore struct{ f *fakeIndexStore }

func (s *resumeIndexStore) ListStale(_ context.Context, limit int) ([]model.Resume, error) {
	items := s.f.staleResumes
	if len(items) > limit {
		items = items[:limit]
	}
	return append([]model.Resume(nil), items...), nil
}

func (s *resumeIndexStore) MarkIndexed(_ context.Context, _, resumeID string, _ int64) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.markedResumes = append(s.f.markedResumes, resumeID)
	return nil
}

type jobIndexStore struct{ f *fakeIndexStore }

func (s *jobIndexStore) ListStale(_ context.Context, limit int) ([]model.Job, error) {
	items := s.f.staleJobs
	if len(items) > limit {
		items = items[:limit]
	}
	return append([]model.Job(nil), items...), nil
}

func (s *jobIndexStore) MarkIndexed(_ context.Context, _, jobID string, _ int64) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.markedJobs = append(s.f.markedJobs, jobID)
	return nil
}

func TestIndexResumeWritesOwnedChunks(t *testing.T) {
	writer := &fakeChunkWriter{}
	store := &fakeIndexStore{}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 2)

	resume := &model.Resume{ID: "r1", UserID: "u1", Content: strings.Repeat("a", 1400)}
	require.NoError(t, svc.IndexResume(context.Background(), resume))

	assert.Equal(t, []string{"upsert", "trim:u1:resume-r1-:resume-r1-0,resume-r1-1"}, writer.ops)
	assert.Equal(t, []string{"resume-r1-0", "resume-r1-1"}, writer.ids)
	assert.Len(t, writer.documents[0], 800)
	assert.Equal(t, map[string]interface{}{
		model.MetaOwnerID: "u1",
		model.MetaSource:  model.SourceResume,
		"resume_id":       "r1",
		model.MetaIndex:   1,
	}, writer.metas[1])
	assert.Equal(t, []string{"r1"}, store.markedResumes)
	assert.NotZero(t, resume.IndexedAt)
}

func TestIndexJobIncludesHeader(t *testing.T) {
	writer := &fakeChunkWriter{}
	store := &fakeIndexStore{}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 1)

	job := &model.Job{ID: "j1", UserID: "u1", Company: "Acme", Role: "SRE", Description: "Run kubernetes."}
	require.NoError(t, svc.IndexJob(context.Background(), job))
	assert.Equal(t, []string{"job-j1-0"}, writer.ids)
	assert.Equal(t, "SRE at Acme\n\nRun kubernetes.", writer.documents[0])
	assert.Equal(t, model.SourceJob, writer.metas[0][model.MetaSource])
	assert.Equal(t, "j1", writer.metas[0]["job_id"])
}

func TestIndexFailureLeavesRowStale(t *testing.T) {
	writer := &fakeChunkWriter{upsertErr: appErr.ErrUpstreamUnavailable}
	store := &fakeIndexStore{}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 1)

	err := svc.IndexResume(context.Background(), &model.Resume{ID: "r1", UserID: "u1", Content: "go"})
	require.ErrorIs(t, err, appErr.ErrUpstreamUnavailable)
	assert.Empty(t, store.markedResumes)
	// the old chunks are never touched when the upsert fails
	assert.Equal(t, []string{"upsert"}, writer.ops)
}

func TestIndexEmptyTextClearsChunks(t *testing.T) {
	writer := &fakeChunkWriter{}
	store := &fakeIndexStore{}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 1)

	require.NoError(t, svc.IndexResume(context.Background(), &model.Resume{ID: "r1", UserID: "u1", Content: ""}))
	assert.Equal(t, []string{"trim:u1:resume-r1-:"}, writer.ops)
	assert.Equal(t, []string{"r1"}, store.markedResumes)
}

func TestSyncPending(t *testing.T) {
	writer := &fakeChunkWriter{}
	store := &fakeIndexStore{
		staleResumes: []model.Resume{
			{ID: "r1", UserID: "u1", Content: "one"},
			{ID: "r2", UserID: "u1", Content: "two"},
			{ID: "r3", UserID: "u2", Content: "three"},
		},
		staleJobs: []model.Job{{ID: "j1", UserID: "u1", Company: "A", Role: "B", Description: "C"}},
	}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 3)

	stats, err := svc.SyncPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Resumes: 2, Jobs: 1}, stats)
	assert.Equal(t, 3, stats.Indexed())
	assert.ElementsMatch(t, []string{"r1", "r2"}, store.markedResumes)
	assert.Equal(t, []string{"j1"}, store.markedJobs)
}

func TestSyncPendingCountsFailures(t *testing.T) {
	writer := &fakeChunkWriter{upsertErr: errors.New("index offline")}
	store := &fakeIndexStore{staleResumes: []model.Resume{{ID: "r1", UserID: "u1", Content: "one"}}}
	svc := NewIndexService(writer, store.resumes(), store.jobs(), 1)

	stats, err := svc.SyncPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Failed: 1}, stats)
}
