package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/careercopilot/internal/ingest"
	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/timeutil"
)

// ChunkWriter is the write side of the vector index.
type ChunkWriter interface {
	Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]interface{}) error
	DeleteByPrefix(ctx context.Context, ownerID string, idPrefix string) error
	DeleteByPrefixExcept(ctx context.Context, ownerID string, idPrefix string, keep []string) error
}

type ResumeIndexStore interface {
	ListStale(ctx context.Context, limit int) ([]model.Resume, error)
	MarkIndexed(ctx context.Context, userID, resumeID string, indexedAt int64) error
}

type JobIndexStore interface {
	ListStale(ctx context.Context, limit int) ([]model.Job, error)
	MarkIndexed(ctx context.Context, userID, jobID string, indexedAt int64) error
}

type SyncStats struct {
	Resumes int
	Jobs    int
	Failed  int
}

func (s SyncStats) Indexed() int {
	return s.Resumes + s.Jobs
}

type IndexService struct {
	index   ChunkWriter
	resumes ResumeIndexStore
	jobs    JobIndexStore
	workers int
}

func NewIndexService(index ChunkWriter, resumes ResumeIndexStore, jobs JobIndexStore, workers int) *IndexService {
	if workers <= 0 {
		workers = 1
	}
	return &IndexService{index: index, resumes: resumes, jobs: jobs, workers: workers}
}

func resumeChunkPrefix(resumeID string) string {
	return "resume-" + resumeID + "-"
}

func jobChunkPrefix(jobID string) string {
	return "job-" + jobID + "-"
}

// jobText is the text indexed for a job posting.
func jobText(job *model.Job) string {
	header := strings.TrimSpace(strings.TrimSpace(job.Role) + " at " + strings.TrimSpace(job.Company))
	return header + "\n\n" + job.Description
}

func (s *IndexService) IndexResume(ctx context.Context, resume *model.Resume) error {
	err := s.replaceChunks(ctx, resume.UserID, resumeChunkPrefix(resume.ID), resume.Content, map[string]interface{}{
		model.MetaSource: model.SourceResume,
		"resume_id":      resume.ID,
	})
	if err != nil {
		return err
	}
	now := timeutil.NowUnix()
	if err := s.resumes.MarkIndexed(ctx, resume.UserID, resume.ID, now); err != nil {
		return err
	}
	resume.IndexedAt = now
	return nil
}

func (s *IndexService) IndexJob(ctx context.Context, job *model.Job) error {
	err := s.replaceChunks(ctx, job.UserID, jobChunkPrefix(job.ID), jobText(job), map[string]interface{}{
		model.MetaSource: model.SourceJob,
		"job_id":         job.ID,
	})
	if err != nil {
		return err
	}
	now := timeutil.NowUnix()
	if err := s.jobs.MarkIndexed(ctx, job.UserID, job.ID, now); err != nil {
		return err
	}
	job.IndexedAt = now
	return nil
}

func (s *IndexService) RemoveResume(ctx context.Context, userID, resumeID string) error {
	return s.index.DeleteByPrefix(ctx, userID, resumeChunkPrefix(resumeID))
}

func (s *IndexService) RemoveJob(ctx context.Context, userID, jobID string) error {
	return s.index.DeleteByPrefix(ctx, userID, jobChunkPrefix(jobID))
}

// replaceChunks writes the fresh chunks and only then drops the ones past
// the new chunk count, so a failed upsert leaves the previous chunks
// searchable.
func (s *IndexService) replaceChunks(ctx context.Context, ownerID, prefix, text string, extra map[string]interface{}) error {
	chunks := ingest.ChunkText(text, ingest.DefaultChunkSize, ingest.DefaultChunkOverlap)
	ids := make([]string, 0, len(chunks))
	metas := make([]map[string]interface{}, 0, len(chunks))
	for i := range chunks {
		ids = append(ids, fmt.Sprintf("%s%d", prefix, i))
		meta := map[string]interface{}{
			model.MetaOwnerID: ownerID,
			model.MetaIndex:   i,
		}
		for k, v := range extra {
			meta[k] = v
		}
		metas = append(metas, meta)
	}
	if len(chunks) > 0 {
		if err := s.index.Upsert(ctx, ids, chunks, metas); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}
	if err := s.index.DeleteByPrefixExcept(ctx, ownerID, prefix, ids); err != nil {
		return fmt.Errorf("trim stale chunks: %w", err)
	}
	return nil
}

// SyncPending re-indexes up to batch resumes and batch jobs whose text
// changed after their last successful index. Per item failures are logged
// and counted; only listing errors are returned.
func (s *IndexService) SyncPending(ctx context.Context, batch int) (SyncStats, error) {
	logger := logutil.GetLogger(ctx)
	resumes, err := s.resumes.ListStale(ctx, batch)
	if err != nil {
		return SyncStats{}, fmt.Errorf("list stale resumes: %w", err)
	}
	jobs, err := s.jobs.ListStale(ctx, batch)
	if err != nil {
		return SyncStats{}, fmt.Errorf("list stale jobs: %w", err)
	}
	var indexedResumes, indexedJobs, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range resumes {
		resume := &resumes[i]
		g.Go(func() error {
			if err := s.IndexResume(gctx, resume); err != nil {
				failed.Add(1)
				logger.Error("index resume failed", zap.String("resume_id", resume.ID), zap.Error(err))
				return nil
			}
			indexedResumes.Add(1)
			return nil
		})
	}
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			if err := s.IndexJob(gctx, job); err != nil {
				failed.Add(1)
				logger.Error("index job failed", zap.String("job_id", job.ID), zap.Error(err))
				return nil
			}
			indexedJobs.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	stats := SyncStats{
		Resumes: int(indexedResumes.Load()),
		Jobs:    int(indexedJobs.Load()),
		Failed:  int(failed.Load()),
	}
	if stats.Indexed() > 0 || stats.Failed > 0 {
		logger.Info("index sync finished",
			zap.Int("resumes", stats.Resumes), zap.Int("jobs", stats.Jobs), zap.Int("failed", stats.Failed))
	}
	return stats, nil
}
