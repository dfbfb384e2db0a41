package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/timeutil"
)

type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, userID, jobID string) (*model.Job, error)
	ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.Job, error)
	Delete(ctx context.Context, userID, jobID string) error
}

type CreateJobRequest struct {
	Company     string `json:"company" validate:"required,max=200"`
	Role        string `json:"role" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

type JobService struct {
	jobs    JobStore
	indexer Indexer
}

func NewJobService(jobs JobStore, indexer Indexer) *JobService {
	return &JobService{jobs: jobs, indexer: indexer}
}

func (s *JobService) Create(ctx context.Context, userID string, req CreateJobRequest) (*model.Job, error) {
	req.Company = strings.TrimSpace(req.Company)
	req.Role = strings.TrimSpace(req.Role)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	job := &model.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Company:     req.Company,
		Role:        req.Role,
		Description: req.Description,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.indexer.IndexJob(ctx, job); err != nil {
		logutil.GetLogger(ctx).Error("index job failed, left for sync",
			zap.String("user_id", userID), zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, userID, jobID string) (*model.Job, error) {
	return s.jobs.GetByID(ctx, userID, jobID)
}

func (s *JobService) List(ctx context.Context, userID string, offset, limit uint) ([]model.Job, error) {
	return s.jobs.ListByUser(ctx, userID, offset, limit)
}

func (s *JobService) Delete(ctx context.Context, userID, jobID string) error {
	if _, err := s.jobs.GetByID(ctx, userID, jobID); err != nil {
		return err
	}
	if err := s.indexer.RemoveJob(ctx, userID, jobID); err != nil {
		return fmt.Errorf("remove job chunks: %w", err)
	}
	return s.jobs.Delete(ctx, userID, jobID)
}
