package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/filestore"
	"github.com/xxxsen/careercopilot/internal/ingest"
	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
	"github.com/xxxsen/careercopilot/internal/pkg/timeutil"
)

type ResumeStore interface {
	Create(ctx context.Context, resume *model.Resume) error
	GetByID(ctx context.Context, userID, resumeID string) (*model.Resume, error)
	ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.Resume, error)
	GetByFileKey(ctx context.Context, userID, key string) (*model.Resume, error)
	Delete(ctx context.Context, userID, resumeID string) error
}

type Indexer interface {
	IndexResume(ctx context.Context, resume *model.Resume) error
	IndexJob(ctx context.Context, job *model.Job) error
	RemoveResume(ctx context.Context, userID, resumeID string) error
	RemoveJob(ctx context.Context, userID, jobID string) error
}

type CreateResumeRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Text  string `json:"text" validate:"required"`
}

type ResumeService struct {
	resumes ResumeStore
	indexer Indexer
	files   filestore.Store
}

func NewResumeService(resumes ResumeStore, indexer Indexer, files filestore.Store) *ResumeService {
	return &ResumeService{resumes: resumes, indexer: indexer, files: files}
}

func (s *ResumeService) Create(ctx context.Context, userID string, req CreateResumeRequest) (*model.Resume, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Text = strings.TrimSpace(req.Text)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.create(ctx, userID, req.Title, req.Text, "")
}

// Upload stores the original file, extracts its text and creates a resume
// from it. An empty title falls back to the file name.
func (s *ResumeService) Upload(ctx context.Context, userID, title, filename string, data []byte) (*model.Resume, error) {
	text, err := ingest.ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if err := validateRequest(CreateResumeRequest{Title: title, Text: text}); err != nil {
		return nil, err
	}
	key := uuid.NewString() + ext
	contentType := uploadContentType(ext)
	if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, err
	}
	resume, err := s.create(ctx, userID, title, text, key)
	if err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			logutil.GetLogger(ctx).Warn("remove orphan upload failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return resume, nil
}

var uploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func uploadContentType(ext string) string {
	if ct, ok := uploadTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/plain; charset=utf-8"
}

func (s *ResumeService) create(ctx context.Context, userID, title, text, fileKey string) (*model.Resume, error) {
	now := timeutil.NowUnix()
	resume := &model.Resume{
		ID:      uuid.NewString(),
		UserID:  userID,
		Title:   title,
		Content: text,
		FileKey: fileKey,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.resumes.Create(ctx, resume); err != nil {
		return nil, err
	}
	if err := s.indexer.IndexResume(ctx, resume); err != nil {
		logutil.GetLogger(ctx).Error("index resume failed, left for sync",
			zap.String("user_id", userID), zap.String("resume_id", resume.ID), zap.Error(err))
	}
	return resume, nil
}

func (s *ResumeService) Get(ctx context.Context, userID, resumeID string) (*model.Resume, error) {
	return s.resumes.GetByID(ctx, userID, resumeID)
}

func (s *ResumeService) List(ctx context.Context, userID string, offset, limit uint) ([]model.Resume, error) {
	return s.resumes.ListByUser(ctx, userID, offset, limit)
}

func (s *ResumeService) Delete(ctx context.Context, userID, resumeID string) error {
	resume, err := s.resumes.GetByID(ctx, userID, resumeID)
	if err != nil {
		return err
	}
	// Chunks go first: once the row is gone the sync job can no longer find them.
	if err := s.indexer.RemoveResume(ctx, userID, resumeID); err != nil {
		return fmt.Errorf("remove resume chunks: %w", err)
	}
	if err := s.resumes.Delete(ctx, userID, resumeID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("resume_id", resumeID))
	if resume.FileKey != "" {
		if err := s.files.Delete(ctx, resume.FileKey); err != nil {
			logger.Warn("remove resume file failed", zap.String("key", resume.FileKey), zap.Error(err))
		}
	}
	return nil
}

// OpenFile streams the original upload of one of the user's resumes.
func (s *ResumeService) OpenFile(ctx context.Context, userID, key string) (io.ReadCloser, error) {
	if !filestore.ValidKey(key) {
		return nil, appErr.ErrNotFound
	}
	if _, err := s.resumes.GetByFileKey(ctx, userID, key); err != nil {
		return nil, err
	}
	return s.files.Open(ctx, key)
}
