package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
	"github.com/xxxsen/careercopilot/internal/pkg/timeutil"
)

type ApplicationStore interface {
	Create(ctx context.Context, app *model.Application) error
	GetByID(ctx context.Context, userID, appID string) (*model.Application, error)
	ListByUser(ctx context.Context, userID, status string, offset, limit uint) ([]model.Application, error)
	Update(ctx context.Context, app *model.Application) error
	Delete(ctx context.Context, userID, appID string) error
}

type ApplicationRequest struct {
	Company     string `json:"company" validate:"required,max=255"`
	Role        string `json:"role" validate:"required,max=255"`
	Status      string `json:"status" validate:"omitempty,oneof=APPLIED INTERVIEW REJECTED OFFER"`
	AppliedDate string `json:"applied_date" validate:"required,datetime=2006-01-02"`
	MatchScore  int    `json:"match_score" validate:"min=0,max=100"`
	JobLink     string `json:"job_link" validate:"omitempty,url,max=500"`
	Notes       string `json:"notes"`
}

// UpdateApplicationRequest changes only the fields that are present.
type UpdateApplicationRequest struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	Status      *string `json:"status"`
	AppliedDate *string `json:"applied_date"`
	MatchScore  *int    `json:"match_score"`
	JobLink     *string `json:"job_link"`
	Notes       *string `json:"notes"`
}

type ApplicationService struct {
	apps ApplicationStore
}

func NewApplicationService(apps ApplicationStore) *ApplicationService {
	return &ApplicationService{apps: apps}
}

func (req *ApplicationRequest) normalize() {
	req.Company = strings.TrimSpace(req.Company)
	req.Role = strings.TrimSpace(req.Role)
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	req.AppliedDate = strings.TrimSpace(req.AppliedDate)
	req.JobLink = strings.TrimSpace(req.JobLink)
	req.Notes = strings.TrimSpace(req.Notes)
}

func (s *ApplicationService) Create(ctx context.Context, userID string, req ApplicationRequest) (*model.Application, error) {
	req.normalize()
	if req.Status == "" {
		req.Status = model.ApplicationApplied
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	app := &model.Application{
		ID:          uuid.NewString(),
		UserID:      userID,
		Company:     req.Company,
		Role:        req.Role,
		Status:      req.Status,
		AppliedDate: req.AppliedDate,
		MatchScore:  req.MatchScore,
		JobLink:     req.JobLink,
		Notes:       req.Notes,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, userID, appID string) (*model.Application, error) {
	return s.apps.GetByID(ctx, userID, appID)
}

func (s *ApplicationService) List(ctx context.Context, userID, status string, offset, limit uint) ([]model.Application, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "", model.ApplicationApplied, model.ApplicationInterview, model.ApplicationRejected, model.ApplicationOffer:
	default:
		return nil, appErr.NewValidationError("status", "must be one of APPLIED INTERVIEW REJECTED OFFER")
	}
	return s.apps.ListByUser(ctx, userID, status, offset, limit)
}

func (s *ApplicationService) Update(ctx context.Context, userID, appID string, req UpdateApplicationRequest) (*model.Application, error) {
	app, err := s.apps.GetByID(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	merged := ApplicationRequest{
		Company:     pick(req.Company, app.Company),
		Role:        pick(req.Role, app.Role),
		Status:      pick(req.Status, app.Status),
		AppliedDate: pick(req.AppliedDate, app.AppliedDate),
		MatchScore:  app.MatchScore,
		JobLink:     pick(req.JobLink, app.JobLink),
		Notes:       pick(req.Notes, app.Notes),
	}
	if req.MatchScore != nil {
		merged.MatchScore = *req.MatchScore
	}
	merged.normalize()
	if merged.Status == "" {
		merged.Status = model.ApplicationApplied
	}
	if err := validateRequest(merged); err != nil {
		return nil, err
	}
	updated := *app
	updated.Company = merged.Company
	updated.Role = merged.Role
	updated.Status = merged.Status
	updated.AppliedDate = merged.AppliedDate
	updated.MatchScore = merged.MatchScore
	updated.JobLink = merged.JobLink
	updated.Notes = merged.Notes
	updated.Mtime = timeutil.NowUnix()
	if err := s.apps.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ApplicationService) Delete(ctx context.Context, userID, appID string) error {
	return s.apps.Delete(ctx, userID, appID)
}

func pick(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
