package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careercopilot/internal/model"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

type memApplicationStore struct {
	items      map[string]model.Application
	lastStatus string
}

func (m *memApplicationStore) Create(_ context.Context, app *model.Application) error {
	m.items[app.ID] = *app
	return nil
}

func (m *memApplicationStore) GetByID(_ context.Context, userID, appID string) (*model.Application, error) {
	app, ok := m.items[appID]
	if !ok || app.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &app, nil
}

func (m *memApplicationStore) ListByUser(_ context.Context, userID, status string, _, _ uint) ([]model.Application, error) {
	m.lastStatus = status
	out := []model.Application{}
	for _, app := range m.items {
		if app.UserID == userID && (status == "" || app.Status == status) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memApplicationStore) Update(_ context.Context, app *model.Application) error {
	m.items[app.ID] = *app
	return nil
}

func (m *memApplicationStore) Delete(_ context.Context, userID, appID string) error {
	app, ok := m.items[appID]
	if !ok || app.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.items, appID)
	return nil
}

func strPtr(s string) *string { return &s }

func TestApplicationCreate(t *testing.T) {
	store := &memApplicationStore{items: map[string]model.Application{}}
	svc := NewApplicationService(store)
	ctx := context.Background()

	app, err := svc.Create(ctx, "u1", ApplicationRequest{Company: " Acme ", Role: "SRE", AppliedDate: "2026-09-01", Status: "offer"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", app.Company)
	assert.Equal(t, model.ApplicationOffer, app.Status)
	assert.NotZero(t, app.Ctime)

	app, err = svc.Create(ctx, "u1", ApplicationRequest{Company: "Acme", Role: "SRE", AppliedDate: "2026-09-02"})
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationApplied, app.Status)

	tests := []struct {
		name  string
		req   ApplicationRequest
		field string
	}{
		{name: "missing company", req: ApplicationRequest{Role: "SRE", AppliedDate: "2026-09-01"}, field: "company"},
		{name: "bad date", req: ApplicationRequest{Company: "A", Role: "SRE", AppliedDate: "2026-13-01"}, field: "applied_date"},
		{name: "bad status", req: ApplicationRequest{Company: "A", Role: "SRE", AppliedDate: "2026-09-01", Status: "GHOSTED"}, field: "status"},
		{name: "score too high", req: ApplicationRequest{Company: "A", Role: "SRE", AppliedDate: "2026-09-01", MatchScore: 101}, field: "match_score"},
		{name: "negative score", req: ApplicationRequest{Company: "A", Role: "SRE", AppliedDate: "2026-09-01", MatchScore: -1}, field: "match_score"},
		{name: "bad link", req: ApplicationRequest{Company: "A", Role: "SRE", AppliedDate: "2026-09-01", JobLink: "not a url"}, field: "job_link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.req)
			var verr *appErr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestApplicationUpdateAndList(t *testing.T) {
	store := &memApplicationStore{items: map[string]model.Application{}}
	svc := NewApplicationService(store)
	ctx := context.Background()

	app, err := svc.Create(ctx, "u1", ApplicationRequest{Company: "Acme", Role: "SRE", AppliedDate: "2026-09-01", MatchScore: 60})
	require.NoError(t, err)

	score := 85
	updated, err := svc.Update(ctx, "u1", app.ID, UpdateApplicationRequest{Status: strPtr("Interview"), MatchScore: &score})
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationInterview, updated.Status)
	assert.Equal(t, 85, updated.MatchScore)
	assert.Equal(t, "Acme", updated.Company)
	assert.Equal(t, "2026-09-01", updated.AppliedDate)
	assert.Equal(t, model.ApplicationInterview, store.items[app.ID].Status)

	_, err = svc.Update(ctx, "u1", app.ID, UpdateApplicationRequest{AppliedDate: strPtr("yesterday")})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	assert.Equal(t, "2026-09-01", store.items[app.ID].AppliedDate)

	_, err = svc.Update(ctx, "u2", app.ID, UpdateApplicationRequest{Notes: strPtr("x")})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	list, err := svc.List(ctx, "u1", " interview ", 0, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, model.ApplicationInterview, store.lastStatus)

	_, err = svc.List(ctx, "u1", "pending", 0, 20)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	require.ErrorIs(t, svc.Delete(ctx, "u2", app.ID), appErr.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", app.ID))
	assert.Empty(t, store.items)
}
