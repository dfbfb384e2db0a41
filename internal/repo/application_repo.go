package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/dbutil"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

var applicationFields = []string{
	"id", "user_id", "company", "role", "status", "applied_date",
	"match_score", "job_link", "notes", "ctime", "mtime",
}

type ApplicationRepo struct {
	db *sql.DB
}

func NewApplicationRepo(db *sql.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

func (r *ApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	data := map[string]interface{}{
		"id":           app.ID,
		"user_id":      app.UserID,
		"company":      app.Company,
		"role":         app.Role,
		"status":       app.Status,
		"applied_date": app.AppliedDate,
		"match_score":  app.MatchScore,
		"job_link":     app.JobLink,
		"notes":        app.Notes,
		"ctime":        app.Ctime,
		"mtime":        app.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("applications", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ApplicationRepo) GetByID(ctx context.Context, userID, appID string) (*model.Application, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": appID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

// ListByUser returns the newest applications first. An empty status lists
// every status.
func (r *ApplicationRepo) ListByUser(ctx context.Context, userID, status string, offset, limit uint) ([]model.Application, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "applied_date desc, ctime desc"}
	if status != "" {
		where["status"] = status
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.list(ctx, where)
}

func (r *ApplicationRepo) Update(ctx context.Context, app *model.Application) error {
	where := map[string]interface{}{"id": app.ID, "user_id": app.UserID}
	update := map[string]interface{}{
		"company":      app.Company,
		"role":         app.Role,
		"status":       app.Status,
		"applied_date": app.AppliedDate,
		"match_score":  app.MatchScore,
		"job_link":     app.JobLink,
		"notes":        app.Notes,
		"mtime":        app.Mtime,
	}
	return execAffected(ctx, r.db, "applications", where, update)
}

func (r *ApplicationRepo) Delete(ctx context.Context, userID, appID string) error {
	sqlStr, args, err := builder.BuildDelete("applications", map[string]interface{}{"id": appID, "user_id": userID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *ApplicationRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Application, error) {
	sqlStr, args, err := builder.BuildSelect("applications", where, applicationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Application, 0)
	for rows.Next() {
		var item model.Application
		if err := rows.Scan(&item.ID, &item.UserID, &item.Company, &item.Role, &item.Status, &item.AppliedDate,
			&item.MatchScore, &item.JobLink, &item.Notes, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
