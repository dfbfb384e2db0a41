package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/dbutil"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

var jobFields = []string{"id", "user_id", "company", "role", "description", "indexed_at", "ctime", "mtime"}

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, job *model.Job) error {
	data := map[string]interface{}{
		"id":          job.ID,
		"user_id":     job.UserID,
		"company":     job.Company,
		"role":        job.Role,
		"description": job.Description,
		"indexed_at":  job.IndexedAt,
		"ctime":       job.Ctime,
		"mtime":       job.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("jobs", []map[string]interface{}{data})
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

func (r *JobRepo) GetByID(ctx context.Context, userID, jobID string) (*model.Job, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": jobID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *JobRepo) ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.Job, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "ctime desc"}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.list(ctx, where)
}

func (r *JobRepo) ListStale(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, company, role, description, indexed_at, ctime, mtime FROM jobs WHERE indexed_at < mtime ORDER BY mtime ASC LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *JobRepo) MarkIndexed(ctx context.Context, userID, jobID string, indexedAt int64) error {
	where := map[string]interface{}{"id": jobID, "user_id": userID}
	return execAffected(ctx, r.db, "jobs", where, map[string]interface{}{"indexed_at": indexedAt})
}

func (r *JobRepo) Delete(ctx context.Context, userID, jobID string) error {
	sqlStr, args, err := builder.BuildDelete("jobs", map[string]interface{}{"id": jobID, "user_id": userID})
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

func (r *JobRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Job, error) {
	sqlStr, args, err := builder.BuildSelect("jobs", where, jobFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]model.Job, error) {
	defer func() { _ = rows.Close() }()
	items := make([]model.Job, 0)
	for rows.Next() {
		var item model.Job
		if err := rows.Scan(&item.ID, &item.UserID, &item.Company, &item.Role, &item.Description, &item.IndexedAt, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
