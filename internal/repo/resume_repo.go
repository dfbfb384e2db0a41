package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/dbutil"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

var resumeFields = []string{"id", "user_id", "title", "content", "file_key", "indexed_at", "ctime", "mtime"}

type ResumeRepo struct {
	db *sql.DB
}

func NewResumeRepo(db *sql.DB) *ResumeRepo {
	return &ResumeRepo{db: db}
}

func (r *ResumeRepo) Create(ctx context.Context, resume *model.Resume) error {
	data := map[string]interface{}{
		"id":         resume.ID,
		"user_id":    resume.UserID,
		"title":      resume.Title,
		"content":    resume.Content,
		"file_key":   resume.FileKey,
		"indexed_at": resume.IndexedAt,
		"ctime":      resume.Ctime,
		"mtime":      resume.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("resumes", []map[string]interface{}{data})
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

func (r *ResumeRepo) GetByID(ctx context.Context, userID, resumeID string) (*model.Resume, error) {
	where := map[string]interface{}{"id": resumeID, "user_id": userID}
	items, err := r.list(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *ResumeRepo) GetByFileKey(ctx context.Context, userID, key string) (*model.Resume, error) {
	items, err := r.list(ctx, map[string]interface{}{"file_key": key, "user_id": userID, "_limit": []uint{0, 1}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *ResumeRepo) ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.Resume, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "ctime desc"}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.list(ctx, where)
}

// ListStale returns resumes edited after their last successful index,
// oldest first.
func (r *ResumeRepo) ListStale(ctx context.Context, limit int) ([]model.Resume, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, content, file_key, indexed_at, ctime, mtime FROM resumes WHERE indexed_at < mtime ORDER BY mtime ASC LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	return scanResumes(rows)
}

func (r *ResumeRepo) MarkIndexed(ctx context.Context, userID, resumeID string, indexedAt int64) error {
	where := map[string]interface{}{"id": resumeID, "user_id": userID}
	update := map[string]interface{}{"indexed_at": indexedAt}
	return execAffected(ctx, r.db, "resumes", where, update)
}

func (r *ResumeRepo) Delete(ctx context.Context, userID, resumeID string) error {
	where := map[string]interface{}{"id": resumeID, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("resumes", where)
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

func (r *ResumeRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Resume, error) {
	sqlStr, args, err := builder.BuildSelect("resumes", where, resumeFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return scanResumes(rows)
}

func scanResumes(rows *sql.Rows) ([]model.Resume, error) {
	defer func() { _ = rows.Close() }()
	items := make([]model.Resume, 0)
	for rows.Next() {
		var item model.Resume
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Content, &item.FileKey, &item.IndexedAt, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
