package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/dbutil"
)

var analysisFields = []string{
	"id", "user_id", "resume_id", "job_id", "match_score",
	"matched_keywords", "missing_keywords", "improvement_suggestions", "ctime",
}

type AnalysisRepo struct {
	db *sql.DB
}

func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) Create(ctx context.Context, record *model.AnalysisRecord) error {
	matched, err := dbutil.EncodeStrings(record.MatchedKeywords)
	if err != nil {
		return err
	}
	missing, err := dbutil.EncodeStrings(record.MissingKeywords)
	if err != nil {
		return err
	}
	suggestions, err := dbutil.EncodeStrings(record.ImprovementSuggestions)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":                      record.ID,
		"user_id":                 record.UserID,
		"resume_id":               record.ResumeID,
		"job_id":                  record.JobID,
		"match_score":             record.MatchScore,
		"matched_keywords":        matched,
		"missing_keywords":        missing,
		"improvement_suggestions": suggestions,
		"ctime":                   record.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("analysis_results", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *AnalysisRepo) ListByUser(ctx context.Context, userID string, offset, limit uint) ([]model.AnalysisRecord, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "ctime desc, id desc"}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("analysis_results", where, analysisFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.AnalysisRecord, 0)
	for rows.Next() {
		var item model.AnalysisRecord
		var matched, missing, suggestions string
		if err := rows.Scan(&item.ID, &item.UserID, &item.ResumeID, &item.JobID, &item.MatchScore,
			&matched, &missing, &suggestions, &item.Ctime); err != nil {
			return nil, err
		}
		if item.MatchedKeywords, err = dbutil.DecodeStrings(matched); err != nil {
			return nil, err
		}
		if item.MissingKeywords, err = dbutil.DecodeStrings(missing); err != nil {
			return nil, err
		}
		if item.ImprovementSuggestions, err = dbutil.DecodeStrings(suggestions); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
