package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careercopilot/internal/pkg/dbutil"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

func execAffected(ctx context.Context, db *sql.DB, table string, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate(table, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
