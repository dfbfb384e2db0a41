package testutil

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/xxxsen/careercopilot/internal/config"
	"github.com/xxxsen/careercopilot/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_HOST, migrates it and
// truncates every table. The test is skipped when TEST_DB_HOST is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "careercopilot"),
		Password: envOr("TEST_DB_PASSWORD", "careercopilot_pass"),
		DBName:   envOr("TEST_DB_NAME", "careercopilot_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	tables := []string{"applications", "analysis_results", "resumes", "jobs", "users"}
	if _, err := conn.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
