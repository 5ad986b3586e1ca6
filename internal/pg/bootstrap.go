package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// bootstrapDDL creates the two catalog relations and their indexes.
// Statements are idempotent; order matters for the foreign key.
var bootstrapDDL = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		api_key TEXT UNIQUE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS project_tables (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		display_name TEXT,
		description TEXT,
		fields JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (project_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_api_key ON projects (api_key)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_active ON projects (is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_project_tables_project_id ON project_tables (project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_project_tables_name ON project_tables (name)`,
}

// Bootstrap applies the catalog DDL. duplicate_object (42710) is ignored so
// repeated startups against an initialized database stay quiet.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, stmt := range bootstrapDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Printf("bootstrap DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
				continue
			}
			return fmt.Errorf("bootstrap DDL failed: %w", err)
		}
	}
	return nil
}
