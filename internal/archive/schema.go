// Package archive persists final interview reports.
//
// [Store] writes each report to a PostgreSQL table through a [pgxpool.Pool].
// The full report is kept as JSONB next to a few columns that are useful for
// querying without unpacking it. Archiving is best effort: the interview
// manager logs a failed write and still returns the report to the caller.
//
// Usage:
//
//	store, err := archive.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	mgr, err := interview.NewManager(interview.ManagerConfig{Archive: store, …})
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlReports = `
CREATE TABLE IF NOT EXISTS interview_reports (
    session_id        TEXT              PRIMARY KEY,
    completed_reason  TEXT              NOT NULL DEFAULT '',
    total_skills      INTEGER           NOT NULL DEFAULT 0,
    confirmed_skills  INTEGER           NOT NULL DEFAULT 0,
    coverage          DOUBLE PRECISION  NOT NULL DEFAULT 0,
    duration_seconds  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    started_at        TIMESTAMPTZ       NOT NULL,
    completed_at      TIMESTAMPTZ       NOT NULL,
    report            JSONB             NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interview_reports_completed_at
    ON interview_reports (completed_at);

CREATE INDEX IF NOT EXISTS idx_interview_reports_coverage
    ON interview_reports (coverage);
`

// Migrate creates the report table and its indexes. It is idempotent and
// safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlReports); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}
