package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/skillprobe/internal/interview"
)

var (
	_ interview.ReportSink = (*Store)(nil)
	_ interview.ReportSink = Discard
)

// Discard is a sink that drops every report. It is used when no archive is
// configured.
var Discard interview.ReportSink = discard{}

type discard struct{}

func (discard) Store(context.Context, *interview.Report) error { return nil }

// Store is the PostgreSQL report archive. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. It backs the readiness
// probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("archive: ping: %w", err)
	}
	return nil
}

// Store implements [interview.ReportSink]. Storing the same session twice
// replaces the earlier row.
func (s *Store) Store(ctx context.Context, r *interview.Report) error {
	if r == nil {
		return errors.New("archive: store: nil report")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("archive: store: encode report: %w", err)
	}

	const q = `
		INSERT INTO interview_reports
		    (session_id, completed_reason, total_skills, confirmed_skills, coverage,
		     duration_seconds, started_at, completed_at, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		ON CONFLICT (session_id) DO UPDATE SET
		    completed_reason = EXCLUDED.completed_reason,
		    total_skills     = EXCLUDED.total_skills,
		    confirmed_skills = EXCLUDED.confirmed_skills,
		    coverage         = EXCLUDED.coverage,
		    duration_seconds = EXCLUDED.duration_seconds,
		    started_at       = EXCLUDED.started_at,
		    completed_at     = EXCLUDED.completed_at,
		    report           = EXCLUDED.report`

	_, err = s.pool.Exec(ctx, q,
		r.SessionID,
		string(r.Reason),
		r.Summary.TotalSkills,
		len(r.Summary.Confirmed),
		r.Summary.Coverage,
		r.DurationSeconds,
		r.StartedAt,
		r.CompletedAt,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("archive: store %s: %w", r.SessionID, err)
	}
	return nil
}

// Get returns the archived report of sessionID. A missing row yields an
// error wrapping [interview.ErrNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*interview.Report, error) {
	const q = `SELECT report FROM interview_reports WHERE session_id = $1`

	var body []byte
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("archive: %w: %s", interview.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get %s: %w", sessionID, err)
	}
	return decodeReport(body)
}

// Recent returns up to limit reports, most recently completed first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*interview.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT report
		FROM   interview_reports
		ORDER  BY completed_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	reports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*interview.Report, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return nil, err
		}
		return decodeReport(body)
	})
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	if reports == nil {
		reports = []*interview.Report{}
	}
	return reports, nil
}

func decodeReport(body []byte) (*interview.Report, error) {
	var r interview.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("archive: decode report: %w", err)
	}
	return &r, nil
}
