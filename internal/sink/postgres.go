package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// PostgresTable is the table reports are stored in.
const PostgresTable = "snapdiff_reports"

const postgresSchema = `CREATE TABLE IF NOT EXISTS snapdiff_reports (
	id UUID PRIMARY KEY,
	base_source TEXT NOT NULL,
	key_column TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	body JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS snapdiff_reports_generated_at_idx ON snapdiff_reports (generated_at DESC)`

// DBTX is the subset of pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps reports as JSONB documents.
type PostgresStore struct {
	db    DBTX
	title string
}

// NewPostgresStore creates a store over db. Call EnsureSchema before the
// first Write.
func NewPostgresStore(db DBTX, title string) *PostgresStore {
	return &PostgresStore{db: db, title: title}
}

// EnsureSchema creates the report table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create report table: %w", err)
	}
	return nil
}

// Write stores report and returns "postgres:snapdiff_reports/<id>".
func (s *PostgresStore) Write(ctx context.Context, report core.Report) (string, error) {
	loc := "postgres:" + PostgresTable + "/" + report.ID

	id, err := uuid.Parse(report.ID)
	if err != nil {
		return "", &core.SinkError{Location: loc, Err: fmt.Errorf("report id is not a UUID: %w", err)}
	}

	body, err := json.Marshal(NewDocument(report, s.title))
	if err != nil {
		return "", &core.SinkError{Location: loc, Err: err}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO snapdiff_reports (id, base_source, key_column, generated_at, body) VALUES ($1, $2, $3, $4, $5)`,
		pgtype.UUID{Bytes: id, Valid: true},
		report.BaseSource,
		report.KeyColumn,
		pgtype.Timestamptz{Time: report.GeneratedAt, Valid: true},
		body,
	)
	if err != nil {
		return "", &core.SinkError{Location: loc, Err: err}
	}
	return loc, nil
}

// Get loads a stored report.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Document, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrReportNotFound
	}

	var body []byte
	err = s.db.QueryRow(ctx,
		`SELECT body FROM snapdiff_reports WHERE id = $1`,
		pgtype.UUID{Bytes: uid, Valid: true},
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &doc, nil
}

// List returns the most recent reports first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]ReportInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, base_source, key_column, generated_at FROM snapdiff_reports ORDER BY generated_at DESC, id LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReportInfo, error) {
		var (
			id  pgtype.UUID
			ts  pgtype.Timestamptz
			inf ReportInfo
		)
		if err := row.Scan(&id, &inf.BaseSource, &inf.KeyColumn, &ts); err != nil {
			return ReportInfo{}, err
		}
		inf.ID = uuid.UUID(id.Bytes).String()
		inf.GeneratedAt = ts.Time
		return inf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}
