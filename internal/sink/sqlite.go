package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS snapdiff_reports (
	id TEXT PRIMARY KEY,
	base_source TEXT NOT NULL,
	key_column TEXT NOT NULL,
	generated_at INTEGER NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapdiff_reports_generated_at ON snapdiff_reports (generated_at DESC);`

// SQLiteStore keeps reports in a local SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	title string
}

// OpenSQLite opens (creating if needed) the report database at path.
func OpenSQLite(path, title string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create report table: %w", err)
	}
	return &SQLiteStore{db: db, path: cleanPath, title: title}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write stores report and returns "sqlite:<path>#<id>".
func (s *SQLiteStore) Write(ctx context.Context, report core.Report) (string, error) {
	loc := "sqlite:" + s.path + "#" + report.ID
	if err := ctx.Err(); err != nil {
		return "", &core.SinkError{Location: loc, Err: err}
	}

	body, err := json.Marshal(NewDocument(report, s.title))
	if err != nil {
		return "", &core.SinkError{Location: loc, Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapdiff_reports (id, base_source, key_column, generated_at, body) VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.BaseSource, report.KeyColumn, report.GeneratedAt.UTC().UnixMilli(), string(body),
	)
	if err != nil {
		if isDuplicateKey(err) {
			err = fmt.Errorf("report %s already stored", report.ID)
		}
		return "", &core.SinkError{Location: loc, Err: err}
	}
	return loc, nil
}

// Get loads a stored report.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapdiff_reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &doc, nil
}

// List returns the most recent reports first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]ReportInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, base_source, key_column, generated_at FROM snapdiff_reports ORDER BY generated_at DESC, id LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportInfo
	for rows.Next() {
		var info ReportInfo
		var millis int64
		if err := rows.Scan(&info.ID, &info.BaseSource, &info.KeyColumn, &millis); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		info.GeneratedAt = time.UnixMilli(millis).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func isDuplicateKey(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
