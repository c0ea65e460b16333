package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// DBTX is the subset of pgxpool.Pool used by the loader.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultIgnoreColumns are bookkeeping columns left out of table snapshots.
var DefaultIgnoreColumns = []string{"upload_id", "created_at", "updated_at"}

// PostgresLoader reads a table, or one upload batch of a table, as a snapshot.
//
//	postgres:parts
//	postgres:inventory.parts?upload_id=9b2f...&order=id
type PostgresLoader struct {
	db         DBTX
	ignore     []string
	normalizer *Normalizer
}

// NewPostgresLoader creates a loader over db. A nil ignore list selects
// DefaultIgnoreColumns.
func NewPostgresLoader(db DBTX, ignore []string, normalizer *Normalizer) *PostgresLoader {
	if ignore == nil {
		ignore = DefaultIgnoreColumns
	}
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	return &PostgresLoader{db: db, ignore: ignore, normalizer: normalizer}
}

// TableSource is a parsed postgres source identifier.
type TableSource struct {
	Schema   string
	Table    string
	UploadID *uuid.UUID
	OrderBy  string
}

// ParseTableSource parses "postgres:[schema.]table[?upload_id=<uuid>&order=<column>]".
func ParseTableSource(source string) (TableSource, error) {
	rest, ok := strings.CutPrefix(source, "postgres:")
	if !ok {
		return TableSource{}, fmt.Errorf("not a postgres source: %q", source)
	}

	name, rawQuery, _ := strings.Cut(rest, "?")
	ts := TableSource{Schema: "public", Table: name}
	if schema, table, found := strings.Cut(name, "."); found {
		ts.Schema, ts.Table = schema, table
	}
	if ts.Schema == "" || ts.Table == "" {
		return TableSource{}, fmt.Errorf("missing table name in %q", source)
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return TableSource{}, fmt.Errorf("invalid query in %q: %w", source, err)
	}
	if raw := q.Get("upload_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return TableSource{}, fmt.Errorf("invalid upload_id %q: %w", raw, err)
		}
		ts.UploadID = &id
	}
	ts.OrderBy = q.Get("order")

	return ts, nil
}

// Load implements core.SnapshotLoader.
func (l *PostgresLoader) Load(ctx context.Context, source string, ordinal int) (core.Snapshot, error) {
	ts, err := ParseTableSource(source)
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "parse error in source", err)
	}

	columns, err := l.tableColumns(ctx, ts)
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, queryReason(err, "read columns"), err)
	}
	if len(columns) == 0 {
		return core.Snapshot{}, core.NewLoadError(source, fmt.Sprintf("table %s.%s does not exist", ts.Schema, ts.Table), nil)
	}
	if ts.OrderBy != "" && !slices.Contains(columns, ts.OrderBy) && ts.OrderBy != "upload_id" {
		return core.Snapshot{}, core.NewLoadError(source, fmt.Sprintf("order column %q does not exist", ts.OrderBy), nil)
	}

	query, args := buildSelect(ts, columns)
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, queryReason(err, "query"), err)
	}
	defer rows.Close()

	snap := core.Snapshot{Source: source, Ordinal: ordinal, Columns: columns}
	dest := make([]pgtype.Text, len(columns))
	scan := make([]any, len(columns))
	for i := range dest {
		scan[i] = &dest[i]
	}

	line := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return core.Snapshot{}, core.NewLoadError(source, "scan", err)
		}
		line++

		values := make([]core.Value, len(columns))
		for i, t := range dest {
			if t.Valid {
				values[i] = l.normalizer.Value(t.String)
			}
		}
		snap.Records = append(snap.Records, core.NewRecord(line, columns, values))
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "query", err)
	}

	logging.FromContext(ctx).Debug("table snapshot read",
		"source", source,
		"columns", len(columns),
		"records", len(snap.Records),
	)
	return snap, nil
}

// tableColumns lists the table's columns in ordinal order, minus ignored ones.
func (l *PostgresLoader) tableColumns(ctx context.Context, ts TableSource) ([]string, error) {
	rows, err := l.db.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, ts.Schema, ts.Table)
	if err != nil {
		return nil, err
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	columns := names[:0]
	for _, n := range names {
		if !slices.Contains(l.ignore, n) {
			columns = append(columns, n)
		}
	}
	return columns, nil
}

// buildSelect renders the snapshot query. Every column is cast to text so
// values compare the same way CSV cells do.
func buildSelect(ts TableSource, columns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
		b.WriteString("::text")
	}
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{ts.Schema, ts.Table}.Sanitize())

	var args []any
	if ts.UploadID != nil {
		b.WriteString(" WHERE upload_id = $1")
		args = append(args, pgtype.UUID{Bytes: *ts.UploadID, Valid: true})
	}
	if ts.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(pgx.Identifier{ts.OrderBy}.Sanitize())
	}

	return b.String(), args
}

func queryReason(err error, fallback string) string {
	if IsUnavailable(err) {
		return "database unavailable"
	}
	return fallback
}

// IsUnavailable reports whether err means the database could not be reached.
func IsUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
