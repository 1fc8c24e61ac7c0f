// Package postgres delivers format tables to PostgreSQL.
//
// Each run replaces the contents of <schema>.<format> for every format and
// appends one row to <schema>.crosswalk_runs, all in a single transaction.
// Rows are loaded with the COPY protocol.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/config"
	"github.com/JonMunkholm/crosswalk/internal/core"
	"github.com/JonMunkholm/crosswalk/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunsTable records every run delivered to the schema.
const RunsTable = "crosswalk_runs"

// FormatColumns are the columns of every format table, in COPY order.
var FormatColumns = []string{"fmtname", "start", "label", "type"}

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
}

// Sink writes format tables through a pgx pool.
type Sink struct {
	pool    *pgxpool.Pool
	schema  string
	timeout time.Duration
}

// Open parses the connection string, applies the pool limits from cfg and
// verifies the connection. Callers must Close the sink.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Sink, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Sink{pool: pool, schema: cfg.Schema, timeout: cfg.WriteTimeout}, nil
}

// DatabaseName returns the database name of a connection URL, for logging.
func DatabaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Close releases the pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// WriteTables implements core.Sink.
func (s *Sink) WriteTables(ctx context.Context, run core.RunInfo, tables []core.FormatTable) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := logging.WithFields(ctx, "sink", "postgres", "schema", s.schema)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := writeAll(ctx, tx, s.schema, run, tables); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Info("format tables written", "tables", len(tables))
	return nil
}

// writeAll runs the whole write session on db.
func writeAll(ctx context.Context, db DBTX, schema string, run core.RunInfo, tables []core.FormatTable) error {
	if _, err := db.Exec(ctx, createSchemaSQL(schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	for _, t := range tables {
		if err := replaceTable(ctx, db, schema, t); err != nil {
			return err
		}
	}

	if _, err := db.Exec(ctx, createRunsSQL(schema)); err != nil {
		return fmt.Errorf("create %s: %w", RunsTable, err)
	}
	args, err := runArgs(run)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, insertRunSQL(schema), args...); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	return nil
}

// replaceTable creates the table if needed, empties it and copies the rows in.
func replaceTable(ctx context.Context, db DBTX, schema string, t core.FormatTable) error {
	if _, err := db.Exec(ctx, createFormatTableSQL(schema, t.Name)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	if t.Label != "" {
		if _, err := db.Exec(ctx, commentSQL(schema, t.Name, t.Label)); err != nil {
			return fmt.Errorf("comment on table %s: %w", t.Name, err)
		}
	}
	if _, err := db.Exec(ctx, truncateSQL(schema, t.Name)); err != nil {
		return fmt.Errorf("truncate table %s: %w", t.Name, err)
	}

	n, err := db.CopyFrom(ctx, pgx.Identifier{schema, t.Name}, FormatColumns, pgx.CopyFromRows(copyRows(t.Rows)))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", t.Name, err)
	}
	if n != int64(len(t.Rows)) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", t.Name, n, len(t.Rows))
	}
	return nil
}

// copyRows converts format rows to COPY values in FormatColumns order.
func copyRows(rows []core.FormatRow) [][]any {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any{r.FmtName, r.Start, r.Label, r.Type}
	}
	return values
}

// runArgs returns the insertRunSQL arguments for run.
func runArgs(run core.RunInfo) ([]any, error) {
	counts, err := json.Marshal(run.TableCounts)
	if err != nil {
		return nil, fmt.Errorf("encode table counts: %w", err)
	}
	return []any{
		run.ID,
		run.SourceURL,
		run.CSVPath,
		run.StartedAt,
		run.FinishedAt,
		run.BytesRead,
		run.Stats.Records,
		run.Stats.Skipped(),
		run.Stats.EmittedRows,
		string(counts),
	}, nil
}

func qualified(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func createSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize()
}

func createFormatTableSQL(schema, name string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	fmtname TEXT NOT NULL,
	start   TEXT NOT NULL,
	label   TEXT NOT NULL,
	type    CHAR(1) NOT NULL,
	PRIMARY KEY (start)
)`, qualified(schema, name))
}

// commentSQL sets the table comment. COMMENT takes no bind parameters, so
// the label is written as an escaped string literal.
func commentSQL(schema, name, label string) string {
	return fmt.Sprintf("COMMENT ON TABLE %s IS '%s'", qualified(schema, name), strings.ReplaceAll(label, "'", "''"))
}

func truncateSQL(schema, name string) string {
	return "TRUNCATE TABLE " + qualified(schema, name)
}

func createRunsSQL(schema string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id       UUID PRIMARY KEY,
	source_url   TEXT NOT NULL,
	csv_path     TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	bytes_read   BIGINT NOT NULL,
	records      INTEGER NOT NULL,
	skipped      INTEGER NOT NULL,
	emitted      INTEGER NOT NULL,
	table_counts JSONB NOT NULL,
	loaded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`, qualified(schema, RunsTable))
}

func insertRunSQL(schema string) string {
	return fmt.Sprintf(`INSERT INTO %s
	(run_id, source_url, csv_path, started_at, finished_at, bytes_read, records, skipped, emitted, table_counts)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`, qualified(schema, RunsTable))
}
