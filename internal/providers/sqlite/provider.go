// Package sqlite implements the provider backed by a local SQLite
// database. It keeps a mirror of work intervals in a single table and
// is handy as an offline destination or as a fixture source when
// exercising the reconciler without network access.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

const timeFormat = time.RFC3339Nano

// Config holds the database settings.
type Config struct {
	Path string // database file path, or ":memory:"
}

// Provider syncs against a local SQLite database.
type Provider struct {
	*provider.Base
	path string
	db   *sql.DB
}

// New creates the SQLite provider.
func New(opts provider.Options, cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		return nil, errors.NewConfigError("sqlite", "database path is required", nil)
	}
	base, err := provider.NewBase(opts)
	if err != nil {
		return nil, err
	}
	return &Provider{Base: base, path: cfg.Path}, nil
}

// ID implements the provider interface.
func (p *Provider) ID() provider.ID {
	return provider.SQLiteID
}

// Open connects to the database, creates the schema when missing, and
// indexes every interval overlapping the configured window.
func (p *Provider) Open(ctx context.Context) error {
	dsn := p.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	p.db = db

	if err := p.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	query := `SELECT id, name, description, started_at, ended_at FROM work_intervals`
	var (
		clauses []string
		args    []any
	)
	if since := p.Options().Since; since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, since.Format(timeFormat))
	}
	if until := p.Options().Until; until != nil {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, until.Format(timeFormat))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY started_at, id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec         interval.Record
			description sql.NullString
			startedAt   string
			endedAt     string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &description, &startedAt, &endedAt); err != nil {
			return err
		}
		rec.Description = description.String
		if rec.Start, err = interval.ParseTime(startedAt); err != nil {
			return err
		}
		if rec.End, err = interval.ParseTime(endedAt); err != nil {
			return err
		}
		if err := p.Index(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Provider) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_intervals (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		started_at  TEXT NOT NULL,
		ended_at    TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_intervals_started ON work_intervals(started_at);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// Apply drains the queued changes into the database.
func (p *Provider) Apply(ctx context.Context) error {
	if p.db == nil {
		return errors.NewConfigError("sqlite", "provider not opened", nil)
	}
	return p.ApplyPending(ctx, p.ID(), p.applyChange)
}

func (p *Provider) applyChange(ctx context.Context, change provider.Change) error {
	rec := change.Record
	switch rec.Action {
	case interval.ActionCreate:
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO work_intervals (id, name, description, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Description,
			rec.Start.Format(timeFormat), rec.End.Format(timeFormat),
		)
		return err

	case interval.ActionUpdate:
		_, err := p.db.ExecContext(ctx,
			`UPDATE work_intervals
			 SET name = ?, description = ?, started_at = ?, ended_at = ?
			 WHERE id = ?`,
			rec.Name, rec.Description,
			rec.Start.Format(timeFormat), rec.End.Format(timeFormat), rec.ID,
		)
		return err

	case interval.ActionDelete:
		_, err := p.db.ExecContext(ctx,
			`DELETE FROM work_intervals WHERE id = ?`, rec.ID)
		return err

	default:
		return errors.NewIntegrityError("unknown_action",
			fmt.Sprintf("record %s carries action %q", rec.ID, rec.Action.String()), rec.ID)
	}
}

// Close releases the database connection.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
