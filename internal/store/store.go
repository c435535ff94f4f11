// Package store handles SQLite persistence of the session and print ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for ledger data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			template TEXT NOT NULL,
			shots INTEGER NOT NULL,
			uploaded INTEGER NOT NULL,
			link TEXT NOT NULL,
			style_ok INTEGER NOT NULL,
			print_option INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS prints (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			printed_at TEXT NOT NULL,
			description TEXT NOT NULL,
			printer TEXT NOT NULL,
			copies INTEGER NOT NULL,
			cut INTEGER NOT NULL,
			path TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_prints_session_id ON prints(session_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a completed guest session and its print jobs.
func (s *Store) InsertSession(ctx context.Context, rec model.SessionRecord, prints []model.PrintRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, template, shots, uploaded, link, style_ok, print_option)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.Template,
		rec.Shots,
		rec.Uploaded,
		rec.Link,
		rec.StyleOK,
		int(rec.PrintOption),
	)
	if err != nil {
		return err
	}

	for _, p := range prints {
		p.SessionID = rec.ID
		if err = insertPrint(ctx, tx, p); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// InsertPrint appends one print job to the ledger.
func (s *Store) InsertPrint(ctx context.Context, rec model.PrintRecord) error {
	return insertPrint(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPrint(ctx context.Context, db execer, rec model.PrintRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO prints (session_id, printed_at, description, printer, copies, cut, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.PrintedAt.Format(time.RFC3339Nano),
		rec.Description,
		rec.Printer,
		rec.Copies,
		rec.Cut,
		rec.Path,
	)
	return err
}

func filterClauses(filter model.SessionFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Template != "" {
		clauses = append(clauses, "s.template = ?")
		args = append(args, filter.Template)
	}
	if filter.Since != nil {
		clauses = append(clauses, "s.ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	return strings.Join(clauses, " AND "), args
}

// ListSessions returns session aggregates, oldest first. Last limits the
// result to the most recent sessions.
func (s *Store) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.SessionAggregate, error) {
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT s.id, s.ended_at, s.template, s.uploaded, COALESCE(SUM(p.copies), 0)
		FROM sessions s
		LEFT JOIN prints p ON p.session_id = s.id
		WHERE %s
		GROUP BY s.id
		ORDER BY s.ended_at DESC`, where)
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.ID, &endedAt, &agg.Template, &agg.Uploaded, &agg.Copies); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	return sessions, nil
}

// TemplateTotals aggregates sessions and printed copies per template.
func (s *Store) TemplateTotals(ctx context.Context, filter model.SessionFilter) ([]model.TemplateAggregate, error) {
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT s.template, COUNT(DISTINCT s.id), COALESCE(SUM(p.copies), 0)
		FROM sessions s
		LEFT JOIN prints p ON p.session_id = s.id
		WHERE %s
		GROUP BY s.template
		ORDER BY COUNT(DISTINCT s.id) DESC, s.template ASC`, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.TemplateAggregate
	for rows.Next() {
		var agg model.TemplateAggregate
		if err := rows.Scan(&agg.Template, &agg.Sessions, &agg.Copies); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListPrints returns the print jobs of one session in submission order.
func (s *Store) ListPrints(ctx context.Context, sessionID string) ([]model.PrintRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, printed_at, description, printer, copies, cut, path
		 FROM prints WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.PrintRecord
	for rows.Next() {
		var rec model.PrintRecord
		var printedAt string
		if err := rows.Scan(&rec.SessionID, &printedAt, &rec.Description, &rec.Printer, &rec.Copies, &rec.Cut, &rec.Path); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, printedAt)
		if err != nil {
			return nil, err
		}
		rec.PrintedAt = parsed
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
