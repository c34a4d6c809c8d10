// Package store persists the question pool. The pool is always written as one
// full snapshot inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLite stores the pool in a SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS questions (
			id           INTEGER PRIMARY KEY,
			position     INTEGER NOT NULL,
			text         TEXT    NOT NULL,
			control_type TEXT    NOT NULL,
			is_initial   INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS risk_points (
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			token       TEXT    NOT NULL,
			points      INTEGER NOT NULL,
			PRIMARY KEY (question_id, token)
		);

		CREATE TABLE IF NOT EXISTS follow_ups (
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			token       TEXT    NOT NULL,
			target      INTEGER NOT NULL,
			PRIMARY KEY (question_id, token)
		);

		CREATE INDEX IF NOT EXISTS idx_questions_position ON questions(position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadAll returns the pool in persisted order.
func (s *SQLite) LoadAll(ctx context.Context) ([]*question.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, control_type, is_initial FROM questions ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*question.Question
	byID := make(map[question.ID]*question.Question)
	for rows.Next() {
		var (
			q       question.Question
			ctl     string
			initial int
		)
		if err := rows.Scan(&q.ID, &q.Text, &ctl, &initial); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.ControlType = question.ControlType(ctl)
		q.IsInitial = initial != 0
		q.RiskPoints = map[string]int{}
		q.FollowUp = map[string]question.ID{}
		out = append(out, &q)
		byID[q.ID] = &q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	if err := s.loadEdges(ctx, `SELECT question_id, token, points FROM risk_points`, func(id question.ID, tok string, v int64) {
		if q := byID[id]; q != nil {
			q.RiskPoints[tok] = int(v)
		}
	}); err != nil {
		return nil, fmt.Errorf("load risk points: %w", err)
	}
	if err := s.loadEdges(ctx, `SELECT question_id, token, target FROM follow_ups`, func(id question.ID, tok string, v int64) {
		if q := byID[id]; q != nil {
			q.FollowUp[tok] = question.ID(v)
		}
	}); err != nil {
		return nil, fmt.Errorf("load follow-ups: %w", err)
	}
	return out, nil
}

func (s *SQLite) loadEdges(ctx context.Context, query string, fn func(question.ID, string, int64)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  question.ID
			tok string
			v   int64
		)
		if err := rows.Scan(&id, &tok, &v); err != nil {
			return err
		}
		fn(id, tok, v)
	}
	return rows.Err()
}

// SaveAll replaces the stored pool with questions. Either the whole snapshot
// is written or nothing changes.
func (s *SQLite) SaveAll(ctx context.Context, questions []*question.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"follow_ups", "risk_points", "questions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save: clear %s: %w", table, err)
		}
	}
	for pos, q := range questions {
		if err := insertQuestion(ctx, tx, pos, q); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: commit: %w", err)
	}
	return nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, pos int, q *question.Question) error {
	initial := 0
	if q.IsInitial {
		initial = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, position, text, control_type, is_initial) VALUES (?, ?, ?, ?, ?)`,
		q.ID, pos, q.Text, string(q.ControlType), initial,
	); err != nil {
		return fmt.Errorf("save question %d: %w", q.ID, err)
	}
	for tok, pts := range q.RiskPoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO risk_points (question_id, token, points) VALUES (?, ?, ?)`,
			q.ID, tok, pts,
		); err != nil {
			return fmt.Errorf("save risk points %d/%s: %w", q.ID, tok, err)
		}
	}
	for tok, target := range q.FollowUp {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO follow_ups (question_id, token, target) VALUES (?, ?, ?)`,
			q.ID, tok, target,
		); err != nil {
			return fmt.Errorf("save follow-up %d/%s: %w", q.ID, tok, err)
		}
	}
	return nil
}

// Count returns how many questions are stored.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}
