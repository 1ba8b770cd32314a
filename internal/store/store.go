// Package store keeps a SQLite snapshot of processing runs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"declink/internal/group"
	"declink/internal/record"
)

const timeLayout = time.RFC3339

// Run describes one processing run.
type Run struct {
	ID        string
	StartedAt time.Time
	Source    string
	Tasks     string
	UserTasks string
	Accepted  int
	Invalid   int
	Deduped   int
}

// Store is a snapshot database. It is not safe for concurrent writers.
type Store struct {
	db     *sql.DB
	schema record.Schema
}

// Open opens or creates the database at path. schema tells which cells hold
// the identifying columns.
func Open(path string, schema record.Schema) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	s := &Store{db: db, schema: schema}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			source     TEXT NOT NULL,
			tasks      TEXT NOT NULL,
			user_tasks TEXT NOT NULL,
			accepted   INTEGER NOT NULL,
			invalid    INTEGER NOT NULL,
			deduped    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS records (
			run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			line                    INTEGER NOT NULL,
			filename                TEXT NOT NULL,
			email                   TEXT NOT NULL,
			name                    TEXT NOT NULL,
			link                    TEXT NOT NULL,
			hash                    TEXT NOT NULL,
			not_found_in_user_tasks INTEGER NOT NULL,
			ambiguous               INTEGER NOT NULL,
			name_normalized         TEXT NOT NULL,
			name_troublesome        INTEGER NOT NULL,
			cells                   TEXT NOT NULL,
			PRIMARY KEY (run_id, line)
		);
		CREATE TABLE IF NOT EXISTS invalid_records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			line   INTEGER NOT NULL,
			reason TEXT NOT NULL,
			cells  TEXT NOT NULL,
			PRIMARY KEY (run_id, line)
		);
		CREATE TABLE IF NOT EXISTS group_members (
			run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			group_no INTEGER NOT NULL,
			kind     TEXT NOT NULL,
			key      TEXT NOT NULL,
			line     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_hash ON records(run_id, hash);
		CREATE INDEX IF NOT EXISTS idx_records_link ON records(run_id, link);
		CREATE INDEX IF NOT EXISTS idx_group_members_run ON group_members(run_id, group_no);
	`)
	return err
}

// SaveRun stores run with its accepted and invalid rows in one transaction.
// An empty run.ID is filled with a new UUID; the ID is returned. Accepted
// and Invalid are taken from the slices.
func (s *Store) SaveRun(run Run, accepted []*record.Record, invalid []record.Invalid) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, source, tasks, user_tasks, accepted, invalid, deduped) VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.Source, run.Tasks, run.UserTasks,
		len(accepted), len(invalid), run.Deduped,
	); err != nil {
		return "", fmt.Errorf("store: insert run: %w", err)
	}

	recStmt, err := tx.Prepare(`INSERT INTO records (run_id, line, filename, email, name, link, hash,
		not_found_in_user_tasks, ambiguous, name_normalized, name_troublesome, cells)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", err
	}
	defer recStmt.Close()
	for _, r := range accepted {
		cells, err := json.Marshal(r.Cells)
		if err != nil {
			return "", err
		}
		if _, err := recStmt.Exec(run.ID, r.Line,
			r.Cell(s.schema.Filename), r.Cell(s.schema.Email), r.Cell(s.schema.Name),
			r.Link, r.Hash, r.NotFoundInUserTasks, r.Ambiguous, r.NameNormalized, r.NameTroublesome,
			string(cells),
		); err != nil {
			return "", fmt.Errorf("store: insert record line %d: %w", r.Line, err)
		}
	}

	invStmt, err := tx.Prepare(`INSERT INTO invalid_records (run_id, line, reason, cells) VALUES (?,?,?,?)`)
	if err != nil {
		return "", err
	}
	defer invStmt.Close()
	for _, inv := range invalid {
		cells, err := json.Marshal(inv.Cells)
		if err != nil {
			return "", err
		}
		if _, err := invStmt.Exec(run.ID, inv.Line, inv.Reason, string(cells)); err != nil {
			return "", fmt.Errorf("store: insert invalid line %d: %w", inv.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// SaveGroups records group membership for a stored run. Groups are numbered
// from 1 in the given order.
func (s *Store) SaveGroups(runID string, groups []group.Group) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_members WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO group_members (run_id, group_no, kind, key, line) VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, g := range groups {
		for _, r := range g.Records {
			if _, err := stmt.Exec(runID, i+1, string(g.Kind), g.Key, r.Line); err != nil {
				return fmt.Errorf("store: insert group %d: %w", i+1, err)
			}
		}
	}
	return tx.Commit()
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, started_at, source, tasks, user_tasks, accepted, invalid, deduped
		FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Source, &r.Tasks, &r.UserTasks, &r.Accepted, &r.Invalid, &r.Deduped); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("store: run %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts summarizes what a run stored.
type Counts struct {
	Records int
	Invalid int
	Grouped int
	Groups  int
}

// CountRecords counts the stored rows of a run.
func (s *Store) CountRecords(runID string) (Counts, error) {
	var c Counts
	err := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM records WHERE run_id = ?),
		(SELECT COUNT(*) FROM invalid_records WHERE run_id = ?),
		(SELECT COUNT(*) FROM group_members WHERE run_id = ?),
		(SELECT COUNT(DISTINCT group_no) FROM group_members WHERE run_id = ?)`,
		runID, runID, runID, runID,
	).Scan(&c.Records, &c.Invalid, &c.Grouped, &c.Groups)
	return c, err
}
