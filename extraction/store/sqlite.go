// Package store archives finished runs in a SQLite database so results can be queried across runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/theimaginaryfoundation/session-extract/extraction"
	_ "modernc.org/sqlite"
)

// Run identifies one invocation of the pipeline.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	Model      string
	OutputPath string
}

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates when missing) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("OpenSQLite: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("OpenSQLite: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenSQLite: ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenSQLite: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		model TEXT NOT NULL,
		output_path TEXT NOT NULL,
		sessions INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS session_results (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		session_index INTEGER NOT NULL,
		question_category TEXT NOT NULL,
		question TEXT NOT NULL,
		question_date TEXT NOT NULL,
		answer TEXT NOT NULL,
		session_date TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, session_index)
	);
	CREATE TABLE IF NOT EXISTS message_responses (
		run_id TEXT NOT NULL,
		session_index INTEGER NOT NULL,
		message_index INTEGER NOT NULL,
		input_text TEXT NOT NULL,
		llm_response TEXT NOT NULL,
		PRIMARY KEY (run_id, session_index, message_index)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes a run and all of its results in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, results []extraction.ResultRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SaveRun: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := extraction.Summarize(results)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, model, output_path, sessions, successful, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.Unix(), run.Model, run.OutputPath, sum.Processed, sum.Successful, sum.Failed,
	); err != nil {
		return fmt.Errorf("SaveRun: insert run: %w", err)
	}

	sessionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_results (run_id, session_index, question_category, question, question_date, answer, session_date, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("SaveRun: prepare session insert: %w", err)
	}
	defer sessionStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO message_responses (run_id, session_index, message_index, input_text, llm_response)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("SaveRun: prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	for _, r := range results {
		var errText sql.NullString
		if r.Error != "" {
			errText = sql.NullString{String: r.Error, Valid: true}
		}
		if _, err := sessionStmt.ExecContext(ctx,
			run.ID.String(), r.SessionIndex, r.QuestionCategory, r.Question, r.QuestionDate, r.Answer, r.SessionDate, errText,
		); err != nil {
			return fmt.Errorf("SaveRun: insert session %d: %w", r.SessionIndex, err)
		}
		for i := range r.InputText {
			if _, err := msgStmt.ExecContext(ctx, run.ID.String(), r.SessionIndex, i, r.InputText[i], r.LLMResponse[i]); err != nil {
				return fmt.Errorf("SaveRun: insert message %d of session %d: %w", i, r.SessionIndex, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveRun: commit: %w", err)
	}
	return nil
}

// LoadResults reads back the results of a run ordered by session index. It is the query side of
// the archive for tools reading the database; the pipeline itself only writes.
func (s *SQLiteStore) LoadResults(ctx context.Context, runID uuid.UUID) ([]extraction.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_index, question_category, question, question_date, answer, session_date, error
		FROM session_results WHERE run_id = ? ORDER BY session_index`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("LoadResults: query sessions: %w", err)
	}

	var results []extraction.ResultRecord
	for rows.Next() {
		var r extraction.ResultRecord
		var errText sql.NullString
		if err := rows.Scan(&r.SessionIndex, &r.QuestionCategory, &r.Question, &r.QuestionDate, &r.Answer, &r.SessionDate, &errText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("LoadResults: scan session: %w", err)
		}
		r.Error = errText.String
		r.InputText = []string{}
		r.LLMResponse = []string{}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("LoadResults: iterate sessions: %w", err)
	}
	rows.Close()

	byIndex := make(map[int]int, len(results))
	for i, r := range results {
		byIndex[r.SessionIndex] = i
	}

	msgRows, err := s.db.QueryContext(ctx, `
		SELECT session_index, input_text, llm_response
		FROM message_responses WHERE run_id = ? ORDER BY session_index, message_index`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("LoadResults: query messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var idx int
		var in, out string
		if err := msgRows.Scan(&idx, &in, &out); err != nil {
			return nil, fmt.Errorf("LoadResults: scan message: %w", err)
		}
		pos, ok := byIndex[idx]
		if !ok {
			continue
		}
		results[pos].InputText = append(results[pos].InputText, in)
		results[pos].LLMResponse = append(results[pos].LLMResponse, out)
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("LoadResults: iterate messages: %w", err)
	}
	return results, nil
}
