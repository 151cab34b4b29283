// Package store persists Submission rows in SQLite. It is the Go
// analogue of the row store named in spec.md as an external
// collaborator's backing data, exposed here as a first-class package
// since the batch orchestrator and the intake adapter both depend on
// it directly.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

//go:embed schema.sql
var schemaSQL string

// SubmissionStore is the narrow interface the orchestrator, intake
// adapter, and HTTP surface depend on. A fake implementation backs
// orchestrator and httpapi tests.
type SubmissionStore interface {
	Create(ctx context.Context, content string) (*model.Submission, error)
	Get(ctx context.Context, reference string) (*model.Submission, error)
	List(ctx context.Context, status model.SubmissionStatus, skip, limit int) ([]model.Submission, error)
	// ListPending returns submissions with status "pending" ordered by
	// created_at ascending. It deliberately does not include
	// "in_progress" rows: a submission stranded in_progress by a
	// crashed batch is not auto-recovered (see spec.md §9 open
	// question 1) and requires operator intervention.
	ListPending(ctx context.Context) ([]model.Submission, error)
	UpdateStatus(ctx context.Context, reference string, status model.SubmissionStatus, agentNotes string) error
	Close() error
}

// Store is the SQLite-backed SubmissionStore.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	connStr := "file:" + escapedPath
	if dbPath != ":memory:" {
		connStr += "?_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new submission. Since the reference string embeds
// the autoincrement id, the row is inserted with a placeholder
// reference and then updated once the id is known — matching the
// two-step assignment in the original intake handler. Both statements
// run inside one transaction: SQLite serializes writers at the
// connection, so a second, overlapping Create cannot observe (or
// collide with) another placeholder row while the first is still
// assigning its real reference.
func (s *Store) Create(ctx context.Context, content string) (*model.Submission, error) {
	now := time.Now().UTC().Round(0)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (reference, content, status, agent_notes, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?)`,
		"", content, model.StatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}

	ref := model.Reference(id)
	if _, err := tx.ExecContext(ctx,
		`UPDATE submissions SET reference = ? WHERE id = ?`, ref, id,
	); err != nil {
		return nil, fmt.Errorf("assign reference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission: %w", err)
	}

	return &model.Submission{
		ID:         id,
		Reference:  ref,
		Content:    content,
		Status:     model.StatusPending,
		AgentNotes: "",
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Get looks up a submission by reference. It returns an error
// wrapping sql.ErrNoRows when no such reference exists.
func (s *Store) Get(ctx context.Context, reference string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference, content, status, agent_notes, created_at, updated_at
		 FROM submissions WHERE reference = ?`, reference,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", reference, err)
	}
	return sub, nil
}

func (s *Store) List(ctx context.Context, status model.SubmissionStatus, skip, limit int) ([]model.Submission, error) {
	query := `SELECT id, reference, content, status, agent_notes, created_at, updated_at
		 FROM submissions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

func (s *Store) ListPending(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reference, content, status, agent_notes, created_at, updated_at
		 FROM submissions WHERE status = ? ORDER BY created_at ASC, id ASC`,
		model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, reference string, status model.SubmissionStatus, agentNotes string) error {
	now := time.Now().UTC().Round(0)
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, agent_notes = ?, updated_at = ? WHERE reference = ?`,
		status, agentNotes, now, reference,
	)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s not found", reference)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var sub model.Submission
	var status string
	if err := row.Scan(&sub.ID, &sub.Reference, &sub.Content, &status, &sub.AgentNotes, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Status = model.SubmissionStatus(status)
	return &sub, nil
}

func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}
