package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/pipeweave/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// CreateRun inserts the run with its plan and seeds one PENDING task per
// planned plugin, in batch order. Run names are unique.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run, plan *model.WorkflowPlan) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "name", run.Name)

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, workflow_file, run_dir, tool, state, plan, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.WorkflowFile, run.RunDir, run.Tool, string(run.State),
		string(planJSON), run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.NewConflictError(
				"run name %q is already in use, choose a different name", run.Name)
		}
		return err
	}

	seq := 0
	for _, sp := range plan.Stages {
		for _, batch := range sp.Batches {
			for _, p := range batch {
				taskID := fmt.Sprintf("%d:%s", sp.Index, p.ID)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO run_tasks (run_name, task_id, seq, state) VALUES (?, ?, ?, ?)`,
					run.Name, taskID, seq, string(model.TaskStatePending),
				); err != nil {
					return fmt.Errorf("seed task %s: %w", taskID, err)
				}
				seq++
			}
		}
	}

	return tx.Commit()
}

// GetRun fetches a run by name. Returns nil if no such run exists.
func (s *SQLiteStore) GetRun(ctx context.Context, name string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "name", name)

	var run model.Run
	var state, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, workflow_file, run_dir, tool, state, created_at
		 FROM runs WHERE name = ?`, name,
	).Scan(&run.ID, &run.Name, &run.WorkflowFile, &run.RunDir, &run.Tool, &state, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &run, nil
}

// GetPlan fetches the stored plan for a run. Returns nil if no such run
// exists.
func (s *SQLiteStore) GetPlan(ctx context.Context, name string) (*model.WorkflowPlan, error) {
	s.logger.Debug("sql", "op", "select_plan", "table", "runs", "name", name)

	var planJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan FROM runs WHERE name = ?`, name).Scan(&planJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plan model.WorkflowPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &plan, nil
}

// ListRuns returns runs newest-first with pagination, plus the total count.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, workflow_file, run_dir, tool, state, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var run model.Run
		var state, createdAt string
		if err := rows.Scan(&run.ID, &run.Name, &run.WorkflowFile, &run.RunDir,
			&run.Tool, &state, &createdAt); err != nil {
			return nil, 0, err
		}
		run.State = model.RunState(state)
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		runs = append(runs, &run)
	}
	return runs, total, rows.Err()
}

// UpdateRunState transitions a run to the given state.
func (s *SQLiteStore) UpdateRunState(ctx context.Context, name string, state model.RunState) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "name", name, "state", state)

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ? WHERE name = ?`, string(state), name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("run", name)
	}
	return nil
}

// DeleteRun removes a run and its tasks.
func (s *SQLiteStore) DeleteRun(ctx context.Context, name string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "name", name)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("run", name)
	}
	return nil
}

// UpdateTaskState records progress on one task of a run.
func (s *SQLiteStore) UpdateTaskState(ctx context.Context, runName, taskID string, state model.TaskState) error {
	s.logger.Debug("sql", "op", "update", "table", "run_tasks", "run", runName, "task", taskID, "state", state)

	result, err := s.db.ExecContext(ctx,
		`UPDATE run_tasks SET state = ? WHERE run_name = ? AND task_id = ?`,
		string(state), runName, taskID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("task", runName+"/"+taskID)
	}
	return nil
}

// TaskSummary buckets a run's tasks by state in plan order. CurrentTask is
// the earliest task still executing or, when nothing is executing, the
// earliest pending task.
func (s *SQLiteStore) TaskSummary(ctx context.Context, runName string) (*model.TaskSummary, error) {
	s.logger.Debug("sql", "op", "summary", "table", "run_tasks", "run", runName)

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, state FROM run_tasks WHERE run_name = ? ORDER BY seq`, runName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &model.TaskSummary{}
	found := false
	for rows.Next() {
		var taskID, state string
		if err := rows.Scan(&taskID, &state); err != nil {
			return nil, err
		}
		found = true
		switch model.TaskState(state) {
		case model.TaskStateComplete:
			summary.Complete = append(summary.Complete, taskID)
		case model.TaskStateExecuting:
			summary.Executing = append(summary.Executing, taskID)
		default:
			summary.Pending = append(summary.Pending, taskID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NewNotFoundError("run", runName)
	}

	summary.AllComplete = len(summary.Executing) == 0 && len(summary.Pending) == 0
	switch {
	case len(summary.Executing) > 0:
		summary.CurrentTask = summary.Executing[0]
	case len(summary.Pending) > 0:
		summary.CurrentTask = summary.Pending[0]
	}
	return summary, nil
}
