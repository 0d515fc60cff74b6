// Package store persists planned runs and their per-plugin task status so
// runs can be listed and polled after planning.
package store

import (
	"context"

	"github.com/me/pipeweave/pkg/model"
)

// Store defines the persistence layer for runs and run tasks.
type Store interface {
	// Run operations. Run names are unique; CreateRun reports a CONFLICT
	// PlanError on collision.
	CreateRun(ctx context.Context, run *model.Run, plan *model.WorkflowPlan) error
	GetRun(ctx context.Context, name string) (*model.Run, error)
	GetPlan(ctx context.Context, name string) (*model.WorkflowPlan, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRunState(ctx context.Context, name string, state model.RunState) error
	DeleteRun(ctx context.Context, name string) error

	// Task operations. Tasks are seeded from the plan at create time and
	// updated as the external executor reports progress.
	UpdateTaskState(ctx context.Context, runName, taskID string, state model.TaskState) error
	TaskSummary(ctx context.Context, runName string) (*model.TaskSummary, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
