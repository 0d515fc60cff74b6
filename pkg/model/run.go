package model

import "time"

// RunState tracks the lifecycle of a planned workflow run.
type RunState string

const (
	RunStatePlanned   RunState = "PLANNED"
	RunStateExecuting RunState = "EXECUTING"
	RunStateComplete  RunState = "COMPLETE"
	RunStateFailed    RunState = "FAILED"
)

// Run records one planned workflow: its unique name, where the plan and
// intermediate outputs live, and which tool produced it. Persisted by the
// status store so runs can be listed and polled after planning.
type Run struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WorkflowFile string    `json:"workflow_file"`
	RunDir       string    `json:"run_dir"`
	Tool         string    `json:"tool,omitempty"`
	State        RunState  `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskState tracks one stage plugin's progress within a run.
type TaskState string

const (
	TaskStatePending   TaskState = "PENDING"
	TaskStateExecuting TaskState = "EXECUTING"
	TaskStateComplete  TaskState = "COMPLETE"
)

// RunTask is one plugin task of a run, identified by "<stage>:<plugin id>"
// (e.g. "1:Input", "1:Filter:region", "2:Processor").
type RunTask struct {
	RunID  string    `json:"run_id"`
	TaskID string    `json:"task_id"`
	State  TaskState `json:"state"`
}

// TaskSummary buckets a run's tasks by state and names the task currently
// (or next) being worked on.
type TaskSummary struct {
	Complete    []string `json:"complete"`
	Executing   []string `json:"executing"`
	Pending     []string `json:"pending"`
	AllComplete bool     `json:"all_complete"`
	CurrentTask string   `json:"current_task,omitempty"`
}

// RunStatus pairs a run with its task summary for status queries.
type RunStatus struct {
	Run   *Run         `json:"run"`
	Tasks *TaskSummary `json:"tasks,omitempty"`
}

// ListOptions configures list queries with pagination.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Response is the standard API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *PlanError `json:"error"`
}
