package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/pipeweave/pkg/model"
)

const sampleWorkflow = `
$1:
  Input:
    NASAInput:
      url: https://e4ftl01.cr.usgs.gov/%{date}
      password:
  Filter:
    date:
      DateTimeRange:
        pattern: "2006.01.02"
        start: "2020.03.01"
        end: "2020.03.02"
$2:
  HDFEOSShapefileMask:
    hdffile: $1
    shapedir: dir($1)
`

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func TestRootCommandStructure(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"validate": false, "plan": false, "expand": false, "status": false, "list": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing %s command", name)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeWorkflow(t, sampleWorkflow)
	if err := execute(t, "validate", path); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCommandRejectsUnboundVariable(t *testing.T) {
	path := writeWorkflow(t, `
$1:
  Input:
    NASAInput:
      url: https://x/%{nope}
`)
	err := execute(t, "validate", path)
	if !model.IsCode(err, model.ErrVariable) {
		t.Fatalf("expected variable error, got %v", err)
	}
}

func TestExpandCommand(t *testing.T) {
	path := writeWorkflow(t, sampleWorkflow)
	if err := execute(t, "expand", path); err != nil {
		t.Fatalf("expand: %v", err)
	}
}

func TestExpandCommandWithJSFilter(t *testing.T) {
	path := writeWorkflow(t, `
$1:
  Input:
    NASAInput:
      url: https://e4ftl01.cr.usgs.gov/%{tile}
  Filter:
    tile:
      JSEval:
        expression: |
          var out = [];
          for (var i = 0; i < 3; i++) { out.push(params.prefix + i); }
          return out;
        prefix: h09v
`)
	if err := execute(t, "expand", path); err != nil {
		t.Fatalf("expand with JSEval filter: %v", err)
	}
}

func TestPlanCommandRecordsRun(t *testing.T) {
	t.Setenv("PIPEWEAVE_DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	path := writeWorkflow(t, sampleWorkflow)

	if err := execute(t, "plan", path, "--run", "alpha"); err != nil {
		t.Fatalf("plan: %v", err)
	}
	// Re-planning under the same name must hit the unique-name check.
	err := execute(t, "plan", path, "--run", "alpha")
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if err := execute(t, "status", "alpha"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := execute(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestPlanCommandWritesOutputFile(t *testing.T) {
	path := writeWorkflow(t, sampleWorkflow)
	outPath := filepath.Join(t.TempDir(), "plan.json")

	if err := execute(t, "plan", path, "-o", outPath); err != nil {
		t.Fatalf("plan -o: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read plan output: %v", err)
	}
	var plan model.WorkflowPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan output: %v", err)
	}
	if len(plan.Stages) != 2 {
		t.Errorf("plan stages = %d, want 2", len(plan.Stages))
	}
}

func TestStatusCommandUnknownRun(t *testing.T) {
	t.Setenv("PIPEWEAVE_DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	err := execute(t, "status", "ghost")
	if !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
