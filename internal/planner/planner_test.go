package planner

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"

	"github.com/me/pipeweave/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func plugin(class string, params ...model.Param) *model.PluginDefinition {
	return &model.PluginDefinition{ClassName: class, Params: params}
}

func instances(defs ...*model.PluginDefinition) *model.PluginInstances {
	pi := &model.PluginInstances{}
	for _, d := range defs {
		pi.Instances = append(pi.Instances, d)
	}
	return pi
}

func sampleDefinition() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		Name: "modis-subset",
		Stages: []*model.StageDefinition{
			{
				Index: 1,
				Kind:  model.StageConnector,
				Connector: &model.ConnectorDef{
					Input: instances(plugin("NASAInput",
						model.Param{Name: "url", Value: model.StringValue("https://e4ftl01.cr.usgs.gov/%{date}")},
						model.Param{Name: "user", Value: model.StringValue("modis_user")},
						model.Param{Name: "password", Value: model.NullValue()},
					)),
					Filters: []model.FilterBinding{
						{Variable: "date", Plugins: instances(plugin("ValueList",
							model.Param{Name: "values", Value: model.ListValue("2020.03.01", "2020.03.02")},
						))},
					},
					Output: instances(plugin("ArchiveOutput",
						model.Param{Name: "dest", Value: model.StringValue("archive://modis")},
					)),
				},
			},
			{
				Index: 2,
				Kind:  model.StageProcessor,
				Processor: instances(plugin("ShapefileMask",
					model.Param{Name: "hdffile", Value: model.StringValue("$1")},
					model.Param{Name: "shapedir", Value: model.StringValue("dir($1)")},
				)),
			},
		},
	}
}

func batchIDs(sp *model.StagePlan) [][]string {
	out := make([][]string, 0, len(sp.Batches))
	for _, batch := range sp.Batches {
		ids := make([]string, 0, len(batch))
		for _, p := range batch {
			ids = append(ids, p.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestPlan(t *testing.T) {
	plan, err := New(testLogger()).Plan(sampleDefinition())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ID == "" {
		t.Error("plan has no ID")
	}
	if len(plan.Stages) != 2 {
		t.Fatalf("got %d stage plans, want 2", len(plan.Stages))
	}

	want := [][]string{{"Filter:date"}, {"Input"}, {"Output"}}
	if got := batchIDs(plan.Stages[0]); !reflect.DeepEqual(got, want) {
		t.Errorf("stage 1 batches = %v, want %v", got, want)
	}

	input := plan.Stages[0].Plugin(model.NodeInput)
	if input == nil {
		t.Fatal("stage 1 has no Input plan")
	}
	if !reflect.DeepEqual(input.VarDependencies, []string{"date"}) {
		t.Errorf("Input VarDependencies = %v", input.VarDependencies)
	}
	if !reflect.DeepEqual(input.DependsOn, []string{"Filter:date"}) {
		t.Errorf("Input DependsOn = %v", input.DependsOn)
	}
	if !reflect.DeepEqual(input.SensitiveArgs, []string{"password"}) {
		t.Errorf("Input SensitiveArgs = %v", input.SensitiveArgs)
	}

	proc := plan.Stages[1].Plugin(model.NodeProcessor)
	if proc == nil {
		t.Fatal("stage 2 has no Processor plan")
	}
	if !reflect.DeepEqual(proc.StageRefs, []int{1}) {
		t.Errorf("Processor StageRefs = %v", proc.StageRefs)
	}
	if !reflect.DeepEqual(proc.DirModifiedStageRefs, []int{1}) {
		t.Errorf("Processor DirModifiedStageRefs = %v", proc.DirModifiedStageRefs)
	}
}

func TestPlanRejectsInvalidDefinition(t *testing.T) {
	def := sampleDefinition()
	// Reference a variable no filter binds.
	def.Stages[0].Connector.Input.Instances[0].Params[0].Value = model.StringValue("https://x/%{nope}")

	_, err := New(testLogger()).Plan(def)
	if !model.IsCode(err, model.ErrVariable) {
		t.Fatalf("expected variable error, got %v", err)
	}
}

func TestPlanRejectsForwardStageRef(t *testing.T) {
	def := sampleDefinition()
	def.Stages[1].Processor.Instances[0].Params[0].Value = model.StringValue("$5")

	_, err := New(testLogger()).Plan(def)
	if !model.IsCode(err, model.ErrReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := New(testLogger())
	first, err := p.Plan(sampleDefinition())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	firstJSON, err := json.Marshal(first.Stages)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		plan, err := p.Plan(sampleDefinition())
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		planJSON, err := json.Marshal(plan.Stages)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(planJSON) != string(firstJSON) {
			t.Fatalf("run %d produced a different plan:\n%s\nvs\n%s", i, planJSON, firstJSON)
		}
	}
}
