package expand

import (
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/me/pipeweave/internal/registry"
	"github.com/me/pipeweave/pkg/model"
)

func testExpander() *Expander {
	logger := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(registry.New(), logger)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func comboValues(t *testing.T, combos []model.ParameterCombination, params ...string) [][]any {
	t.Helper()
	out := make([][]any, 0, len(combos))
	for _, c := range combos {
		row := make([]any, 0, len(params))
		for _, p := range params {
			row = append(row, c.Values[p])
		}
		out = append(out, row)
	}
	return out
}

func TestExpandCartesianOrder(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "Downloader",
		Params: []model.Param{
			{Name: "p1", Value: model.StringValue("%{a}")},
			{Name: "p2", Value: model.StringValue("%{b}")},
		},
	}
	bindings := map[string][]string{
		"a": {"a1", "a2"},
		"b": {"x", "y", "z"},
	}

	combos, err := testExpander().Expand(1, model.SectionInput, plugin, bindings)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(combos) != 6 {
		t.Fatalf("got %d combinations, want 6", len(combos))
	}
	want := [][]any{
		{"a1", "x"}, {"a1", "y"}, {"a1", "z"},
		{"a2", "x"}, {"a2", "y"}, {"a2", "z"},
	}
	if got := comboValues(t, combos, "p1", "p2"); !reflect.DeepEqual(got, want) {
		t.Errorf("combinations = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(combos[0].Params, []string{"p1", "p2"}) {
		t.Errorf("Params = %v", combos[0].Params)
	}
}

func TestExpandLiteralsAndLists(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "Masker",
		Params: []model.Param{
			{Name: "path", Value: model.StringValue("$1")},
			{Name: "bands", Value: model.ListValue("b1", "b2")},
			{Name: "password", Value: model.NullValue()},
		},
	}

	combos, err := testExpander().Expand(2, model.SectionProcessor, plugin, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(combos) != 1 {
		t.Fatalf("got %d combinations, want 1", len(combos))
	}
	c := combos[0]
	if c.Values["path"] != "$1" {
		t.Errorf("path = %v", c.Values["path"])
	}
	if !reflect.DeepEqual(c.Values["bands"], []string{"b1", "b2"}) {
		t.Errorf("bands = %v", c.Values["bands"])
	}
	if c.Values["password"] != nil {
		t.Errorf("password = %v, want nil", c.Values["password"])
	}
}

func TestExpandMultipleVarsInOneValue(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "Downloader",
		Params: []model.Param{
			{Name: "url", Value: model.StringValue("https://x/%{tile}/%{date}")},
		},
	}
	bindings := map[string][]string{
		"tile": {"t1", "t2"},
		"date": {"d1"},
	}

	combos, err := testExpander().Expand(1, model.SectionInput, plugin, bindings)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := [][]any{{"https://x/t1/d1"}, {"https://x/t2/d1"}}
	if got := comboValues(t, combos, "url"); !reflect.DeepEqual(got, want) {
		t.Errorf("combinations = %v, want %v", got, want)
	}
}

func TestExpandNestedFilter(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "Masker",
		Params: []model.Param{
			{Name: "region", Value: model.NestedValue(&model.PluginDefinition{
				ClassName: "ValueList",
				Params: []model.Param{
					{Name: "values", Value: model.ListValue("north", "south")},
				},
			})},
		},
	}

	combos, err := testExpander().Expand(2, model.SectionProcessor, plugin, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := [][]any{{"north"}, {"south"}}
	if got := comboValues(t, combos, "region"); !reflect.DeepEqual(got, want) {
		t.Errorf("combinations = %v, want %v", got, want)
	}
}

func TestExpandEmptyFilterResult(t *testing.T) {
	reg := registry.New()
	if err := reg.RegisterFilter("Empty", func(map[string]any) (registry.FilterPlugin, error) {
		return emptyFilter{}, nil
	}); err != nil {
		t.Fatalf("RegisterFilter: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
	e := New(reg, logger)

	plugin := &model.PluginDefinition{
		ClassName: "Masker",
		Params: []model.Param{
			{Name: "region", Value: model.NestedValue(&model.PluginDefinition{ClassName: "Empty"})},
		},
	}
	_, err := e.Expand(2, model.SectionProcessor, plugin, nil)
	if !model.IsCode(err, model.ErrNoValidBinding) {
		t.Fatalf("expected no-valid-binding error, got %v", err)
	}
	var perr *model.PlanError
	if !errors.As(err, &perr) || perr.Stage != 2 || perr.Param != "region" {
		t.Errorf("error context = %+v", perr)
	}
}

type emptyFilter struct{}

func (emptyFilter) Filter() ([]string, error) { return nil, nil }

func TestExpandUnboundVariable(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "Downloader",
		Params: []model.Param{
			{Name: "url", Value: model.StringValue("%{missing}")},
		},
	}
	_, err := testExpander().Expand(1, model.SectionInput, plugin, map[string][]string{})
	if !model.IsCode(err, model.ErrNoValidBinding) {
		t.Fatalf("expected no-valid-binding error, got %v", err)
	}
}

func TestExpandNoParams(t *testing.T) {
	plugin := &model.PluginDefinition{ClassName: "Probe"}
	combos, err := testExpander().Expand(1, model.SectionInput, plugin, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(combos) != 1 || len(combos[0].Values) != 0 {
		t.Errorf("combinations = %+v, want one empty combination", combos)
	}
}
