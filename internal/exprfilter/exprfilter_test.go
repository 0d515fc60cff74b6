package exprfilter

import (
	"reflect"
	"testing"

	"github.com/me/pipeweave/internal/registry"
)

func newPlugin(t *testing.T, params map[string]any) registry.FilterPlugin {
	t.Helper()
	r := registry.New()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	p, err := r.NewFilter(ClassName, params)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return p
}

func TestFilterArray(t *testing.T) {
	p := newPlugin(t, map[string]any{
		"expression": `return ["h01v04", "h01v05", "h02v04"];`,
	})
	got, err := p.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	want := []string{"h01v04", "h01v05", "h02v04"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestFilterScalarAndNumbers(t *testing.T) {
	p := newPlugin(t, map[string]any{
		"expression": `return 2020;`,
	})
	got, err := p.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"2020"}) {
		t.Errorf("Filter = %v", got)
	}
}

func TestFilterParams(t *testing.T) {
	p := newPlugin(t, map[string]any{
		"expression": `
			var out = [];
			for (var i = 0; i < params.count; i++) {
				out.push(params.prefix + i);
			}
			return out;`,
		"prefix": "tile",
		"count":  3,
	})
	got, err := p.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	want := []string{"tile0", "tile1", "tile2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"syntax error", `return [;`},
		{"no value", `var x = 1;`},
		{"object candidate", `return [{a: 1}];`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlugin(t, map[string]any{"expression": tt.expression})
			if _, err := p.Filter(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMissingExpression(t *testing.T) {
	r := registry.New()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.NewFilter(ClassName, map[string]any{}); err == nil {
		t.Error("expected error for missing expression")
	}
}
