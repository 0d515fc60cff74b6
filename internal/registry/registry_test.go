package registry

import (
	"reflect"
	"testing"

	"github.com/me/pipeweave/pkg/model"
)

func TestNewFilterUnknownClass(t *testing.T) {
	_, err := New().NewFilter("NoSuchFilter", nil)
	if !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRegisterFilterConflict(t *testing.T) {
	r := New()
	err := r.RegisterFilter("ValueList", func(map[string]any) (FilterPlugin, error) { return nil, nil })
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestValueList(t *testing.T) {
	r := New()
	p, err := r.NewFilter("ValueList", map[string]any{
		"values": []any{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	got, err := p.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Filter = %v", got)
	}
}

func TestValueListScalar(t *testing.T) {
	p, err := New().NewFilter("ValueList", map[string]any{"values": "only"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	got, _ := p.Filter()
	if !reflect.DeepEqual(got, []string{"only"}) {
		t.Errorf("Filter = %v", got)
	}
}

func TestValueListMissingParam(t *testing.T) {
	if _, err := New().NewFilter("ValueList", map[string]any{}); err == nil {
		t.Fatal("expected error for missing values")
	}
}

func TestDateTimeRange(t *testing.T) {
	p, err := New().NewFilter("DateTimeRange", map[string]any{
		"pattern": "2006-01-02",
		"start":   "2020-03-01",
		"end":     "2020-03-04",
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	got, err := p.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	want := []string{"2020-03-01", "2020-03-02", "2020-03-03", "2020-03-04"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestDateTimeRangeCustomStep(t *testing.T) {
	p, err := New().NewFilter("DateTimeRange", map[string]any{
		"pattern": "2006-01-02T15",
		"start":   "2020-03-01T00",
		"end":     "2020-03-01T12",
		"step":    "6h",
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	got, _ := p.Filter()
	want := []string{"2020-03-01T00", "2020-03-01T06", "2020-03-01T12"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestDateTimeRangeErrors(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"end before start", map[string]any{
			"pattern": "2006-01-02", "start": "2020-03-04", "end": "2020-03-01"}},
		{"bad pattern", map[string]any{
			"pattern": "2006-01-02", "start": "March 1", "end": "2020-03-01"}},
		{"negative step", map[string]any{
			"pattern": "2006-01-02", "start": "2020-03-01", "end": "2020-03-02", "step": "-1h"}},
		{"missing pattern", map[string]any{
			"start": "2020-03-01", "end": "2020-03-02"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New().NewFilter("DateTimeRange", tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}
