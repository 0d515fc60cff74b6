package resolve

import (
	"log/slog"
	"reflect"
	"testing"

	"github.com/me/pipeweave/pkg/model"
)

func testResolver() *Resolver {
	return New(slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError})))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		deps map[string][]string
		want [][]string
	}{
		{
			name: "input after filter",
			deps: map[string][]string{
				"Input":    {"Filter:r"},
				"Filter:r": nil,
			},
			want: [][]string{{"Filter:r"}, {"Input"}},
		},
		{
			name: "independent filters share a batch",
			deps: map[string][]string{
				"Input":    {"Filter:a", "Filter:b"},
				"Filter:a": nil,
				"Filter:b": nil,
			},
			want: [][]string{{"Filter:a", "Filter:b"}, {"Input"}},
		},
		{
			name: "chained filters",
			deps: map[string][]string{
				"Input":    {"Filter:b"},
				"Filter:b": {"Filter:a"},
				"Filter:a": nil,
			},
			want: [][]string{{"Filter:a"}, {"Filter:b"}, {"Input"}},
		},
		{
			name: "single node",
			deps: map[string][]string{"Processor": nil},
			want: [][]string{{"Processor"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testResolver().Order(1, tt.deps)
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderDetectsCycle(t *testing.T) {
	deps := map[string][]string{
		"Filter:a": {"Filter:b"},
		"Filter:b": {"Filter:a"},
		"Input":    {"Filter:a"},
	}
	_, err := testResolver().Order(2, deps)
	if !model.IsCode(err, model.ErrUnresolvable) {
		t.Fatalf("expected unresolvable error, got %v", err)
	}
}

func TestOrderDeterministic(t *testing.T) {
	deps := map[string][]string{
		"Filter:z": nil,
		"Filter:m": nil,
		"Filter:a": nil,
		"Input":    {"Filter:a", "Filter:m", "Filter:z"},
	}
	first, err := testResolver().Order(1, deps)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := testResolver().Order(1, deps)
		if err != nil {
			t.Fatalf("Order: %v", err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
	want := [][]string{{"Filter:a", "Filter:m", "Filter:z"}, {"Input"}}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("Order = %v, want %v", first, want)
	}
}
