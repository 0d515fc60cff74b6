// Package resolve orders a stage's plugin dependency graph into execution
// batches. Each batch holds plugins whose dependencies are all satisfied by
// earlier batches, so members of one batch can run concurrently.
package resolve

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/me/pipeweave/pkg/model"
)

// Resolver computes batched topological orders.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver with the given logger.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger.With("component", "resolve")}
}

// Order resolves the node-to-dependencies mapping into batches. Nodes within a
// batch are sorted so the same graph always yields the same order. If any
// nodes remain but none is ready, the graph holds a cycle or a dependency on
// a node that does not exist, and Order reports which nodes stalled.
func (r *Resolver) Order(stage int, deps map[string][]string) ([][]string, error) {
	remaining := make(map[string][]string, len(deps))
	for id, d := range deps {
		remaining[id] = d
	}
	resolved := make(map[string]bool, len(deps))

	var batches [][]string
	for len(remaining) > 0 {
		var ready []string
		for id, d := range remaining {
			ok := true
			for _, dep := range d {
				if !resolved[dep] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			stalled := make([]string, 0, len(remaining))
			for id := range remaining {
				stalled = append(stalled, id)
			}
			sort.Strings(stalled)
			return nil, model.NewUnresolvableError(
				"stage %d has circular or missing plugin dependencies: %s",
				stage, strings.Join(stalled, ", "))
		}
		sort.Strings(ready)
		for _, id := range ready {
			resolved[id] = true
			delete(remaining, id)
		}
		batches = append(batches, ready)
	}

	r.logger.Debug("stage resolved", "stage", stage, "batches", len(batches))
	return batches, nil
}
