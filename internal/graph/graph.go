// Package graph turns a validated stage definition into a graph of plugin
// nodes and their variable and stage dependencies. The graph exists only
// for the duration of planning one stage.
package graph

import (
	"log/slog"
	"sort"

	"github.com/me/pipeweave/internal/binding"
	"github.com/me/pipeweave/internal/classify"
	"github.com/me/pipeweave/pkg/model"
)

// Node is one plugin of a stage together with its dependency metadata and
// argument classifications.
type Node struct {
	ID        string
	Section   model.Section
	ClassName string
	Plugin    *model.PluginDefinition

	// VarDependencies are the variables referenced in this plugin's own
	// parameter values, in first-mention order.
	VarDependencies []string
	// StageRefs are the earlier stages referenced in parameter values.
	StageRefs []int
	// DirModifiedStageRefs is the subset of StageRefs wrapped in at least
	// one dir() modifier.
	DirModifiedStageRefs []int
	// LocalFileArgs maps parameter names to existing local file paths.
	LocalFileArgs map[string]string
	// SensitiveArgs lists parameters bound to null or empty values.
	SensitiveArgs []string
	// PluginDependencies names the filter nodes that must run before this
	// node, derived from VarDependencies via the variable-to-filter index.
	PluginDependencies []string
}

// Graph is the per-stage plugin dependency graph.
type Graph struct {
	StageIndex int
	Nodes      map[string]*Node
	// VarFilter indexes which filter node binds each variable. Validation
	// has already proved the binding is 1:1.
	VarFilter map[string]string
	// Output is the stage's output plugin node, if any. It is not part of
	// the intra-stage dependency graph; it runs after the Input plugin.
	Output *Node
}

// NodeIDs returns the graph's node IDs in sorted order, for deterministic
// iteration.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the node-to-dependency-set mapping consumed by the
// topological resolver.
func (g *Graph) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(g.Nodes))
	for id, n := range g.Nodes {
		deps[id] = n.PluginDependencies
	}
	return deps
}

// Builder constructs dependency graphs from validated stages.
type Builder struct {
	logger *slog.Logger
}

// New creates a Builder with the given logger.
func New(logger *slog.Logger) *Builder {
	return &Builder{logger: logger.With("component", "graph")}
}

// Build constructs the plugin dependency graph for one validated stage.
// Every stage reference collected along the way is re-checked against the
// stage's own index: a reference can appear deep inside a plugin binding
// even though the syntactic shape check happened earlier.
func (b *Builder) Build(stage *model.StageDefinition) (*Graph, error) {
	g := &Graph{
		StageIndex: stage.Index,
		Nodes:      make(map[string]*Node),
		VarFilter:  make(map[string]string),
	}

	switch stage.Kind {
	case model.StageProcessor:
		node, err := b.buildNode(stage.Index, model.NodeProcessor, model.SectionProcessor, stage.Processor.Single())
		if err != nil {
			return nil, err
		}
		// A processor stage has no intra-stage plugin graph.
		g.Nodes[node.ID] = node
		return g, nil

	case model.StageConnector:
		conn := stage.Connector

		input, err := b.buildNode(stage.Index, model.NodeInput, model.SectionInput, conn.Input.Single())
		if err != nil {
			return nil, err
		}
		g.Nodes[input.ID] = input

		for _, fb := range conn.Filters {
			id := model.FilterNodeID(fb.Variable)
			node, err := b.buildNode(stage.Index, id, model.SectionFilter, fb.Plugins.Single())
			if err != nil {
				return nil, err
			}
			g.Nodes[id] = node
			g.VarFilter[fb.Variable] = id
		}

		if conn.Output != nil {
			out, err := b.buildNode(stage.Index, model.NodeOutput, model.SectionOutput, conn.Output.Single())
			if err != nil {
				return nil, err
			}
			g.Output = out
		}

		// Validation proved every referenced variable has exactly one
		// binding filter, so the lookup cannot miss.
		for _, id := range g.NodeIDs() {
			node := g.Nodes[id]
			for _, v := range node.VarDependencies {
				node.PluginDependencies = append(node.PluginDependencies, g.VarFilter[v])
			}
			sort.Strings(node.PluginDependencies)
		}

		b.logger.Debug("dependency graph built", "stage", stage.Index, "nodes", len(g.Nodes))
		return g, nil
	}

	return nil, model.NewDefinitionError("stage %d has unknown kind %q", stage.Index, stage.Kind)
}

// buildNode computes the per-node metadata for one plugin instance.
func (b *Builder) buildNode(stageIdx int, id string, section model.Section, plugin *model.PluginDefinition) (*Node, error) {
	refs, dirMod := binding.CollectStageRefs(plugin)
	for _, ref := range refs {
		if ref >= stageIdx {
			err := model.NewReferenceError("stage reference $%d must point to an earlier stage", ref)
			return nil, err.WithContext(stageIdx, section, plugin.ClassName)
		}
	}
	return &Node{
		ID:                   id,
		Section:              section,
		ClassName:            plugin.ClassName,
		Plugin:               plugin,
		VarDependencies:      binding.CollectVarDependencies(plugin),
		StageRefs:            refs,
		DirModifiedStageRefs: dirMod,
		LocalFileArgs:        classify.LocalFileArgs(plugin),
		SensitiveArgs:        classify.SensitiveArgs(plugin),
	}, nil
}
