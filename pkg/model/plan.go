package model

import "time"

// Plugin node identifiers within one stage's dependency graph.
const (
	NodeInput     = "Input"
	NodeOutput    = "Output"
	NodeProcessor = "Processor"
	// Filter nodes are named "Filter:<variable>"; see FilterNodeID.
)

// FilterNodeID returns the graph node identifier for the filter binding the
// given variable.
func FilterNodeID(variable string) string {
	return "Filter:" + variable
}

// WorkflowPlan is the validated, ordered execution plan for a whole
// workflow: one StagePlan per stage, in index order. It is the aggregate
// handed to the external plan translator.
type WorkflowPlan struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Stages    []*StagePlan `json:"stages"`
	CreatedAt time.Time    `json:"created_at"`
}

// StagePlan is the resolved plan for one stage: plugin batches in
// dependency order. Plugins within a batch have no dependency relationship
// and may be dispatched concurrently; batches must run in sequence.
type StagePlan struct {
	Index   int           `json:"index"`
	Kind    StageKind     `json:"kind"`
	Batches [][]*PluginPlan `json:"batches"`
}

// Plugin returns the plan entry for the given node ID, or nil.
func (s *StagePlan) Plugin(id string) *PluginPlan {
	for _, batch := range s.Batches {
		for _, p := range batch {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

// PluginPlan carries everything the external translator needs to schedule
// one plugin: its identity, dependency metadata, and the argument
// classifications computed during planning.
type PluginPlan struct {
	ID        string  `json:"id"` // "Input", "Filter:<var>", "Output", "Processor"
	Section   Section `json:"section"`
	ClassName string  `json:"class_name"`

	// VarDependencies are the variables this plugin's bindings reference;
	// each is produced by exactly one filter in the same stage.
	VarDependencies []string `json:"var_dependencies,omitempty"`
	// DependsOn lists the filter node IDs that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
	// StageRefs are the earlier stages whose outputs this plugin consumes.
	StageRefs []int `json:"stage_refs,omitempty"`
	// DirModifiedStageRefs is the subset of StageRefs that appear wrapped
	// in at least one dir() modifier.
	DirModifiedStageRefs []int `json:"dir_modified_stage_refs,omitempty"`
	// LocalFileArgs maps parameter names to local paths that must be
	// relocated to the execution target before dispatch.
	LocalFileArgs map[string]string `json:"local_file_args,omitempty"`
	// SensitiveArgs are parameters whose values are supplied out-of-band at
	// dispatch time and never persisted in the plan.
	SensitiveArgs []string `json:"sensitive_args,omitempty"`
}

// ParameterCombination is one concrete assignment of a value to every
// parameter of a plugin instance. Params preserves declared order; the
// plugin is invoked once per combination.
type ParameterCombination struct {
	Params []string       `json:"params"`
	Values map[string]any `json:"values"`
}

// PluginInvocation is one fully-bound plugin call produced at
// expansion/dispatch time.
type PluginInvocation struct {
	Stage       int                  `json:"stage"`
	PluginID    string               `json:"plugin_id"`
	ClassName   string               `json:"class_name"`
	Combination ParameterCombination `json:"combination"`
}
