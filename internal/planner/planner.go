// Package planner drives the planning pipeline: parse, validate, build the
// per-stage dependency graph, resolve batch order, and assemble the
// WorkflowPlan handed to translators and the run store.
package planner

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/pipeweave/internal/graph"
	"github.com/me/pipeweave/internal/parser"
	"github.com/me/pipeweave/internal/resolve"
	"github.com/me/pipeweave/internal/validate"
	"github.com/me/pipeweave/pkg/model"
)

// Planner turns workflow definitions into execution plans.
type Planner struct {
	parser    *parser.Parser
	validator *validate.Validator
	builder   *graph.Builder
	resolver  *resolve.Resolver
	logger    *slog.Logger
}

// New creates a Planner with the given logger.
func New(logger *slog.Logger) *Planner {
	return &Planner{
		parser:    parser.New(logger),
		validator: validate.New(logger),
		builder:   graph.New(logger),
		resolver:  resolve.New(logger),
		logger:    logger.With("component", "planner"),
	}
}

// PlanFile parses and plans the workflow definition at path.
func (p *Planner) PlanFile(path string) (*model.WorkflowPlan, error) {
	def, err := p.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return p.Plan(def)
}

// Plan validates the definition and resolves every stage into ordered
// plugin batches. Planning is pure apart from the local-file existence
// checks, so an unchanged definition and filesystem always yield the same
// stage plans.
func (p *Planner) Plan(def *model.WorkflowDefinition) (*model.WorkflowPlan, error) {
	if err := p.validator.ValidateWorkflow(def); err != nil {
		return nil, err
	}

	plan := &model.WorkflowPlan{
		ID:        uuid.New().String(),
		Name:      def.Name,
		CreatedAt: time.Now().UTC(),
	}
	for _, stage := range def.Stages {
		sp, err := p.planStage(stage)
		if err != nil {
			return nil, err
		}
		plan.Stages = append(plan.Stages, sp)
	}

	p.logger.Info("workflow planned", "workflow", def.Name, "stages", len(plan.Stages), "plan_id", plan.ID)
	return plan, nil
}

// planStage resolves one stage into batches of plugin plans. A connector's
// output plugin is not part of the dependency graph; it runs after
// everything else as a final single-plugin batch.
func (p *Planner) planStage(stage *model.StageDefinition) (*model.StagePlan, error) {
	g, err := p.builder.Build(stage)
	if err != nil {
		return nil, err
	}

	order, err := p.resolver.Order(stage.Index, g.Dependencies())
	if err != nil {
		return nil, err
	}

	sp := &model.StagePlan{Index: stage.Index, Kind: stage.Kind}
	for _, batch := range order {
		plans := make([]*model.PluginPlan, 0, len(batch))
		for _, id := range batch {
			plans = append(plans, pluginPlan(g.Nodes[id]))
		}
		sp.Batches = append(sp.Batches, plans)
	}
	if g.Output != nil {
		sp.Batches = append(sp.Batches, []*model.PluginPlan{pluginPlan(g.Output)})
	}
	return sp, nil
}

func pluginPlan(n *graph.Node) *model.PluginPlan {
	return &model.PluginPlan{
		ID:                   n.ID,
		Section:              n.Section,
		ClassName:            n.ClassName,
		VarDependencies:      n.VarDependencies,
		DependsOn:            n.PluginDependencies,
		StageRefs:            n.StageRefs,
		DirModifiedStageRefs: n.DirModifiedStageRefs,
		LocalFileArgs:        n.LocalFileArgs,
		SensitiveArgs:        n.SensitiveArgs,
	}
}
