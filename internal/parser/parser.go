// Package parser converts raw workflow YAML into typed definition structs.
// It walks yaml.Node trees rather than unmarshaling into maps so that
// declared parameter order is preserved (binding expansion depends on it)
// and duplicate keys are caught instead of silently collapsed.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/pipeweave/pkg/model"
)

// Parser converts workflow YAML documents into model.WorkflowDefinition.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "parser")}
}

// ParseFile reads and parses a workflow definition file.
func (p *Parser) ParseFile(path string) (*model.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	def, err := p.Parse(data)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		name := path
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		def.Name = strings.TrimSuffix(name, ".yml")
		def.Name = strings.TrimSuffix(def.Name, ".yaml")
	}
	return def, nil
}

// Parse parses a workflow definition document. The document is a mapping
// from stage identifiers ("$1".."$N") to stage definitions; identifiers
// must be exactly the integers 1..N, one each.
func (p *Parser) Parse(data []byte) (*model.WorkflowDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, model.NewDefinitionError("workflow definition is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, model.NewDefinitionError("workflow definition must be a mapping of stage identifiers")
	}

	stagesByIndex := make(map[int]*model.StageDefinition)
	for i := 0; i < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		index, err := parseStageID(keyNode.Value)
		if err != nil {
			return nil, err
		}
		if _, dup := stagesByIndex[index]; dup {
			return nil, model.NewDefinitionError("duplicate stage identifier $%d", index)
		}
		stage, err := p.parseStage(index, valNode)
		if err != nil {
			return nil, err
		}
		stagesByIndex[index] = stage
	}

	if len(stagesByIndex) == 0 {
		return nil, model.NewDefinitionError("workflow definition has no stages")
	}

	// Stage identifiers must be exactly 1..N, contiguous.
	indexes := make([]int, 0, len(stagesByIndex))
	for idx := range stagesByIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for i, idx := range indexes {
		if idx != i+1 {
			return nil, model.NewDefinitionError(
				"stage identifiers must be exactly $1..$%d; found $%d", len(stagesByIndex), idx)
		}
	}

	def := &model.WorkflowDefinition{Stages: make([]*model.StageDefinition, len(indexes))}
	for i, idx := range indexes {
		def.Stages[i] = stagesByIndex[idx]
	}
	p.logger.Debug("parsed workflow definition", "stages", len(def.Stages))
	return def, nil
}

// parseStageID accepts "$<positive int>" stage keys.
func parseStageID(key string) (int, error) {
	if !strings.HasPrefix(key, "$") {
		return 0, model.NewDefinitionError("stage identifier %q must be of the form $<number>", key)
	}
	n, err := strconv.Atoi(key[1:])
	if err != nil || n < 1 {
		return 0, model.NewDefinitionError("stage identifier %q must be a positive integer", key)
	}
	return n, nil
}

// parseStage classifies a stage as Connector (has an Input section) or
// Processor (a bare plugin definition) and parses it accordingly.
func (p *Parser) parseStage(index int, node *yaml.Node) (*model.StageDefinition, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, model.NewDefinitionError("stage $%d does not have any plugins", index)
	}

	if hasKey(node, string(model.SectionInput)) {
		conn, err := p.parseConnector(index, node)
		if err != nil {
			return nil, err
		}
		return &model.StageDefinition{Index: index, Kind: model.StageConnector, Connector: conn}, nil
	}

	proc, err := p.parsePluginInstances(index, model.SectionProcessor, node, true)
	if err != nil {
		return nil, err
	}
	return &model.StageDefinition{Index: index, Kind: model.StageProcessor, Processor: proc}, nil
}

func (p *Parser) parseConnector(index int, node *yaml.Node) (*model.ConnectorDef, error) {
	conn := &model.ConnectorDef{}
	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		switch model.Section(keyNode.Value) {
		case model.SectionInput:
			if conn.Input != nil {
				return nil, model.NewDefinitionError("stage $%d has more than one Input section", index)
			}
			inst, err := p.parsePluginInstances(index, model.SectionInput, valNode, false)
			if err != nil {
				return nil, err
			}
			conn.Input = inst

		case model.SectionFilter:
			if valNode.Kind != yaml.MappingNode {
				return nil, model.NewDefinitionError("stage $%d Filter section must map variables to plugins", index)
			}
			for j := 0; j < len(valNode.Content); j += 2 {
				varNode, pluginNode := valNode.Content[j], valNode.Content[j+1]
				inst, err := p.parsePluginInstances(index, model.SectionFilter, pluginNode, false)
				if err != nil {
					return nil, err
				}
				conn.Filters = append(conn.Filters, model.FilterBinding{
					Variable: varNode.Value,
					Plugins:  inst,
				})
			}

		case model.SectionOutput:
			if conn.Output != nil {
				return nil, model.NewDefinitionError("stage $%d has more than one Output section", index)
			}
			inst, err := p.parsePluginInstances(index, model.SectionOutput, valNode, false)
			if err != nil {
				return nil, err
			}
			conn.Output = inst

		default:
			return nil, model.NewDefinitionError(
				"stage $%d has unknown connector section %q", index, keyNode.Value)
		}
	}
	return conn, nil
}

// parsePluginInstances parses a plugin section: a mapping from class name
// to parameter bindings. Arity (exactly one class) is the validator's rule,
// so every class entry is kept. allowNested permits inline filter specs as
// parameter values (processor stages only).
func (p *Parser) parsePluginInstances(stage int, section model.Section, node *yaml.Node, allowNested bool) (*model.PluginInstances, error) {
	if node.Kind != yaml.MappingNode {
		return nil, model.NewDefinitionError(
			"stage $%d %s section must map a plugin class to its parameters", stage, section)
	}
	inst := &model.PluginInstances{}
	for i := 0; i < len(node.Content); i += 2 {
		classNode, paramsNode := node.Content[i], node.Content[i+1]
		def, err := p.parsePluginDef(stage, section, classNode.Value, paramsNode, allowNested)
		if err != nil {
			return nil, err
		}
		inst.Instances = append(inst.Instances, def)
	}
	return inst, nil
}

func (p *Parser) parsePluginDef(stage int, section model.Section, class string, node *yaml.Node, allowNested bool) (*model.PluginDefinition, error) {
	def := &model.PluginDefinition{ClassName: class}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		// Plugin with no parameters at all.
		return def, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, model.NewDefinitionError(
			"stage $%d plugin %s must map parameter names to bindings", stage, class)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		nameNode, valNode := node.Content[i], node.Content[i+1]
		if seen[nameNode.Value] {
			return nil, &model.PlanError{
				Code:    model.ErrDefinition,
				Stage:   stage,
				Section: section,
				Plugin:  class,
				Param:   nameNode.Value,
				Message: "parameters can only be bound once in a plugin",
			}
		}
		seen[nameNode.Value] = true
		val, err := p.parseBindingValue(stage, class, valNode, allowNested)
		if err != nil {
			return nil, err
		}
		def.Params = append(def.Params, model.Param{Name: nameNode.Value, Value: val})
	}
	return def, nil
}

func (p *Parser) parseBindingValue(stage int, class string, node *yaml.Node, allowNested bool) (model.BindingValue, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return model.NullValue(), nil
		}
		return model.StringValue(node.Value), nil

	case yaml.SequenceNode:
		items := make([]string, len(node.Content))
		for i, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return model.BindingValue{}, model.NewDefinitionError(
					"stage $%d plugin %s: list bindings must contain scalar values", stage, class)
			}
			items[i] = item.Value
		}
		return model.ListValue(items...), nil

	case yaml.MappingNode:
		if !allowNested {
			return model.BindingValue{}, model.NewDefinitionError(
				"stage $%d plugin %s: inline filter specs are only allowed in processor parameters", stage, class)
		}
		if len(node.Content) != 2 {
			return model.BindingValue{}, model.NewDefinitionError(
				"stage $%d plugin %s: an inline filter spec must name exactly one plugin class", stage, class)
		}
		// One level down only: the nested plugin's own params may not nest.
		nested, err := p.parsePluginDef(stage, model.SectionFilter, node.Content[0].Value, node.Content[1], false)
		if err != nil {
			return model.BindingValue{}, err
		}
		return model.NestedValue(nested), nil
	}
	return model.BindingValue{}, model.NewDefinitionError(
		"stage $%d plugin %s: unsupported binding value", stage, class)
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
