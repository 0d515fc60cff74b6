// Package binding parses the textual grammar of parameter bindings:
// %{name} variable references, $<int> stage references, and dir(...)
// nesting modifiers. It is the shared grammar engine used by validation,
// graph construction, and expansion; the grammar must stay wire-compatible
// with existing pipeline definitions.
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/me/pipeweave/pkg/model"
)

var (
	varRefRe   = regexp.MustCompile(`%\{(.+?)\}`)
	stageRefRe = regexp.MustCompile(`\$([0-9]+)`)
)

// FindVariableRefs returns every %{name} reference in value, in order of
// appearance. Repeated mentions are returned repeatedly; the validator
// treats a second mention of the same variable as reuse.
func FindVariableRefs(value string) []string {
	matches := varRefRe.FindAllStringSubmatch(value, -1)
	if len(matches) == 0 {
		return nil
	}
	vars := make([]string, len(matches))
	for i, m := range matches {
		vars[i] = m[1]
	}
	return vars
}

// FindStageRefs returns every $<int> reference in value, in order of
// appearance. Callers enforce the at-most-one rule.
func FindStageRefs(value string) []int {
	matches := stageRefRe.FindAllStringSubmatch(value, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]int, len(matches))
	for i, m := range matches {
		n, _ := strconv.Atoi(m[1])
		refs[i] = n
	}
	return refs
}

// HasDirModifier reports whether value wraps its content in at least one
// dir(...) layer.
func HasDirModifier(value string) bool {
	return strings.HasPrefix(value, "dir(")
}

// ValidateStageRefShape verifies that a value containing a stage reference
// is exactly that reference, optionally wrapped in a well-formed chain of
// dir(...) modifiers. Values with no stage reference pass trivially. Any
// deviation (a literal prefix or suffix, more than one reference,
// unmatched parentheses) is a reference error.
func ValidateStageRefShape(value string) error {
	refs := FindStageRefs(value)
	if len(refs) == 0 {
		return nil
	}
	if len(refs) > 1 {
		return model.NewReferenceError("cannot reference more than one stage in a binding: %q", value)
	}
	kernel := fmt.Sprintf("$%d", refs[0])
	if !validDirChain(value, kernel) {
		return model.NewReferenceError("stage reference must have zero or more dir modifiers applied to it: %q", value)
	}
	return nil
}

// validDirChain strips one dir(...) layer at a time and checks the
// innermost residue equals the bare stage reference.
func validDirChain(value, kernel string) bool {
	if value == kernel {
		return true
	}
	if strings.HasPrefix(value, "dir(") && strings.HasSuffix(value, ")") {
		return validDirChain(value[len("dir(") : len(value)-1], kernel)
	}
	return false
}

// DirModifierDepth returns how many well-formed dir(...) layers wrap the
// given stage reference kernel. Returns 0 when value is the bare kernel.
// Assumes the value already passed ValidateStageRefShape.
func DirModifierDepth(value string) int {
	depth := 0
	for strings.HasPrefix(value, "dir(") && strings.HasSuffix(value, ")") {
		value = value[len("dir(") : len(value)-1]
		depth++
	}
	return depth
}

// CollectVarDependencies scans every string parameter of a plugin instance
// and returns the distinct variables referenced, in first-mention order.
func CollectVarDependencies(p *model.PluginDefinition) []string {
	var vars []string
	seen := make(map[string]bool)
	for _, param := range p.Params {
		if param.Value.Kind != model.BindingString {
			continue
		}
		for _, v := range FindVariableRefs(param.Value.Str) {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// CollectStageRefs scans every string parameter of a plugin instance and
// returns the distinct stages referenced, in first-mention order. The
// second return value is the subset wrapped in at least one dir() modifier.
func CollectStageRefs(p *model.PluginDefinition) (refs []int, dirModified []int) {
	seen := make(map[int]bool)
	seenDir := make(map[int]bool)
	for _, param := range p.Params {
		if param.Value.Kind != model.BindingString {
			continue
		}
		val := param.Value.Str
		for _, r := range FindStageRefs(val) {
			if !seen[r] {
				seen[r] = true
				refs = append(refs, r)
			}
			if HasDirModifier(val) && !seenDir[r] {
				seenDir[r] = true
				dirModified = append(dirModified, r)
			}
		}
	}
	return refs, dirModified
}

// SubstituteVars replaces every %{name} reference in value with the bound
// value from bindings. References with no binding are left untouched.
func SubstituteVars(value string, bindings map[string]string) string {
	return varRefRe.ReplaceAllStringFunc(value, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if bound, ok := bindings[name]; ok {
			return bound
		}
		return ref
	})
}
