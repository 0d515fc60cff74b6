// Package classify flags plugin arguments that need special handling at
// dispatch time: local files that must be relocated to the execution
// target, and sensitive values that are supplied out-of-band.
package classify

import (
	"os"

	"github.com/me/pipeweave/pkg/model"
)

// IsLocalFile reports whether a string value references a file on the
// planning host. The identification is deliberately naive: the value must
// look path-like (contain '.' or '/') and a regular file must exist at
// that path.
func IsLocalFile(val string) bool {
	if !looksPathLike(val) {
		return false
	}
	info, err := os.Stat(val)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func looksPathLike(val string) bool {
	for i := 0; i < len(val); i++ {
		if val[i] == '.' || val[i] == '/' {
			return true
		}
	}
	return false
}

// LocalFileArgs returns the parameters of a plugin instance whose string
// values reference existing local files, as an arg-name to path mapping.
// The external translator uses this to arrange relocation.
func LocalFileArgs(p *model.PluginDefinition) map[string]string {
	var args map[string]string
	for _, param := range p.Params {
		if param.Value.Kind != model.BindingString {
			continue
		}
		if IsLocalFile(param.Value.Str) {
			if args == nil {
				args = make(map[string]string)
			}
			args[param.Name] = param.Value.Str
		}
	}
	return args
}

// SensitiveArgs returns the parameters of a plugin instance bound to null
// or empty values, in declared order. Their values are collected at
// dispatch time and never persisted in the plan.
func SensitiveArgs(p *model.PluginDefinition) []string {
	var args []string
	for _, param := range p.Params {
		if param.Value.IsEmpty() {
			args = append(args, param.Name)
		}
	}
	return args
}
