package binding

import (
	"reflect"
	"testing"

	"github.com/me/pipeweave/pkg/model"
)

func TestFindVariableRefs(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"none", "plain text", nil},
		{"single", "data/%{region}/file.txt", []string{"region"}},
		{"multiple", "%{start}-%{end}", []string{"start", "end"}},
		{"repeated", "%{a} and %{a}", []string{"a", "a"}},
		{"adjacent braces", "%{a}%{b}", []string{"a", "b"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindVariableRefs(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindVariableRefs(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFindStageRefs(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []int
	}{
		{"none", "no refs here", nil},
		{"bare", "$3", []int{3}},
		{"wrapped", "dir(dir($12))", []int{12}},
		{"two refs", "$1$2", []int{1, 2}},
		{"embedded", "foo$7bar", []int{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindStageRefs(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindStageRefs(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValidateStageRefShape(t *testing.T) {
	valid := []string{
		"no stage refs at all",
		"$1",
		"$42",
		"dir($1)",
		"dir(dir($1))",
		"dir(dir(dir($9)))",
		"",
	}
	for _, v := range valid {
		if err := ValidateStageRefShape(v); err != nil {
			t.Errorf("ValidateStageRefShape(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{
		"foo$1",
		"$1foo",
		"$1$2",
		"dir($1",
		"dir($1))",
		"dir(($1))",
		"dir($1)x",
		"xdir($1)",
		"dir($1)dir($1)",
	}
	for _, v := range invalid {
		err := ValidateStageRefShape(v)
		if err == nil {
			t.Errorf("ValidateStageRefShape(%q) = nil, want REFERENCE_ERROR", v)
			continue
		}
		if !model.IsCode(err, model.ErrReference) {
			t.Errorf("ValidateStageRefShape(%q) code = %v, want %v", v, model.CodeOf(err), model.ErrReference)
		}
	}
}

func TestDirModifierDepth(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"$1", 0},
		{"dir($1)", 1},
		{"dir(dir($1))", 2},
	}
	for _, tt := range tests {
		if got := DirModifierDepth(tt.value); got != tt.want {
			t.Errorf("DirModifierDepth(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestCollectVarDependencies(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "FTPDownloader",
		Params: []model.Param{
			{Name: "url", Value: model.StringValue("ftp://host/%{region}/%{date}")},
			{Name: "region_again", Value: model.StringValue("%{region}")},
			{Name: "mirrors", Value: model.ListValue("a", "b")},
		},
	}
	got := CollectVarDependencies(plugin)
	want := []string{"region", "date"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectVarDependencies = %v, want %v", got, want)
	}
}

func TestCollectStageRefs(t *testing.T) {
	plugin := &model.PluginDefinition{
		ClassName: "ShapefileMask",
		Params: []model.Param{
			{Name: "input", Value: model.StringValue("$1")},
			{Name: "workdir", Value: model.StringValue("dir($2)")},
		},
	}
	refs, dirMod := CollectStageRefs(plugin)
	if !reflect.DeepEqual(refs, []int{1, 2}) {
		t.Errorf("refs = %v, want [1 2]", refs)
	}
	if !reflect.DeepEqual(dirMod, []int{2}) {
		t.Errorf("dirModified = %v, want [2]", dirMod)
	}
}

func TestSubstituteVars(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		bindings map[string]string
		want     string
	}{
		{"simple", "data/%{r}/f.txt", map[string]string{"r": "west"}, "data/west/f.txt"},
		{"two vars", "%{a}-%{b}", map[string]string{"a": "1", "b": "2"}, "1-2"},
		{"unbound left alone", "%{a}-%{b}", map[string]string{"a": "1"}, "1-%{b}"},
		{"no refs", "plain", nil, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubstituteVars(tt.value, tt.bindings); got != tt.want {
				t.Errorf("SubstituteVars = %q, want %q", got, tt.want)
			}
		})
	}
}
