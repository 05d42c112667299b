package model

import (
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

//go:embed scripts.cue
var scriptsCueSource []byte

var (
	cueCtx        = cuecontext.New()
	scriptsSchema cue.Value
)

func init() {
	scriptsSchema = compileSchema(scriptsCueSource, "#Scripts")
}

func compileSchema(src []byte, def string) cue.Value {
	if len(src) == 0 {
		panic("schema source is empty")
	}
	compiled := cueCtx.CompileBytes(src)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	schema := compiled.LookupPath(cue.ParsePath(def))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
	return schema
}

// ScriptSet is an ordered collection of scripts to execute.
type ScriptSet struct {
	Version int          `json:"version" yaml:"version"`
	Scripts []ScriptSpec `json:"scripts" yaml:"scripts"`
}

// ScriptSpec describes one external script: the command to spawn, default
// arguments prepended to every run and the ordered argument combinations.
// Immutable once loaded.
type ScriptSpec struct {
	ID           string            `json:"id" yaml:"id"`
	Command      string            `json:"command" yaml:"command"`
	DefaultArgs  []string          `json:"default_args,omitempty" yaml:"default_args,omitempty"`
	Combinations [][]string        `json:"combinations" yaml:"combinations"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Argv returns the full argument vector for one combination, default
// arguments first. The result is a fresh slice, combinations stay untouched.
func (s ScriptSpec) Argv(combination []string) []string {
	argv := make([]string, 0, len(s.DefaultArgs)+len(combination))
	argv = append(argv, s.DefaultArgs...)
	argv = append(argv, combination...)
	return argv
}

// TotalCombinations returns the number of rows a full batch will produce.
func (s *ScriptSet) TotalCombinations() int {
	var n int
	for _, script := range s.Scripts {
		n += len(script.Combinations)
	}
	return n
}

// LoadScripts validates YAML or JSON from r against the CUE schema and
// decodes it to a ScriptSet.
func LoadScripts(r io.Reader) (*ScriptSet, error) {
	unified, err := unify(scriptsSchema, "scripts.yaml", r)
	if err != nil {
		return nil, err
	}

	var out ScriptSet
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(out.Scripts))
	for i, script := range out.Scripts {
		if _, ok := seen[script.ID]; ok {
			return nil, &ConfigError{
				Source: "scripts",
				Path:   fmt.Sprintf("scripts[%d].id", i),
				Err:    fmt.Errorf("%w: %q", ErrDuplicateScript, script.ID),
			}
		}
		seen[script.ID] = struct{}{}
	}

	return &out, nil
}

func unify(schema cue.Value, filename string, r io.Reader) (cue.Value, error) {
	file, err := yaml.Extract(filename, r)
	if err != nil {
		return cue.Value{}, err
	}
	value := cueCtx.BuildFile(file)

	unified := schema.Unify(value)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}
