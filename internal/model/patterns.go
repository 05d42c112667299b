package model

import (
	"fmt"
	"io"
	"regexp"

	"cuelang.org/go/cue"

	_ "embed"
)

//go:embed patterns.cue
var patternsCueSource []byte

var patternsSchema cue.Value

func init() {
	patternsSchema = compileSchema(patternsCueSource, "#Patterns")
}

// Kind tags a pattern rule as extracting result fields or flagging an error.
type Kind string

const (
	KindResult Kind = "result"
	KindError  Kind = "error"
)

// PatternRule is a named regular expression. A result rule populates its
// declared fields from capture groups, an error rule only flags a match.
// Immutable once loaded.
type PatternRule struct {
	Name   string   `json:"name" yaml:"name"`
	Kind   Kind     `json:"kind" yaml:"kind"`
	Regex  string   `json:"regex" yaml:"regex"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`

	re     *regexp.Regexp
	groups []int // groups[i] is the capture group index of Fields[i]
}

// FirstMatch applies the rule to text and returns the captured field values
// of the leftmost match. ok is false when the regex does not match, which is
// a normal outcome, not a failure.
func (r PatternRule) FirstMatch(text string) (map[string]string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, len(r.Fields))
	for i, name := range r.Fields {
		out[name] = m[r.groups[i]]
	}
	return out, true
}

// Matches reports whether the rule matches text at all.
func (r PatternRule) Matches(text string) bool {
	return r.re.MatchString(text)
}

// PatternSet holds all loaded pattern rules in declaration order.
type PatternSet struct {
	Version int           `json:"version" yaml:"version"`
	Rules   []PatternRule `json:"patterns" yaml:"patterns"`
}

// ResultRules returns the result kind rules in declaration order.
func (p *PatternSet) ResultRules() []PatternRule {
	return p.rulesOf(KindResult)
}

// ErrorRules returns the error kind rules in declaration order.
func (p *PatternSet) ErrorRules() []PatternRule {
	return p.rulesOf(KindError)
}

func (p *PatternSet) rulesOf(kind Kind) []PatternRule {
	var out []PatternRule
	for _, rule := range p.Rules {
		if rule.Kind == kind {
			out = append(out, rule)
		}
	}
	return out
}

// FieldNames returns every field name declared by result rules, in
// declaration order, without duplicates.
func (p *PatternSet) FieldNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, rule := range p.Rules {
		if rule.Kind != KindResult {
			continue
		}
		for _, name := range rule.Fields {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// LoadPatterns validates YAML or JSON from r against the CUE schema, decodes
// it, compiles every regex and resolves declared field names against capture
// groups. A field name matching a named group (?P<name>...) binds to that
// group, otherwise fields bind positionally to groups 1..n.
func LoadPatterns(r io.Reader) (*PatternSet, error) {
	unified, err := unify(patternsSchema, "patterns.yaml", r)
	if err != nil {
		return nil, err
	}

	var out PatternSet
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	for i := range out.Rules {
		rule := &out.Rules[i]
		re, err := regexp.Compile(rule.Regex)
		if err != nil {
			return nil, &ConfigError{
				Source: "patterns",
				Path:   fmt.Sprintf("patterns[%d].regex", i),
				Err:    err,
			}
		}
		rule.re = re

		if rule.Kind == KindResult && len(rule.Fields) == 0 {
			return nil, &ConfigError{
				Source: "patterns",
				Path:   fmt.Sprintf("patterns[%d].fields", i),
				Err:    fmt.Errorf("%w: %q", ErrNoFields, rule.Name),
			}
		}

		named := make(map[string]int)
		for gi, name := range re.SubexpNames() {
			if name != "" {
				named[name] = gi
			}
		}
		rule.groups = make([]int, len(rule.Fields))
		for fi, field := range rule.Fields {
			if gi, ok := named[field]; ok {
				rule.groups[fi] = gi
				continue
			}
			if fi+1 > re.NumSubexp() {
				return nil, &ConfigError{
					Source: "patterns",
					Path:   fmt.Sprintf("patterns[%d].fields[%d]", i, fi),
					Err:    fmt.Errorf("%w: %q", ErrFieldMismatch, field),
				}
			}
			rule.groups[fi] = fi + 1
		}
	}

	return &out, nil
}
