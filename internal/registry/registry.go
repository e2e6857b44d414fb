// Package registry loads and validates the command allow-list: the only
// source of truth for what the Safe Executor is permitted to run. It is
// built once at startup and never mutated afterward.
package registry

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/btwd/btwd/internal/btwderr"
	"gopkg.in/yaml.v3"
)

// Kind is the declared type of a command parameter.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindEnum   Kind = "enum"
	KindString Kind = "string"
)

// Constraint bounds a parameter's legal values. Only the fields relevant
// to Kind are populated.
type Constraint struct {
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
	Values []string `yaml:"values,omitempty"` // enum
	Regex  string   `yaml:"regex,omitempty"`  // string whitelist
}

// Parameter is one named, typed, constrained slot in a command's argv
// template.
type Parameter struct {
	Name       string     `yaml:"name"`
	Kind       Kind       `yaml:"kind"`
	Constraint Constraint `yaml:"constraint"`

	compiledRegex *regexp.Regexp
}

// Descriptor is one allow-listed command.
type Descriptor struct {
	ID           string      `yaml:"id"`
	ArgvTemplate []string    `yaml:"argv_template"`
	Parameters   []Parameter `yaml:"parameters"`
	Dangerous    bool        `yaml:"dangerous"`
	Description  string      `yaml:"description"`
}

type fileFormat struct {
	Commands []Descriptor `yaml:"commands"`
}

// Registry is the immutable, validated allow-list.
type Registry struct {
	byID map[string]*Descriptor
	ids  []string // load order, for List()
}

// Load reads and validates the allow-list file at path. Every failure is
// wrapped as btwderr.ConfigInvalid, which is fatal at startup.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, btwderr.NewField(btwderr.ConfigInvalid, "allow_list_path", err)
	}

	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, btwderr.NewField(btwderr.ConfigInvalid, "allow_list_path", fmt.Errorf("malformed allow-list: %w", err))
	}

	r := &Registry{byID: make(map[string]*Descriptor, len(parsed.Commands))}
	for i := range parsed.Commands {
		d := parsed.Commands[i]
		if err := validateDescriptor(&d); err != nil {
			return nil, btwderr.NewField(btwderr.ConfigInvalid, "commands["+strconv.Itoa(i)+"]", err)
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, btwderr.NewField(btwderr.ConfigInvalid, "commands", fmt.Errorf("duplicate command id %q", d.ID))
		}
		r.byID[d.ID] = &d
		r.ids = append(r.ids, d.ID)
	}

	return r, nil
}

func validateDescriptor(d *Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("command missing id")
	}
	if len(d.ArgvTemplate) == 0 {
		return fmt.Errorf("command %q has an empty argv_template", d.ID)
	}

	slots := extractSlots(d.ArgvTemplate)
	bound := make(map[string]bool, len(d.Parameters))

	for i := range d.Parameters {
		p := &d.Parameters[i]
		if p.Name == "" {
			return fmt.Errorf("command %q has an unnamed parameter", d.ID)
		}
		if !slots[p.Name] {
			return fmt.Errorf("command %q: parameter %q is not referenced by argv_template", d.ID, p.Name)
		}
		switch p.Kind {
		case KindInt, KindFloat:
			if p.Constraint.Min == nil || p.Constraint.Max == nil {
				return fmt.Errorf("command %q: parameter %q of kind %q requires min and max", d.ID, p.Name, p.Kind)
			}
			if *p.Constraint.Min > *p.Constraint.Max {
				return fmt.Errorf("command %q: parameter %q has min > max", d.ID, p.Name)
			}
		case KindEnum:
			if len(p.Constraint.Values) == 0 {
				return fmt.Errorf("command %q: parameter %q of kind enum requires a non-empty value set", d.ID, p.Name)
			}
		case KindString:
			if p.Constraint.Regex == "" {
				return fmt.Errorf("command %q: parameter %q of kind string requires a regex constraint", d.ID, p.Name)
			}
			re, err := regexp.Compile(p.Constraint.Regex)
			if err != nil {
				return fmt.Errorf("command %q: parameter %q has an invalid regex: %w", d.ID, p.Name, err)
			}
			d.Parameters[i].compiledRegex = re
		default:
			return fmt.Errorf("command %q: parameter %q has unknown kind %q", d.ID, p.Name, p.Kind)
		}
		bound[p.Name] = true
	}

	for slot := range slots {
		if !bound[slot] {
			return fmt.Errorf("command %q: argv_template slot %q has no bound parameter", d.ID, slot)
		}
	}

	return nil
}

// slotPattern matches a {name} reference anywhere within an argv_template
// token, not just a token that is nothing but the slot — spec.md §8's own
// worked example embeds one in "{percent}%".
var slotPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

func extractSlots(argvTemplate []string) map[string]bool {
	slots := make(map[string]bool)
	for _, tok := range argvTemplate {
		for _, m := range slotPattern.FindAllStringSubmatch(tok, -1) {
			slots[m[1]] = true
		}
	}
	return slots
}

// List returns every descriptor in load order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Get looks up a descriptor by id.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// TypedBindings maps parameter name to its coerced, validated value.
type TypedBindings map[string]any

// ValidateBindings coerces each raw binding to its parameter's declared
// kind and checks its constraint. Any failure returns an error describing
// which parameter failed and why; the caller (the Intent Router) treats
// this as Unknown.
func (r *Registry) ValidateBindings(id string, raw map[string]any) (TypedBindings, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown command id %q", id)
	}

	typed := make(TypedBindings, len(d.Parameters))
	for _, p := range d.Parameters {
		value, present := raw[p.Name]
		if !present {
			return nil, fmt.Errorf("missing binding for parameter %q", p.Name)
		}
		coerced, err := coerce(p, value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		typed[p.Name] = coerced
	}
	return typed, nil
}

func coerce(p Parameter, value any) (any, error) {
	switch p.Kind {
	case KindInt:
		n, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		i := int64(n)
		if n != float64(i) {
			return nil, fmt.Errorf("value %v is not an integer", value)
		}
		if err := checkRange(float64(i), p.Constraint); err != nil {
			return nil, err
		}
		return i, nil
	case KindFloat:
		n, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		if err := checkRange(n, p.Constraint); err != nil {
			return nil, err
		}
		return n, nil
	case KindEnum:
		s := fmt.Sprintf("%v", value)
		for _, allowed := range p.Constraint.Values {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value %q is not one of %v", s, p.Constraint.Values)
	case KindString:
		s := fmt.Sprintf("%v", value)
		if p.compiledRegex != nil && !p.compiledRegex.MatchString(s) {
			return nil, fmt.Errorf("value %q does not match the allowed pattern", s)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", p.Kind)
	}
}

func checkRange(n float64, c Constraint) error {
	if c.Min != nil && n < *c.Min {
		return fmt.Errorf("value %v is below minimum %v", n, *c.Min)
	}
	if c.Max != nil && n > *c.Max {
		return fmt.Errorf("value %v is above maximum %v", n, *c.Max)
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v has an unsupported type %T", value, value)
	}
}

// BuildArgv substitutes typed bindings into the argv_template, producing
// literal argv tokens. A token may embed a slot alongside literal text
// (e.g. "{percent}%"); every {name} reference within a token is replaced,
// the rest of the token is copied verbatim. No shell, no interpolation,
// no globbing.
func BuildArgv(d *Descriptor, bindings TypedBindings) ([]string, error) {
	argv := make([]string, 0, len(d.ArgvTemplate))
	for _, tok := range d.ArgvTemplate {
		matches := slotPattern.FindAllStringSubmatchIndex(tok, -1)
		if matches == nil {
			argv = append(argv, tok)
			continue
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			b.WriteString(tok[last:m[0]])
			name := tok[m[2]:m[3]]
			value, ok := bindings[name]
			if !ok {
				return nil, fmt.Errorf("no binding for slot %q", name)
			}
			b.WriteString(fmt.Sprintf("%v", value))
			last = m[1]
		}
		b.WriteString(tok[last:])
		argv = append(argv, b.String())
	}
	return argv, nil
}
