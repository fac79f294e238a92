package validation

import (
	"slices"
	"sort"
)

const (
	EventCreate string = "create"
	EventUpdate string = "update"
)

// Rule binds a named validator to a field. Rules belong to entity types,
// never to instances.
type Rule struct {
	Field     string `yaml:"field"`
	Validator string `yaml:"validator"`
	Params    []any  `yaml:"params,omitempty"`
	Message   string `yaml:"message,omitempty"`

	// On limits the rule to the listed events. An empty list applies it always.
	On []string `yaml:"on,omitempty"`
	// SkipEmpty lets absent or empty values pass without running the validator.
	SkipEmpty bool `yaml:"skipEmpty,omitempty"`
}

func (r Rule) appliesTo(event string) bool {
	return len(r.On) == 0 || slices.Contains(r.On, event)
}

type RuleSet []Rule

// Options tags a validation run. A non-nil Rules replaces the type's declared rule set.
type Options struct {
	Event string
	Model string
	Rules RuleSet
}

// Merge returns opts with any unset member taken from defaults
func (opts Options) Merge(defaults Options) Options {
	if opts.Event == "" {
		opts.Event = defaults.Event
	}
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Rules == nil {
		opts.Rules = defaults.Rules
	}
	return opts
}

// Errors maps a field name to its messages in rule declaration order
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// First returns the first message of the alphabetically first failing field
func (e Errors) First() string {
	for _, f := range e.Fields() {
		if len(e[f]) > 0 {
			return e[f][0]
		}
	}
	return ""
}
