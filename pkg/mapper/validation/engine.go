package validation

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
)

// Context is handed to every validator invocation
type Context struct {
	Field   string
	Data    map[string]any
	Options Options
	Now     time.Time
}

type Func func(value any, params []any, ctx Context) bool

type Checker interface {
	Check(data map[string]any, rules RuleSet, opts Options) Errors
}

type Engine struct {
	mu         sync.RWMutex
	validators map[string]Func
	now        func() time.Time
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithValidator(name string, fn Func) EngineOption {
	return func(e *Engine) {
		e.validators[name] = fn
	}
}

func NewEngine(options ...EngineOption) *Engine {
	e := &Engine{
		validators: builtins(),
		now:        time.Now,
	}

	for _, option := range options {
		option(e)
	}

	return e
}

func (e *Engine) Add(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.validators[name] = fn
}

func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.validators[name]
	return ok
}

// Check runs rules in declaration order against the full data snapshot
func (e *Engine) Check(data map[string]any, rules RuleSet, opts Options) Errors {
	errs := Errors{}
	now := e.now()

	e.mu.RLock()
	validators := maps.Clone(e.validators)
	e.mu.RUnlock()

	for _, rule := range rules {
		if !rule.appliesTo(opts.Event) {
			continue
		}

		value := data[rule.Field]

		if rule.SkipEmpty && isEmpty(value) {
			continue
		}

		fn, ok := validators[rule.Validator]
		if !ok {
			errs.Add(rule.Field, fmt.Sprintf("unknown validator %q", rule.Validator))
			continue
		}

		ctx := Context{
			Field:   rule.Field,
			Data:    data,
			Options: opts,
			Now:     now,
		}

		if !fn(value, rule.Params, ctx) {
			errs.Add(rule.Field, render(rule))
		}
	}

	return errs
}

func render(rule Rule) string {
	msg := rule.Message
	if msg == "" {
		msg = "{:field} is invalid"
	}

	msg = strings.ReplaceAll(msg, "{:field}", rule.Field)
	for i, p := range rule.Params {
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{:%d}", i), fmt.Sprint(p))
	}

	return msg
}
