// Package validate checks a finished archive against the SIARD 2.1 format
// requirements. Checks are components linked into a chain; each factory names
// its successor and exactly one factory starts the chain.
package validate

import (
	"context"
	"sort"
	"strings"

	"db-siard/internal/failure"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusNotRun  Status = "not-run"
	StatusError   Status = "error"
)

// Diagnostic is one violated requirement.
type Diagnostic struct {
	Requirement string `json:"requirement" yaml:"requirement"`
	Message     string `json:"message" yaml:"message"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Outcome is what a component concludes. A fatal failed outcome stops the
// chain.
type Outcome struct {
	Passed      bool
	Fatal       bool
	Diagnostics []Diagnostic
}

func (o *Outcome) fail(req, path, format string, args ...any) {
	o.Passed = false
	o.Diagnostics = append(o.Diagnostics, diag(req, path, format, args...))
}

// Component is one check. Setup runs before Validate; Clean always runs after
// a successful Setup.
type Component interface {
	Setup(env *Env) error
	Validate(ctx context.Context) (Outcome, error)
	Clean()
}

// Factory builds a component and places it in the chain.
type Factory struct {
	Name  string
	Next  string // empty for the last component
	First bool
	// Enabled decides per run whether the component executes. Nil means always.
	Enabled func(opts Options) bool
	Build   func(opts Options) Component
}

// Registry holds the known factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f. Names are unique.
func (r *Registry) Register(f Factory) error {
	name := strings.TrimSpace(f.Name)
	if name == "" || f.Build == nil {
		return failure.Configuration("validator factory needs a name and a builder")
	}
	if _, dup := r.factories[name]; dup {
		return failure.Configuration("validator %s registered twice", name)
	}
	r.factories[name] = f
	return nil
}

// Names lists registered components alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain orders the factories by following Next from the first one. A missing
// or duplicate start, an unknown successor, a cycle or an unreachable factory
// is a configuration error.
func (r *Registry) Chain() ([]Factory, error) {
	var first []string
	for name, f := range r.factories {
		if f.First {
			first = append(first, name)
		}
	}
	sort.Strings(first)
	switch len(first) {
	case 0:
		return nil, failure.Configuration("no validator is marked first")
	case 1:
	default:
		return nil, failure.Configuration("several validators are marked first: %s", strings.Join(first, ", "))
	}

	var chain []Factory
	seen := make(map[string]bool)
	for name := first[0]; name != ""; {
		f, ok := r.factories[name]
		if !ok {
			return nil, failure.Configuration("validator %s follows %s but is not registered", name, chain[len(chain)-1].Name)
		}
		if seen[name] {
			return nil, failure.Configuration("validator chain loops back to %s", name)
		}
		seen[name] = true
		chain = append(chain, f)
		name = f.Next
	}
	if len(chain) != len(r.factories) {
		var orphans []string
		for name := range r.factories {
			if !seen[name] {
				orphans = append(orphans, name)
			}
		}
		sort.Strings(orphans)
		return nil, failure.Configuration("validators not reachable from %s: %s", first[0], strings.Join(orphans, ", "))
	}
	return chain, nil
}
