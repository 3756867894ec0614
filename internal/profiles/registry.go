// Package profiles holds the built-in diagnostic profiles and the registry
// that compiles a selection of them into one rule set.
//
// A profile pairs a CUE schema with the rules written against it. Profiles
// are registered explicitly; nothing is discovered at run time.
package profiles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/distance/internal/compiler"
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

// Profile is one diagnostic domain.
type Profile struct {
	Name        string
	Description string

	// Schema is CUE source declaring the profile's fact types.
	Schema string

	// Rules returns fresh rule descriptors over the schema.
	Rules func() []rule.Rule
}

// Module compiles the profile schema.
func (p Profile) Module() (*ir.Module, error) {
	return compiler.LoadSource(p.Name+".cue", p.Schema)
}

// Registry maps profile names to profiles.
type Registry struct {
	byName map[string]Profile
}

// NewRegistry registers ps. Names must be unique and non-empty.
func NewRegistry(ps ...Profile) (*Registry, error) {
	r := &Registry{byName: make(map[string]Profile, len(ps))}
	for _, p := range ps {
		if p.Name == "" {
			return nil, fmt.Errorf("profile without a name")
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("profile %q registered twice", p.Name)
		}
		r.byName[p.Name] = p
	}
	return r, nil
}

// Builtin returns the registry of shipped profiles.
func Builtin() *Registry {
	r, err := NewRegistry(DNS(), LAN())
	if err != nil {
		panic(err)
	}
	return r
}

// Names lists registered profiles in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Select resolves names in order, dropping repeats.
func (r *Registry) Select(names ...string) ([]Profile, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no profile selected (available: %s)", strings.Join(r.Names(), ", "))
	}
	seen := make(map[string]bool, len(names))
	var out []Profile
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		p, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(r.Names(), ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

// Modules compiles the schemas of the named profiles.
func (r *Registry) Modules(names ...string) ([]*ir.Module, error) {
	ps, err := r.Select(names...)
	if err != nil {
		return nil, err
	}
	mods := make([]*ir.Module, 0, len(ps))
	for _, p := range ps {
		m, err := p.Module()
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// Catalog compiles the named profiles' schemas into one catalog.
func (r *Registry) Catalog(names ...string) (*fact.Catalog, error) {
	mods, err := r.Modules(names...)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(mods...)
}

// Load compiles the named profiles into one rule set.
func (r *Registry) Load(names ...string) (*rule.Set, error) {
	cat, err := r.Catalog(names...)
	if err != nil {
		return nil, err
	}
	ps, _ := r.Select(names...)
	var rules []rule.Rule
	for _, p := range ps {
		if p.Rules != nil {
			rules = append(rules, p.Rules()...)
		}
	}
	return compiler.CompileRules(cat, rules)
}
