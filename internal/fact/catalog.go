package fact

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/distance/internal/ir"
)

// Catalog is the immutable set of compiled types for a run.
type Catalog struct {
	modules []ir.Module
	types   []*Type
	byName  map[string]*Type
	hash    string
}

// NewCatalog assembles compiled types. Type names must be unique across
// all modules.
func NewCatalog(modules []ir.Module, types []*Type) (*Catalog, error) {
	c := &Catalog{
		modules: append([]ir.Module(nil), modules...),
		types:   append([]*Type(nil), types...),
		byName:  make(map[string]*Type, len(types)),
	}
	for _, t := range types {
		if _, dup := c.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate fact type %q", t.Name())
		}
		c.byName[t.Name()] = t
	}

	serialized, err := json.Marshal(c.modules)
	if err != nil {
		return nil, fmt.Errorf("hash catalog: %w", err)
	}
	c.hash = ir.SchemaHash(serialized)
	return c, nil
}

// Type returns the named type.
func (c *Catalog) Type(name string) (*Type, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Types returns every type in declaration order.
func (c *Catalog) Types() []*Type {
	return append([]*Type(nil), c.types...)
}

// Observed returns the Fact-kind types, the ones fed by the decoder.
func (c *Catalog) Observed() []*Type {
	var out []*Type
	for _, t := range c.types {
		switch t.Kind() {
		case ir.KindFact:
			out = append(out, t)
		case ir.KindDerived, ir.KindEvent:
		}
	}
	return out
}

// Modules returns the source modules.
func (c *Catalog) Modules() []ir.Module {
	return append([]ir.Module(nil), c.modules...)
}

// Hash identifies the schema the catalog was compiled from.
func (c *Catalog) Hash() string { return c.hash }

// New builds a fact of the named type.
func (c *Catalog) New(name string, values ...ir.Value) (*Fact, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown fact type %q", name)
	}
	return New(t, values...)
}
