package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Compile validates modules as one schema and builds the catalog.
//
// The compile is all or nothing: any validation problem returns a
// *CompileError listing every problem and no catalog.
func Compile(mods ...*ir.Module) (*fact.Catalog, error) {
	if len(mods) == 0 {
		return nil, &CompileError{Field: "module", Message: "at least one module is required"}
	}
	if problems := ValidateModule(mods...); len(problems) > 0 {
		return nil, newProblemsError(problems)
	}

	modules := make([]ir.Module, 0, len(mods))
	var types []*fact.Type
	for _, m := range mods {
		modules = append(modules, *m)
		for _, spec := range m.Facts {
			t, err := fact.NewType(m.Namespace, spec)
			if err != nil {
				return nil, &CompileError{Field: spec.Name, Message: err.Error()}
			}
			types = append(types, t)
		}
	}

	catalog, err := fact.NewCatalog(modules, types)
	if err != nil {
		return nil, &CompileError{Field: "catalog", Message: err.Error()}
	}
	return catalog, nil
}

// LoadSource compiles CUE source text into a Module. The filename is used
// in error positions only.
func LoadSource(filename, src string) (*ir.Module, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	m, err := CompileModule(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}
