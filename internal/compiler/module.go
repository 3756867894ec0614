package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/distance/internal/ir"
)

// CompileModule parses a CUE value into a Module.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The expected shape is:
//
//	namespace: "diagnostics.dns"
//	facts: {
//		DnsPacket: {
//			kind:   "fact"
//			filter: "dns"
//			fields: [
//				{name: "DnsId", source: "dns.id", type: "int"},
//			]
//		}
//	}
//
// Fact specs keep their CUE declaration order. CompileModule only checks
// shape; ValidateModule checks meaning.
func CompileModule(v cue.Value) (*ir.Module, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nsVal := v.LookupPath(cue.ParsePath("namespace"))
	if !nsVal.Exists() {
		return nil, &CompileError{
			Field:   "namespace",
			Message: "namespace is required",
			Pos:     v.Pos(),
		}
	}
	ns, err := nsVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	m := &ir.Module{Namespace: ns}

	factsVal := v.LookupPath(cue.ParsePath("facts"))
	if !factsVal.Exists() {
		return nil, &CompileError{
			Field:   "facts",
			Message: "at least one fact spec is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := factsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := parseFactSpec(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		m.Facts = append(m.Facts, spec)
	}

	return m, nil
}

// parseFactSpec extracts one fact declaration.
func parseFactSpec(name string, v cue.Value) (ir.FactSpec, error) {
	spec := ir.FactSpec{Name: name}

	kind, err := requiredString(v, "kind", "facts."+name)
	if err != nil {
		return spec, err
	}
	spec.Kind = ir.Kind(kind)

	if spec.Filter, err = optionalString(v, "filter"); err != nil {
		return spec, err
	}
	if spec.Message, err = optionalString(v, "message"); err != nil {
		return spec, err
	}
	severity, err := optionalString(v, "severity")
	if err != nil {
		return spec, err
	}
	spec.Severity = ir.Severity(severity)

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, nil
	}
	list, err := fieldsVal.List()
	if err != nil {
		return spec, formatCUEError(err)
	}
	for i := 0; list.Next(); i++ {
		field, err := parseFieldSpec(fmt.Sprintf("facts.%s.fields[%d]", name, i), list.Value())
		if err != nil {
			return spec, err
		}
		spec.Fields = append(spec.Fields, field)
	}

	return spec, nil
}

func parseFieldSpec(path string, v cue.Value) (ir.FieldSpec, error) {
	var f ir.FieldSpec
	var err error

	if f.Name, err = requiredString(v, "name", path); err != nil {
		return f, err
	}
	typ, err := requiredString(v, "type", path)
	if err != nil {
		return f, err
	}
	f.Type = ir.FieldType(typ)

	if f.Source, err = optionalString(v, "source"); err != nil {
		return f, err
	}
	if f.Source == "" {
		f.Source = f.Name
	}
	if f.Default, err = optionalString(v, "default"); err != nil {
		return f, err
	}
	if f.Converter, err = optionalString(v, "converter"); err != nil {
		return f, err
	}
	return f, nil
}

func requiredString(v cue.Value, field, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   path + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
