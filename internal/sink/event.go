package sink

import (
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Event is one yielded diagnostic event.
type Event struct {
	Seq      int64        `json:"seq"`
	Rule     string       `json:"rule"`
	Name     string       `json:"name"`
	Severity ir.Severity  `json:"severity"`
	Message  string       `json:"message"`
	Key      string       `json:"key"`
	Fields   []EventField `json:"fields"`
}

// EventField is one rendered field of an event, labelled by source key.
type EventField struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

// NewEvent renders an event fact.
func NewEvent(seq int64, rule string, f *fact.Fact) Event {
	typ := f.Type()
	fields := make([]EventField, typ.NumFields())
	for i := range fields {
		fd := typ.Field(i)
		fields[i] = EventField{Name: fd.Name, Source: fd.Source, Value: ir.Format(f.Value(i))}
	}
	return Event{
		Seq:      seq,
		Rule:     rule,
		Name:     f.TypeName(),
		Severity: f.Severity(),
		Message:  f.Message(),
		Key:      f.Key(),
		Fields:   fields,
	}
}
