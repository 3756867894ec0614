package engine

import (
	"fmt"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
	"github.com/roach88/distance/internal/sink"
)

// firingContext is the rule.Context handed to an action. It is valid only
// for the duration of the action; the engine mutex is held throughout.
type firingContext struct {
	e        *Engine
	act      *activation
	bindings tupleBindings
}

var _ rule.Context = (*firingContext)(nil)

// run executes the action, converting a panic into an error.
func (c *firingContext) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.act.rule.Action(c)
}

func (c *firingContext) Fact(v string) *fact.Fact { return c.bindings.Fact(v) }

func (c *firingContext) Rule() string { return c.act.rule.Name }

func (c *firingContext) New(typ string, values ...ir.Value) (*fact.Fact, error) {
	return c.e.set.Catalog().New(typ, values...)
}

func (c *firingContext) Insert(f *fact.Fact) (bool, error) {
	if err := c.checkProduct(f); err != nil {
		return false, err
	}
	if !c.e.insertLocked(f) {
		c.e.stats.duplicates.Add(1)
		return false, nil
	}
	switch f.Kind() {
	case ir.KindEvent:
		c.e.stats.events.Add(1)
	case ir.KindFact, ir.KindDerived:
		c.e.stats.derived.Add(1)
	}
	return true, nil
}

func (c *firingContext) Yield(f *fact.Fact) (bool, error) {
	switch f.Kind() {
	case ir.KindEvent:
	case ir.KindFact, ir.KindDerived:
		return false, fmt.Errorf("yield %s: only event facts can be yielded", f.TypeName())
	}
	if err := c.checkProduct(f); err != nil {
		return false, err
	}
	if !c.e.insertLocked(f) {
		c.e.stats.duplicates.Add(1)
		return false, nil
	}
	c.e.stats.events.Add(1)
	c.e.stats.countSeverity(f.Severity())

	if err := c.e.sink.Event(sink.NewEvent(c.e.clock.Stamp(), c.Rule(), f)); err != nil {
		c.fail(fmt.Errorf("write event %s: %w", f.TypeName(), err))
		return true, err
	}
	return true, nil
}

func (c *firingContext) checkProduct(f *fact.Fact) error {
	if c.act.rule.ProducesType(f.TypeName()) {
		return nil
	}
	err := &RuntimeError{
		Code:    ErrCodeUndeclaredProduct,
		Message: fmt.Sprintf("rule does not declare %s in Produces", f.TypeName()),
		Rule:    c.Rule(),
		Tuple:   c.act.hash,
	}
	c.fail(err)
	return err
}

func (c *firingContext) fail(err error) {
	if c.e.fatal == nil {
		c.e.fatal = err
	}
}

func (c *firingContext) Info(format string, args ...any) {
	c.log(ir.SeverityInfo, format, args...)
}

func (c *firingContext) Warn(format string, args ...any) {
	c.log(ir.SeverityWarning, format, args...)
}

func (c *firingContext) Error(format string, args ...any) {
	c.log(ir.SeverityError, format, args...)
}

func (c *firingContext) log(level ir.Severity, format string, args ...any) {
	c.e.stats.logs.Add(1)
	err := c.e.sink.Log(sink.Record{
		Seq:     c.e.clock.Stamp(),
		Level:   level,
		Rule:    c.Rule(),
		Message: fmt.Sprintf(format, args...),
	})
	if err != nil {
		c.fail(fmt.Errorf("write log record: %w", err))
	}
}
