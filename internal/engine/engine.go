package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/memory"
	"github.com/roach88/distance/internal/rule"
	"github.com/roach88/distance/internal/sink"
)

// Phase is the engine lifecycle state.
type Phase int32

const (
	PhaseIngesting Phase = iota
	PhaseIdle
	PhaseFiring
	PhaseDrained
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIngesting:
		return "ingesting"
	case PhaseIdle:
		return "idle"
	case PhaseFiring:
		return "firing"
	case PhaseDrained:
		return "drained"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Engine matches facts against a compiled rule set and fires actions to a
// fixpoint.
type Engine struct {
	mu sync.Mutex

	set     *rule.Set
	mem     *memory.Store
	net     *network
	agenda  *agenda
	ledger  *firedLedger
	clock   *Clock
	quota   *QuotaEnforcer
	sink    sink.Sink
	firings sink.FiringRecorder // nil when the sink does not archive firings
	logger  *slog.Logger

	phase    atomic.Int32
	abortErr error

	// fatal is set by a firing context when an action breaks an engine
	// guarantee. It is checked after the action returns, whatever the action
	// did with the error it was given.
	fatal error

	stats counters
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the diagnostic sink. The default discards everything.
func WithSink(s sink.Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithMaxFirings aborts evaluation after n firings. Zero, the default,
// means unlimited.
func WithMaxFirings(n int) Option {
	return func(e *Engine) {
		e.quota = NewQuotaEnforcer(n)
	}
}

// WithLogger sets the operational logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the logical clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New builds the matching network for set. The engine starts Ingesting.
func New(set *rule.Set, opts ...Option) *Engine {
	e := &Engine{
		set:    set,
		mem:    memory.New(),
		agenda: newAgenda(),
		ledger: newFiredLedger(),
		clock:  NewClock(),
		quota:  NewQuotaEnforcer(0),
		sink:   sink.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if fr, ok := e.sink.(sink.FiringRecorder); ok {
		e.firings = fr
	}

	e.net = newNetwork(set, e.clock)
	e.net.onActivate = e.activate
	e.net.onDeactivate = e.deactivate
	e.phase.Store(int32(PhaseIngesting))
	return e
}

// State returns the current phase. Safe to call from any goroutine.
func (e *Engine) State() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	old := Phase(e.phase.Swap(int32(p)))
	if old != p {
		e.logger.Debug("engine phase", "from", old, "to", p)
	}
}

// Rules returns the rule set the engine was built from.
func (e *Engine) Rules() *rule.Set { return e.set }

// Insert adds a fact to working memory and propagates it. It reports
// false, with no effect, when an equal fact is already present.
func (e *Engine) Insert(f *fact.Fact) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMutable("insert"); err != nil {
		return false, err
	}
	if !e.insertLocked(f) {
		e.stats.duplicates.Add(1)
		return false, nil
	}
	e.stats.inserted.Add(1)
	return true, nil
}

// Retract removes the fact equal to f and everything derived from the
// tuples it took part in. Activations that already fired stay fired.
func (e *Engine) Retract(f *fact.Fact) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMutable("retract"); err != nil {
		return false, err
	}
	if !e.mem.Retract(f) {
		return false, nil
	}
	e.net.retract(f)
	e.stats.retracted.Add(1)
	if e.State() == PhaseDrained && e.agenda.len() > 0 {
		e.setPhase(PhaseIdle)
	}
	return true, nil
}

func (e *Engine) checkMutable(op string) error {
	switch p := e.State(); p {
	case PhaseIngesting, PhaseIdle, PhaseDrained:
		return nil
	case PhaseAborted:
		return e.abortedError(op)
	default:
		return newPhaseError(op, p)
	}
}

func (e *Engine) abortedError(op string) error {
	return &RuntimeError{
		Code:    ErrCodePhase,
		Message: fmt.Sprintf("%s not allowed: engine aborted", op),
		Err:     e.abortErr,
	}
}

// insertLocked stores f and propagates it. Caller holds e.mu.
func (e *Engine) insertLocked(f *fact.Fact) bool {
	if !e.mem.Insert(f) {
		return false
	}
	e.net.insert(f)
	if e.State() == PhaseDrained && e.agenda.len() > 0 {
		e.setPhase(PhaseIdle)
	}
	return true
}

// CloseIngestion ends the ingestion phase and opens negation gates.
// Activations gated by a negation appear on the agenda now.
func (e *Engine) CloseIngestion() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p := e.State(); p != PhaseIngesting {
		return newPhaseError("close ingestion", p)
	}
	e.net.openGate()
	e.setPhase(PhaseIdle)
	e.logger.Debug("ingestion closed", "facts", e.mem.Len(), "activations", e.agenda.len())
	return nil
}

// Fire executes activations until the agenda is empty and returns the
// number fired.
//
// ctx is checked between firings. Cancellation, a failed action, an
// exceeded quota, or an invariant violation abort the engine and return
// the cause.
func (e *Engine) Fire(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch p := e.State(); p {
	case PhaseIdle, PhaseDrained:
	case PhaseAborted:
		return 0, e.abortedError("fire")
	default:
		return 0, newPhaseError("fire", p)
	}

	e.setPhase(PhaseFiring)
	fired := 0
	for {
		if err := ctx.Err(); err != nil {
			return fired, e.abort(fmt.Errorf("firing interrupted: %w", err))
		}

		act, ok := e.agenda.pop()
		if !ok {
			break
		}
		if err := e.fire(act); err != nil {
			return fired, e.abort(err)
		}
		fired++
	}

	e.setPhase(PhaseDrained)
	e.logger.Debug("agenda drained", "fired", fired, "facts", e.mem.Len())
	return fired, nil
}

func (e *Engine) fire(act *activation) error {
	name := act.rule.Name
	if e.ledger.hasFired(name, act.hash) {
		return NewInvariantError(name, act.hash, "activation fired twice for the same tuple")
	}
	if err := e.quota.Check(name); err != nil {
		return err
	}
	e.ledger.record(name, act.hash)
	e.stats.firings.Add(1)

	if e.firings != nil {
		if err := e.firings.Fired(sink.Firing{
			Seq:       e.clock.Stamp(),
			Rule:      name,
			TupleHash: act.hash,
			Keys:      act.tok.keys(),
		}); err != nil {
			return fmt.Errorf("record firing of %s: %w", name, err)
		}
	}

	ctx := &firingContext{e: e, act: act, bindings: tupleBindings{rule: act.rule, tok: act.tok}}
	err := ctx.run()
	if e.fatal != nil {
		return e.fatal
	}
	if err != nil {
		return &RuntimeError{
			Code:    ErrCodeActionFailed,
			Message: "action failed",
			Rule:    name,
			Tuple:   act.hash,
			Err:     err,
		}
	}
	return nil
}

func (e *Engine) abort(cause error) error {
	e.abortErr = cause
	e.setPhase(PhaseAborted)
	e.logger.Warn("engine aborted", "error", cause)
	return cause
}

// activate is called by the network when a tuple completes a rule.
func (e *Engine) activate(c *chain, t *token) {
	hash := ir.TupleHash(c.rule.Name, t.keys())
	e.stats.activations.Add(1)
	if e.ledger.hasFired(c.rule.Name, hash) {
		e.stats.suppressed.Add(1)
		return
	}
	e.agenda.push(&activation{rule: c.rule, tok: t, hash: hash})
}

// deactivate is called by the network when a complete tuple is destroyed.
func (e *Engine) deactivate(_ *chain, t *token) {
	if e.agenda.remove(t) {
		e.stats.cancelled.Add(1)
	}
}

// Facts returns a snapshot of working memory for one type.
func (e *Engine) Facts(typeName string) []*fact.Fact {
	return e.mem.All(typeName)
}

// Memory returns working memory. Callers must not mutate it.
func (e *Engine) Memory() *memory.Store {
	return e.mem
}

// Pending returns the number of activations waiting on the agenda.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agenda.len()
}
