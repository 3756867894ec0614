package engine

// firedLedger records every (rule, tuple) pair that has fired in a run.
//
// Two checks use it:
//   - Activation creation: a tuple that re-forms after retraction and
//     re-insertion is not queued again, so actions see each tuple once.
//   - Firing: popping an activation whose pair is already recorded is an
//     engine defect and aborts the run with an invariant error.
//
// The ledger is only touched under the engine mutex.
type firedLedger struct {
	fired map[string]map[string]bool // rule -> tuple hash
	size  int
}

func newFiredLedger() *firedLedger {
	return &firedLedger{fired: make(map[string]map[string]bool)}
}

// hasFired reports whether rule already fired for tuple.
func (l *firedLedger) hasFired(rule, tuple string) bool {
	return l.fired[rule][tuple]
}

// record marks rule as fired for tuple.
func (l *firedLedger) record(rule, tuple string) {
	byRule := l.fired[rule]
	if byRule == nil {
		byRule = make(map[string]bool)
		l.fired[rule] = byRule
	}
	if !byRule[tuple] {
		byRule[tuple] = true
		l.size++
	}
}

// count returns the number of distinct pairs recorded.
func (l *firedLedger) count(rule string) int {
	if rule == "" {
		return l.size
	}
	return len(l.fired[rule])
}
