package engine

import (
	"container/heap"

	"github.com/roach88/distance/internal/rule"
)

// activation is a complete tuple waiting to fire.
type activation struct {
	rule  *rule.Compiled
	tok   *token
	hash  string
	index int // heap position, -1 once popped or removed
}

// agenda orders activations for firing:
//
//  1. lower stratum first, so every producer of a negated type drains
//     before the negation's dependents fire;
//  2. higher priority first;
//  3. earlier declared rule first;
//  4. earlier created tuple first.
type agenda struct {
	items   activationHeap
	byToken map[*token]*activation
}

func newAgenda() *agenda {
	return &agenda{byToken: make(map[*token]*activation)}
}

func (a *agenda) push(act *activation) {
	heap.Push(&a.items, act)
	a.byToken[act.tok] = act
}

// pop removes the next activation to fire.
func (a *agenda) pop() (*activation, bool) {
	if len(a.items) == 0 {
		return nil, false
	}
	act := heap.Pop(&a.items).(*activation)
	delete(a.byToken, act.tok)
	return act, true
}

// remove drops the activation for tok if it has not fired.
func (a *agenda) remove(tok *token) bool {
	act, ok := a.byToken[tok]
	if !ok {
		return false
	}
	heap.Remove(&a.items, act.index)
	delete(a.byToken, tok)
	return true
}

func (a *agenda) len() int { return len(a.items) }

type activationHeap []*activation

func (h activationHeap) Len() int { return len(h) }

func (h activationHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.rule.Stratum != b.rule.Stratum {
		return a.rule.Stratum < b.rule.Stratum
	}
	if a.rule.Priority != b.rule.Priority {
		return a.rule.Priority > b.rule.Priority
	}
	if a.rule.Index != b.rule.Index {
		return a.rule.Index < b.rule.Index
	}
	return a.tok.seq < b.tok.seq
}

func (h activationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *activationHeap) Push(x any) {
	act := x.(*activation)
	act.index = len(*h)
	*h = append(*h, act)
}

func (h *activationHeap) Pop() any {
	old := *h
	n := len(old)
	act := old[n-1]
	old[n-1] = nil
	act.index = -1
	*h = old[:n-1]
	return act
}
