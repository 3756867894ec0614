// Package memory holds working memory: per-type sets of facts deduplicated
// by identity key.
//
// Insertion is idempotent. A structurally equal fact is ignored and Insert
// reports false; callers use that result to suppress duplicate downstream
// derivation. Iteration order within a type is insertion order.
package memory

import (
	"sync"

	"github.com/roach88/distance/internal/fact"
)

// Store is working memory. It is safe for concurrent readers; the engine
// serializes writers.
type Store struct {
	mu     sync.RWMutex
	byType map[string]*bucket
	order  []string // type names in first-insert order
	total  int
}

type bucket struct {
	index map[string]int // key -> position in facts
	facts []*fact.Fact   // nil entries are retracted slots
	live  int
}

// New returns an empty store.
func New() *Store {
	return &Store{byType: make(map[string]*bucket)}
}

// Insert adds f unless an equal fact is already present.
func (s *Store) Insert(f *fact.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.byType[f.TypeName()]
	if b == nil {
		b = &bucket{index: make(map[string]int)}
		s.byType[f.TypeName()] = b
		s.order = append(s.order, f.TypeName())
	}
	if _, ok := b.index[f.Key()]; ok {
		return false
	}
	b.index[f.Key()] = len(b.facts)
	b.facts = append(b.facts, f)
	b.live++
	s.total++
	return true
}

// Contains reports whether an equal fact is present.
func (s *Store) Contains(f *fact.Fact) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.byType[f.TypeName()]
	if b == nil {
		return false
	}
	_, ok := b.index[f.Key()]
	return ok
}

// Lookup returns the stored instance equal to f.
func (s *Store) Lookup(f *fact.Fact) (*fact.Fact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.byType[f.TypeName()]
	if b == nil {
		return nil, false
	}
	i, ok := b.index[f.Key()]
	if !ok {
		return nil, false
	}
	return b.facts[i], true
}

// Retract removes the fact equal to f. It reports false when none exists.
func (s *Store) Retract(f *fact.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.byType[f.TypeName()]
	if b == nil {
		return false
	}
	i, ok := b.index[f.Key()]
	if !ok {
		return false
	}
	delete(b.index, f.Key())
	b.facts[i] = nil
	b.live--
	s.total--

	// Compact once retracted slots dominate.
	if len(b.facts) > 32 && b.live < len(b.facts)/2 {
		b.compact()
	}
	return true
}

func (b *bucket) compact() {
	facts := make([]*fact.Fact, 0, b.live)
	for _, f := range b.facts {
		if f != nil {
			b.index[f.Key()] = len(facts)
			facts = append(facts, f)
		}
	}
	b.facts = facts
}

// All returns a snapshot of the facts of one type in insertion order.
// The returned slice is not affected by later mutation.
func (s *Store) All(typeName string) []*fact.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.byType[typeName]
	if b == nil {
		return nil
	}
	out := make([]*fact.Fact, 0, b.live)
	for _, f := range b.facts {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Count returns the number of facts of one type.
func (s *Store) Count(typeName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.byType[typeName]; b != nil {
		return b.live
	}
	return 0
}

// Len returns the number of facts of every type.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Types returns the names of types with at least one fact, in the order
// each was first inserted.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, name := range s.order {
		if s.byType[name].live > 0 {
			out = append(out, name)
		}
	}
	return out
}
