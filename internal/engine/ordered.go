package engine

// ordered is a keyed set that iterates in insertion order. Alpha and beta
// memories use it so every propagation visits partners in the order they
// arrived.
type ordered[T any] struct {
	index map[string]int
	items []entry[T]
	live  int
}

type entry[T any] struct {
	key  string
	val  T
	dead bool
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{index: make(map[string]int)}
}

// add inserts val under key. It reports false when key is present.
func (o *ordered[T]) add(key string, val T) bool {
	if _, ok := o.index[key]; ok {
		return false
	}
	o.index[key] = len(o.items)
	o.items = append(o.items, entry[T]{key: key, val: val})
	o.live++
	return true
}

func (o *ordered[T]) get(key string) (T, bool) {
	i, ok := o.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return o.items[i].val, true
}

func (o *ordered[T]) has(key string) bool {
	_, ok := o.index[key]
	return ok
}

// remove deletes key. It reports false when key is absent.
func (o *ordered[T]) remove(key string) (T, bool) {
	i, ok := o.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	val := o.items[i].val
	delete(o.index, key)
	var zero T
	o.items[i] = entry[T]{dead: true, val: zero}
	o.live--

	if len(o.items) > 32 && o.live < len(o.items)/2 {
		o.compact()
	}
	return val, true
}

func (o *ordered[T]) compact() {
	items := make([]entry[T], 0, o.live)
	for _, e := range o.items {
		if !e.dead {
			o.index[e.key] = len(items)
			items = append(items, e)
		}
	}
	o.items = items
}

// each calls fn for every live value present when each was called, in
// insertion order. Values removed by fn before they are reached are
// skipped; values added by fn are not visited.
func (o *ordered[T]) each(fn func(T)) {
	items := o.items
	for _, e := range items {
		if e.dead {
			continue
		}
		if _, ok := o.index[e.key]; !ok {
			continue
		}
		fn(e.val)
	}
}

// values returns the live values in insertion order.
func (o *ordered[T]) values() []T {
	out := make([]T, 0, o.live)
	o.each(func(v T) { out = append(out, v) })
	return out
}

func (o *ordered[T]) len() int { return o.live }
