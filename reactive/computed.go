package reactive

// Source is a node whose value can be read. Both Cell and Computed are sources.
type Source[T any] interface {
	Node
	Get() T
	value() T
}

// Computed is a derived value. It is a pure function of the sources it was
// declared with and is recomputed lazily, only when one of their versions
// has moved since the last evaluation.
type Computed[T any] struct {
	g      *Graph
	m      nodeMeta
	inputs []node
	seen   []uint64
	fn     func() T
	val    T
	valid  bool
	equal  func(a, b T) bool
}

func newComputed[T any](g *Graph, name string, inputs []node, fn func() T) *Computed[T] {
	c := &Computed[T]{
		g:      g,
		m:      nodeMeta{name: name},
		inputs: inputs,
		seen:   make([]uint64, len(inputs)),
		fn:     fn,
		equal:  deepEqual[T],
	}
	g.register(c, inputs)
	return c
}

// Derive1 declares a computed value over one source.
func Derive1[A, T any](g *Graph, name string, a Source[A], fn func(A) T) *Computed[T] {
	return newComputed(g, name, []node{a}, func() T {
		return fn(a.value())
	})
}

// Derive2 declares a computed value over two sources.
func Derive2[A, B, T any](g *Graph, name string, a Source[A], b Source[B], fn func(A, B) T) *Computed[T] {
	return newComputed(g, name, []node{a, b}, func() T {
		return fn(a.value(), b.value())
	})
}

// Derive3 declares a computed value over three sources.
func Derive3[A, B, C, T any](g *Graph, name string, a Source[A], b Source[B], c Source[C], fn func(A, B, C) T) *Computed[T] {
	return newComputed(g, name, []node{a, b, c}, func() T {
		return fn(a.value(), b.value(), c.value())
	})
}

// Derive4 declares a computed value over four sources.
func Derive4[A, B, C, D, T any](g *Graph, name string, a Source[A], b Source[B], c Source[C], d Source[D], fn func(A, B, C, D) T) *Computed[T] {
	return newComputed(g, name, []node{a, b, c, d}, func() T {
		return fn(a.value(), b.value(), c.value(), d.value())
	})
}

// WithEqual replaces the output comparison used to decide whether a
// recomputation produced a new version. Returns the node for chaining.
func (c *Computed[T]) WithEqual(fn func(a, b T) bool) *Computed[T] {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	c.equal = fn
	return c
}

func (c *Computed[T]) meta() *nodeMeta { return &c.m }

func (c *Computed[T]) value() T {
	c.refresh()
	return c.val
}

// refresh brings the node up to date. Inputs are refreshed before they are
// compared, so fn never observes a half-updated input. Lock held.
func (c *Computed[T]) refresh() {
	if c.valid && !c.m.stale {
		return
	}

	changed := !c.valid
	for i, in := range c.inputs {
		in.refresh()
		if in.meta().version != c.seen[i] {
			changed = true
		}
	}
	c.m.stale = false
	if !changed {
		return
	}

	for i, in := range c.inputs {
		c.seen[i] = in.meta().version
	}
	c.store(c.fn())
}

func (c *Computed[T]) store(next T) {
	if !c.valid || !c.equal(c.val, next) {
		c.val = next
		c.m.version++
	}
	c.valid = true
	c.g.recomputed(&c.m)
}

// Name returns the name the node was declared with.
func (c *Computed[T]) Name() string { return c.m.name }

// Version returns the node's current version, refreshing it first.
func (c *Computed[T]) Version() uint64 {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	c.refresh()
	return c.m.version
}

// Get returns the up-to-date value.
func (c *Computed[T]) Get() T {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	return c.value()
}

// Recompute runs the function unconditionally. The version only moves if the
// result differs from the cached one, which for a pure function it never does.
func (c *Computed[T]) Recompute() T {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()

	for i, in := range c.inputs {
		in.refresh()
		c.seen[i] = in.meta().version
	}
	c.m.stale = false
	c.store(c.fn())
	return c.val
}

// Computations returns how many times the function has run.
func (c *Computed[T]) Computations() int {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	return c.m.computes
}
