package reactive

import "reflect"

// Cell is a settable source value. Its version advances only when Set stores
// a value that differs from the current one.
type Cell[T any] struct {
	g     *Graph
	m     nodeMeta
	val   T
	equal func(a, b T) bool
}

// NewCell registers a source cell holding initial.
func NewCell[T any](g *Graph, name string, initial T) *Cell[T] {
	c := &Cell[T]{
		g:     g,
		m:     nodeMeta{name: name},
		val:   initial,
		equal: deepEqual[T],
	}
	g.register(c, nil)
	return c
}

// WithEqual replaces the change-detection function. Returns the cell for chaining.
func (c *Cell[T]) WithEqual(fn func(a, b T) bool) *Cell[T] {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	c.equal = fn
	return c
}

func (c *Cell[T]) meta() *nodeMeta { return &c.m }
func (c *Cell[T]) refresh()        {}
func (c *Cell[T]) value() T        { return c.val }

// Name returns the name the cell was registered with.
func (c *Cell[T]) Name() string { return c.m.name }

// Version returns the number of effective changes applied to the cell.
func (c *Cell[T]) Version() uint64 {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	return c.m.version
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	return c.val
}

// Set stores v. It reports whether the value changed; an unchanged value
// leaves every dependent untouched.
func (c *Cell[T]) Set(v T) bool {
	c.g.mu.Lock()
	if c.equal(c.val, v) {
		c.g.mu.Unlock()
		return false
	}
	c.val = v
	c.m.version++
	c.g.markStale(c.m.id)
	c.g.settle()
	return true
}

// Update applies fn to the current value and stores the result atomically
// with respect to other writers.
func (c *Cell[T]) Update(fn func(T) T) bool {
	c.g.mu.Lock()
	next := fn(c.val)
	if c.equal(c.val, next) {
		c.g.mu.Unlock()
		return false
	}
	c.val = next
	c.m.version++
	c.g.markStale(c.m.id)
	c.g.settle()
	return true
}

func deepEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
