package reactive

import (
	"log/slog"
	"sort"
	"sync"
)

// ============================================================================
// GRAPH — Explicit dependency table for reactive values
// ============================================================================
// Every node is registered with the graph that owns it. Derived nodes name
// their inputs at construction, so the dependency table is a DAG by
// construction: an input must exist before anything can depend on it, and
// node IDs are therefore already in topological order.
//
// Change propagation is push-to-mark, pull-to-compute:
//   1. Cell.Set bumps the cell's version and marks transitive dependents stale.
//   2. Computed.Get walks its inputs, refreshes them first, and recomputes
//      only if an input version differs from the one recorded last time.
//   3. Subscribed nodes are refreshed eagerly once the write settles and
//      their observers run outside the graph lock.
// ============================================================================

// node is the lock-held view of a graph member.
type node interface {
	meta() *nodeMeta
	refresh()
}

// Node is any cell or computed value registered on a Graph.
type Node interface {
	node
	Name() string
	Version() uint64
}

type nodeMeta struct {
	id       int
	name     string
	version  uint64
	stale    bool
	computes int
	inputs   []int
}

type subscription struct {
	id   int
	seen uint64
	fn   func()
}

// Graph owns a set of reactive nodes and serialises every read and write on
// them. A Graph is scoped to one session; it is never shared process-wide.
type Graph struct {
	mu         sync.Mutex
	nodes      []node
	dependents [][]int
	subs       map[int][]*subscription
	touched    map[int]struct{}
	batch      int
	nextSub    int

	logger      *slog.Logger
	onRecompute func(name string)
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for recompute tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRecomputeHook registers a callback invoked (under the graph lock) every
// time a computed node runs its function. Used for metrics.
func WithRecomputeHook(fn func(name string)) Option {
	return func(g *Graph) {
		g.onRecompute = fn
	}
}

// NewGraph creates an empty dependency graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		subs:    make(map[int][]*subscription),
		touched: make(map[int]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// register adds a node and records the reverse edges from its inputs.
func (g *Graph) register(n node, inputs []node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := n.meta()
	m.id = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.dependents = append(g.dependents, nil)

	for _, in := range inputs {
		im := in.meta()
		if im.id >= len(g.nodes) || g.nodes[im.id] != in {
			panic("reactive: input " + im.name + " belongs to a different graph")
		}
		m.inputs = append(m.inputs, im.id)
		g.dependents[im.id] = append(g.dependents[im.id], m.id)
	}
}

// markStale flags every transitive dependent of id. Lock held.
func (g *Graph) markStale(id int) {
	g.touched[id] = struct{}{}
	visited := map[int]bool{id: true}
	queue := append([]int(nil), g.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		g.nodes[next].meta().stale = true
		g.touched[next] = struct{}{}
		queue = append(queue, g.dependents[next]...)
	}
}

// collect refreshes every touched node that has observers and returns the
// callbacks whose node version moved. Lock held.
func (g *Graph) collect() []func() {
	if g.batch > 0 || len(g.touched) == 0 {
		return nil
	}

	ids := make([]int, 0, len(g.touched))
	for id := range g.touched {
		if len(g.subs[id]) > 0 {
			ids = append(ids, id)
		}
	}
	g.touched = make(map[int]struct{})
	sort.Ints(ids)

	var calls []func()
	for _, id := range ids {
		n := g.nodes[id]
		n.refresh()
		v := n.meta().version
		for _, s := range g.subs[id] {
			if s.seen != v {
				s.seen = v
				calls = append(calls, s.fn)
			}
		}
	}
	return calls
}

// settle runs after a write: it computes the pending notifications while the
// lock is held, releases it, then runs the observers.
func (g *Graph) settle() {
	calls := g.collect()
	g.mu.Unlock()
	for _, fn := range calls {
		fn()
	}
}

// Batch runs fn and defers observer notification until it returns. Writes
// made inside fn are visible to readers immediately; observers see the
// combined change once.
func (g *Graph) Batch(fn func()) {
	g.mu.Lock()
	g.batch++
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.batch--
		g.settle()
	}()
	fn()
}

// Subscribe registers fn to run whenever n's version changes. The node is
// evaluated eagerly after every write that touches it. fn runs outside the
// graph lock and may read or write other nodes.
func (g *Graph) Subscribe(n Node, fn func()) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n.refresh()
	id := n.meta().id
	g.nextSub++
	s := &subscription{id: g.nextSub, seen: n.meta().version, fn: fn}
	g.subs[id] = append(g.subs[id], s)

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		list := g.subs[id]
		for i, cur := range list {
			if cur.id == s.id {
				g.subs[id] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Inputs returns the names of the nodes n was declared with.
func (g *Graph) Inputs(n Node) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := n.meta()
	names := make([]string, 0, len(m.inputs))
	for _, id := range m.inputs {
		names = append(names, g.nodes[id].meta().name)
	}
	return names
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

func (g *Graph) recomputed(m *nodeMeta) {
	m.computes++
	if g.onRecompute != nil {
		g.onRecompute(m.name)
	}
	g.logger.Debug("reactive: recomputed", "node", m.name, "version", m.version, "computes", m.computes)
}
