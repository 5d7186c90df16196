package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputedRecomputesOnlyOnInputChange(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 1)
	b := NewCell(g, "b", 10)
	sum := Derive2(g, "sum", a, b, func(x, y int) int { return x + y })

	assert.Equal(t, 11, sum.Get())
	assert.Equal(t, 11, sum.Get())
	assert.Equal(t, 1, sum.Computations(), "second Get must hit the cache")

	a.Set(2)
	assert.Equal(t, 12, sum.Get())
	assert.Equal(t, 2, sum.Computations())

	// Writing the same value is not a change.
	assert.False(t, a.Set(2))
	assert.Equal(t, 12, sum.Get())
	assert.Equal(t, 2, sum.Computations())
}

func TestUnrelatedInputDoesNotRecompute(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", "x")
	b := NewCell(g, "b", "y")
	upper := Derive1(g, "upper", a, func(s string) string { return s + s })

	upper.Get()
	b.Set("z")
	upper.Get()
	assert.Equal(t, 1, upper.Computations())
}

func TestEqualOutputStopsPropagation(t *testing.T) {
	g := NewGraph()
	n := NewCell(g, "n", 3)
	parity := Derive1(g, "parity", n, func(v int) bool { return v%2 == 0 })
	label := Derive1(g, "label", parity, func(even bool) string {
		if even {
			return "even"
		}
		return "odd"
	})

	assert.Equal(t, "odd", label.Get())
	n.Set(5)
	assert.Equal(t, "odd", label.Get())
	assert.Equal(t, 2, parity.Computations())
	assert.Equal(t, 1, label.Computations(), "label reads parity, whose version did not move")
}

func TestDiamondSeesConsistentInputs(t *testing.T) {
	g := NewGraph()
	base := NewCell(g, "base", 1)
	double := Derive1(g, "double", base, func(v int) int { return v * 2 })
	triple := Derive1(g, "triple", base, func(v int) int { return v * 3 })

	var observed [][2]int
	pair := Derive2(g, "pair", double, triple, func(d, t int) [2]int {
		observed = append(observed, [2]int{d, t})
		return [2]int{d, t}
	})

	pair.Get()
	base.Set(5)
	assert.Equal(t, [2]int{10, 15}, pair.Get())
	for _, o := range observed {
		assert.Equal(t, o[0]*3, o[1]*2, "pair must never mix old and new inputs")
	}
	assert.Equal(t, 2, pair.Computations())
}

func TestSubscribeFiresOncePerEffectiveChange(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 1)
	sq := Derive1(g, "sq", a, func(v int) int { return v * v })

	var calls []int
	unsubscribe := g.Subscribe(sq, func() { calls = append(calls, sq.Get()) })

	a.Set(2)
	a.Set(-2) // same square, no notification
	a.Set(3)
	assert.Equal(t, []int{4, 9}, calls)

	unsubscribe()
	a.Set(4)
	assert.Equal(t, []int{4, 9}, calls)
}

func TestSubscriberReachesThroughStaleIntermediate(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 1)
	mid := Derive1(g, "mid", a, func(v int) int { return v + 1 })
	leaf := Derive1(g, "leaf", mid, func(v int) int { return v * 10 })

	var seen []int
	g.Subscribe(leaf, func() { seen = append(seen, leaf.Get()) })

	a.Set(2)
	a.Set(3)
	assert.Equal(t, []int{30, 40}, seen)
}

func TestBatchNotifiesOnce(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 1)
	b := NewCell(g, "b", 1)
	sum := Derive2(g, "sum", a, b, func(x, y int) int { return x + y })

	count := 0
	g.Subscribe(sum, func() { count++ })

	g.Batch(func() {
		a.Set(5)
		b.Set(7)
	})
	assert.Equal(t, 1, count)
	assert.Equal(t, 12, sum.Get())
}

func TestObserverMayWriteBack(t *testing.T) {
	g := NewGraph()
	limit := NewCell(g, "limit", 10)
	value := NewCell(g, "value", 8)
	ok := Derive2(g, "ok", limit, value, func(l, v int) bool { return v <= l })

	g.Subscribe(ok, func() {
		if !ok.Get() {
			value.Set(0)
		}
	})

	limit.Set(5)
	assert.Equal(t, 0, value.Get())
	assert.True(t, ok.Get())
}

func TestRecomputeIsIdempotent(t *testing.T) {
	g := NewGraph()
	xs := NewCell(g, "xs", []int{3, 1, 2})
	sorted := Derive1(g, "sorted", xs, func(in []int) []int {
		out := append([]int(nil), in...)
		for i := range out {
			for j := i + 1; j < len(out); j++ {
				if out[j] < out[i] {
					out[i], out[j] = out[j], out[i]
				}
			}
		}
		return out
	})

	first := sorted.Get()
	v := sorted.Version()
	second := sorted.Recompute()
	assert.Equal(t, first, second)
	assert.Equal(t, v, sorted.Version())
}

func TestInputsAreDeclared(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 0)
	b := NewCell(g, "b", 0)
	c := Derive2(g, "c", a, b, func(x, y int) int { return x * y })

	assert.Equal(t, []string{"a", "b"}, g.Inputs(c))
	assert.Empty(t, g.Inputs(a))
	assert.Equal(t, 3, g.Len())
}

func TestForeignInputPanics(t *testing.T) {
	g1 := NewGraph()
	g2 := NewGraph()
	a := NewCell(g1, "a", 0)
	NewCell(g2, "other", 0)

	require.Panics(t, func() {
		Derive1(g2, "bad", a, func(v int) int { return v })
	})
}

func TestRecomputeHook(t *testing.T) {
	var names []string
	g := NewGraph(WithRecomputeHook(func(name string) { names = append(names, name) }))
	a := NewCell(g, "a", 1)
	d := Derive1(g, "d", a, func(v int) int { return v })

	d.Get()
	a.Set(2)
	d.Get()
	assert.Equal(t, []string{"d", "d"}, names)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	g := NewGraph()
	a := NewCell(g, "a", 0)
	twice := Derive1(g, "twice", a, func(v int) int { return v * 2 })

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := twice.Get()
				assert.Equal(t, 0, v%2)
			}
		}()
	}
	for i := 1; i <= 200; i++ {
		a.Set(i)
	}
	wg.Wait()
	assert.Equal(t, 400, twice.Get())
}
