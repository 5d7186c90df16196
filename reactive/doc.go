// Package reactive implements a small dependency-tracked dataflow graph.
//
// Source values live in cells; derived values declare the sources they read
// and are recomputed on demand when, and only when, one of those sources has
// a new version:
//
//	g := reactive.NewGraph()
//	year := reactive.NewCell(g, "year", 2016)
//	label := reactive.Derive1(g, "label", year, func(y int) string {
//	    return fmt.Sprintf("up to %d", y)
//	})
//
//	g.Subscribe(label, func() { redraw(label.Get()) })
//	year.Set(2015) // marks label stale, recomputes it, runs redraw
//
// A Graph serialises all access with one mutex, so a session has a single
// writer. Observers run after the lock is released and may write back into
// the graph, which is how selections are reset when their options change.
package reactive
