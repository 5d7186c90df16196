// Package healthlens is a reactive explorer for country health statistics.
//
// Usage:
//
//	import "github.com/spektr-org/healthlens/session"
//
//	s := session.New(source.NewAuto(30*time.Second, nil))
//	if _, err := s.Load(ctx); err != nil { ... }
//
//	s.SetCountries("IRL", "IND")
//	s.SetVariable("Immunisation: Hepatitis B_% of children immunised")
//	s.SetYearCutoff(2016)
//
//	view := s.View() // chart series + per-country means
//
// Every derived value (option lists, filtered series, summary table) lives
// on a per-session reactive graph and is recomputed only when one of its
// declared inputs changes. The engine package does the filtering and
// aggregation and never calls any external service.
package healthlens
