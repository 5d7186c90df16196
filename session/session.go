// Package session wires one user's dataset, selection, option lists and view
// onto a private reactive graph.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/reactive"
	"github.com/spektr-org/healthlens/schema"
	"github.com/spektr-org/healthlens/source"
	"github.com/spektr-org/healthlens/store"
)

// ============================================================================
// SESSION — Everything one dashboard user owns
// ============================================================================
// A Session is passed explicitly to whoever needs it; nothing here is
// process-wide except the metric collectors. Building one is cheap and does
// no I/O: the dataset arrives through Load.
// ============================================================================

// Session holds the dataset store, the selection cells and every derived
// value for one user.
type Session struct {
	ID string

	graph  *reactive.Graph
	store  *store.DatasetStore
	logger *slog.Logger

	engineOpts []engine.Option
	chartTitle string

	// mu serialises writers: selection updates and dataset publication.
	// Readers go straight to the graph.
	mu sync.Mutex

	// sources
	dataset    *reactive.Cell[schema.Dataset]
	countries  *reactive.Cell[[]string]
	categories *reactive.Cell[[]string]
	variable   *reactive.Cell[string]
	cutoff     *reactive.Cell[*int]

	// options
	availableCountries  *reactive.Computed[[]string]
	availableCategories *reactive.Computed[[]string]
	availableVariables  *reactive.Computed[[]string]
	yearBounds          *reactive.Computed[Bounds]
	options             *reactive.Computed[DerivedOptions]

	// pipeline
	query   *reactive.Computed[engine.Query]
	series  *reactive.Computed[engine.Series]
	summary *reactive.Computed[[]engine.SummaryRow]
	chart   *reactive.Computed[*engine.ChartConfig]
	table   *reactive.Computed[*engine.TableData]
	view    *reactive.Computed[*engine.ViewData]
}

// Option configures a Session.
type Option func(*settings)

type settings struct {
	id         string
	logger     *slog.Logger
	storeOpts  []store.Option
	engineOpts []engine.Option
	title      string
}

// WithID fixes the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *settings) { s.id = id }
}

// WithLogger sets the session logger. The session ID is attached to it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithResources overrides the dataset and taxonomy locations.
func WithResources(dataset, taxonomy source.Resource) Option {
	return func(s *settings) {
		s.storeOpts = append(s.storeOpts, store.WithResources(dataset, taxonomy))
	}
}

// WithStoreOptions passes options through to the dataset store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(s *settings) { s.storeOpts = append(s.storeOpts, opts...) }
}

// WithEngineOptions sets the options used for the cached summary table,
// for example engine.WithStableSort.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *settings) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithTitle overrides the chart and table title.
func WithTitle(title string) Option {
	return func(s *settings) { s.title = title }
}

// New builds a session reading through fetcher. Nothing is fetched until
// Load is called.
func New(fetcher source.Fetcher, opts ...Option) *Session {
	cfg := &settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	logger := cfg.logger.With("session", cfg.id)

	s := &Session{
		ID:         cfg.id,
		logger:     logger,
		engineOpts: cfg.engineOpts,
		chartTitle: cfg.title,
	}
	s.graph = reactive.NewGraph(
		reactive.WithLogger(logger),
		reactive.WithRecomputeHook(func(name string) {
			recomputeTotal.WithLabelValues(name).Inc()
		}),
	)

	s.dataset = reactive.NewCell(s.graph, "dataset", schema.Dataset{})
	s.countries = reactive.NewCell[[]string](s.graph, "countries", nil)
	s.categories = reactive.NewCell[[]string](s.graph, "categories", nil)
	s.variable = reactive.NewCell(s.graph, "variable", "")
	s.cutoff = reactive.NewCell[*int](s.graph, "year_cutoff", nil)

	s.buildProvider()
	s.buildAggregator()

	s.store = store.New(fetcher, append([]store.Option{store.WithLogger(logger)}, cfg.storeOpts...)...)
	s.store.Subscribe(func(d schema.Dataset) {
		_ = s.write(func() error {
			s.dataset.Set(d)
			return nil
		})
	})

	logger.Debug("session created", "nodes", s.graph.Len())
	return s
}

// Load fetches the dataset unless it is already loaded. Concurrent calls
// share one fetch. On success the option lists are rebuilt and the selection
// is reconciled before Load returns.
func (s *Session) Load(ctx context.Context) (store.Outcome, error) {
	out, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("session data ready", "outcome", out, "state", s.store.State())
	return out, nil
}

// write runs fn under the writer lock and reconciles the selection unless fn
// failed. Observers are notified once, after the lock is released, so they
// may write again.
func (s *Session) write(fn func() error) error {
	var err error
	s.graph.Batch(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err = fn(); err == nil {
			s.reconcile()
		}
	})
	return err
}

// State returns the dataset store state.
func (s *Session) State() store.State { return s.store.State() }

// LoadErr returns the error of the last failed load.
func (s *Session) LoadErr() error { return s.store.Err() }

// Dataset returns the loaded dataset, empty before Load succeeds.
func (s *Session) Dataset() schema.Dataset { return s.dataset.Get() }

// Graph exposes the session's dependency graph.
func (s *Session) Graph() *reactive.Graph { return s.graph }

// OnChange calls fn with the new view whenever it changes. fn runs after
// the triggering write has settled and may itself change the selection.
func (s *Session) OnChange(fn func(*engine.ViewData)) (unsubscribe func()) {
	return s.graph.Subscribe(s.view, func() {
		fn(s.view.Get())
	})
}

// Node returns a derived node by name for introspection, or nil.
func (s *Session) Node(name string) reactive.Node {
	for _, n := range s.nodes() {
		if n.Name() == name {
			return n
		}
	}
	return nil
}

func (s *Session) nodes() []reactive.Node {
	return []reactive.Node{
		s.dataset, s.countries, s.categories, s.variable, s.cutoff,
		s.availableCountries, s.availableCategories, s.availableVariables, s.yearBounds, s.options,
		s.query, s.series, s.summary, s.chart, s.table, s.view,
	}
}

// Computations reports how many times each derived node has run.
func (s *Session) Computations() map[string]int {
	return map[string]int{
		s.availableCountries.Name():  s.availableCountries.Computations(),
		s.availableCategories.Name(): s.availableCategories.Computations(),
		s.availableVariables.Name():  s.availableVariables.Computations(),
		s.yearBounds.Name():          s.yearBounds.Computations(),
		s.options.Name():             s.options.Computations(),
		s.query.Name():               s.query.Computations(),
		s.series.Name():              s.series.Computations(),
		s.summary.Name():             s.summary.Computations(),
		s.chart.Name():               s.chart.Computations(),
		s.table.Name():               s.table.Computations(),
		s.view.Name():                s.view.Computations(),
	}
}
