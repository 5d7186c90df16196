package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/helpers"
	"github.com/spektr-org/healthlens/schema"
	"github.com/spektr-org/healthlens/source"
)

// ============================================================================
// DATASET STORE — At-most-once load of the dataset and taxonomy
// ============================================================================
// State machine:
//
//	Uninitialized → Loading → Ready
//	                        ↘ Failed → Loading (retry)
//
// Concurrent Load calls collapse onto a single in-flight fetch; every caller
// observes the same outcome. Once Ready, Load is a no-op. Nothing is
// published unless both resources were fetched and parsed.
// ============================================================================

// State is the lifecycle position of a store.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome describes what a successful Load did.
type Outcome int

const (
	// Loaded means this call (or the in-flight call it joined) fetched and
	// published the dataset.
	Loaded Outcome = iota + 1
	// AlreadyLoaded means the store was Ready and nothing was fetched.
	AlreadyLoaded
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case AlreadyLoaded:
		return "already_loaded"
	default:
		return "unknown"
	}
}

// LoadError is a failed fetch or parse. The store stays empty and Load may be
// retried.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DatasetParser turns the dataset payload into records and variable names.
type DatasetParser func([]byte) ([]engine.Record, []string, error)

// TaxonomyParser turns the taxonomy payload into a Taxonomy.
type TaxonomyParser func([]byte) (schema.Taxonomy, error)

// DatasetStore owns one session's dataset.
type DatasetStore struct {
	fetcher  source.Fetcher
	dataset  source.Resource
	taxonomy source.Resource

	parseDataset  DatasetParser
	parseTaxonomy TaxonomyParser

	flight singleflight.Group

	mu          sync.RWMutex
	state       State
	data        schema.Dataset
	lastErr     error
	subscribers []func(schema.Dataset)

	logger *slog.Logger
}

// Option configures a DatasetStore.
type Option func(*DatasetStore)

// WithResources overrides where the dataset and taxonomy are fetched from.
func WithResources(dataset, taxonomy source.Resource) Option {
	return func(s *DatasetStore) {
		s.dataset = dataset
		s.taxonomy = taxonomy
	}
}

// WithParsers replaces the CSV parsers.
func WithParsers(ds DatasetParser, tax TaxonomyParser) Option {
	return func(s *DatasetStore) {
		if ds != nil {
			s.parseDataset = ds
		}
		if tax != nil {
			s.parseTaxonomy = tax
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DatasetStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store reading through fetcher.
func New(fetcher source.Fetcher, opts ...Option) *DatasetStore {
	s := &DatasetStore{
		fetcher:       fetcher,
		dataset:       source.Resource{Name: "dataset", Location: source.DefaultDatasetURL},
		taxonomy:      source.Resource{Name: "taxonomy", Location: source.DefaultTaxonomyURL},
		parseDataset:  helpers.ParseDataset,
		parseTaxonomy: helpers.ParseTaxonomy,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive the dataset when it is published. If the
// store is already Ready, fn is called immediately.
func (s *DatasetStore) Subscribe(fn func(schema.Dataset)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	ready := s.state == Ready
	data := s.data
	s.mu.Unlock()

	if ready {
		fn(data)
	}
}

// Get returns the loaded dataset, or an empty one if not loaded yet.
func (s *DatasetStore) Get() schema.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// State returns the current lifecycle state.
func (s *DatasetStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the last failed load, if the store is Failed.
func (s *DatasetStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Load fetches and publishes the dataset unless it is already loaded. It is
// the only store operation that blocks.
func (s *DatasetStore) Load(ctx context.Context) (Outcome, error) {
	if s.State() == Ready {
		loadTotal.WithLabelValues("already_loaded").Inc()
		s.logger.Info("online data was already loaded")
		return AlreadyLoaded, nil
	}

	v, err, shared := s.flight.Do("load", func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		return 0, err
	}

	out := v.(Outcome)
	if shared && out == Loaded {
		loadTotal.WithLabelValues("joined").Inc()
	}
	return out, nil
}

// load runs inside the singleflight group: at most one per store at a time.
func (s *DatasetStore) load(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state == Ready {
		// A previous flight finished between our State check and Do.
		s.mu.Unlock()
		loadTotal.WithLabelValues("already_loaded").Inc()
		return AlreadyLoaded, nil
	}
	s.state = Loading
	s.mu.Unlock()

	s.logger.Info("started loading online data",
		"dataset", s.dataset.Location, "taxonomy", s.taxonomy.Location)
	start := time.Now()

	var dataBody, taxBody []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.fetch(gctx, s.dataset)
		dataBody = b
		return err
	})
	g.Go(func() error {
		b, err := s.fetch(gctx, s.taxonomy)
		taxBody = b
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, s.fail(err)
	}

	records, vars, err := s.parseDataset(dataBody)
	if err != nil {
		return 0, s.fail(&LoadError{Resource: s.dataset.Name, Err: err})
	}
	tax, err := s.parseTaxonomy(taxBody)
	if err != nil {
		return 0, s.fail(&LoadError{Resource: s.taxonomy.Name, Err: err})
	}

	data := schema.Dataset{Records: records, Variables: vars, Taxonomy: tax}

	s.mu.Lock()
	s.data = data
	s.state = Ready
	s.lastErr = nil
	subs := append([]func(schema.Dataset){}, s.subscribers...)
	s.mu.Unlock()

	loadDuration.Observe(time.Since(start).Seconds())
	loadTotal.WithLabelValues("loaded").Inc()
	s.logger.Info("finished loading online data",
		"rows", len(records),
		"variables", len(vars),
		"categories", len(tax.Categories),
		"duration_ms", time.Since(start).Milliseconds())

	for _, fn := range subs {
		fn(data)
	}
	return Loaded, nil
}

func (s *DatasetStore) fetch(ctx context.Context, r source.Resource) ([]byte, error) {
	body, err := s.fetcher.Fetch(ctx, r)
	if err != nil {
		fetchTotal.WithLabelValues(r.Name, "error").Inc()
		return nil, &LoadError{Resource: r.Name, Err: err}
	}
	fetchTotal.WithLabelValues(r.Name, "ok").Inc()
	return body, nil
}

func (s *DatasetStore) fail(err error) error {
	s.mu.Lock()
	s.state = Failed
	s.lastErr = err
	s.mu.Unlock()

	loadTotal.WithLabelValues("failed").Inc()
	var le *LoadError
	if errors.As(err, &le) {
		s.logger.Warn("loading online data failed", "resource", le.Resource, "error", le.Err)
	} else {
		s.logger.Warn("loading online data failed", "error", err)
	}
	return err
}
