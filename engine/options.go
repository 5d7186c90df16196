package engine

import (
	"fmt"
	"log/slog"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Build/Summarize
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	SortBy string // SortFirstSeen unless overridden
	Title  string
	Logger *slog.Logger
}

// Summary row orders.
const (
	SortFirstSeen = ""
	SortValueDesc = "value_desc"
	SortValueAsc  = "value_asc"
	SortLabelAsc  = "label_asc"
	SortLabelDesc = "label_desc"
)

// ParseSort maps a user-facing sort name onto a sort mode. "stable" is an
// alias for label_asc; the empty string keeps first-seen order.
func ParseSort(name string) (string, error) {
	switch name {
	case "stable":
		return SortLabelAsc, nil
	case SortFirstSeen, SortValueDesc, SortValueAsc, SortLabelAsc, SortLabelDesc:
		return name, nil
	}
	return "", fmt.Errorf("unknown sort %q: want stable, %s, %s, %s or %s",
		name, SortValueDesc, SortValueAsc, SortLabelAsc, SortLabelDesc)
}

// WithStableSort orders summary rows by country name. Ties keep the order in
// which countries were first encountered in the filtered data.
func WithStableSort() Option {
	return func(c *config) {
		c.SortBy = SortLabelAsc
	}
}

// WithSortBy selects a SortGroups mode, usually one returned by ParseSort.
func WithSortBy(sortBy string) Option {
	return func(c *config) {
		c.SortBy = sortBy
	}
}

// WithTitle overrides the chart and table title, which otherwise derives from
// the variable name.
func WithTitle(title string) Option {
	return func(c *config) {
		c.Title = title
	}
}

// WithLogger sets the logger used for pipeline tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.Logger = logger
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
