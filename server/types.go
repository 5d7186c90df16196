package server

import (
	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/session"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// LoadResponse is returned by POST /v1/load.
type LoadResponse struct {
	Session string `json:"session"`
	Outcome string `json:"outcome"`
	State   string `json:"state"`
}

// OptionsResponse is returned by GET /v1/options.
type OptionsResponse struct {
	Session string                 `json:"session"`
	State   string                 `json:"state"`
	Options session.DerivedOptions `json:"options"`
}

// SelectionResponse is returned by GET and PUT /v1/selection.
type SelectionResponse struct {
	Session   string                  `json:"session"`
	Selection session.Selection       `json:"selection"`
	Status    session.SelectionStatus `json:"status"`
	Ready     bool                    `json:"ready"`
}

// ChartResponse is returned by GET /v1/chart.
type ChartResponse struct {
	Ready     bool                           `json:"ready"`
	Chart     *engine.ChartConfig            `json:"chart,omitempty"`
	ByCountry map[string][]engine.ChartPoint `json:"byCountry"`
}

// TableResponse is returned by GET /v1/table.
type TableResponse struct {
	Ready bool                `json:"ready"`
	Rows  []engine.SummaryRow `json:"rows"`
	Table *engine.TableData   `json:"table,omitempty"`
	Text  string              `json:"text,omitempty"`
}
