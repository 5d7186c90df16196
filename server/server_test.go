package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/session"
	"github.com/spektr-org/healthlens/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testDataset  = "country,year,X\nIE,2015,10\nIE,2016,20\nIN,2015,5\n"
	testTaxonomy = "health_dataset,column\nDemo,X\n"
)

func staticFetcher(err error) source.Fetcher {
	return source.FetcherFunc(func(_ context.Context, r source.Resource) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		if r.Name == "taxonomy" {
			return []byte(testTaxonomy), nil
		}
		return []byte(testDataset), nil
	})
}

func setupTestRouter(t *testing.T, fetchErr error, opts ...Option) (*Server, *gin.Engine) {
	t.Helper()
	srv := New(func(id string) *session.Session {
		return session.New(staticFetcher(fetchErr), session.WithID(id))
	}, append([]Option{WithVersion("test")}, opts...)...)
	return srv, srv.Router()
}

func do(t *testing.T, router *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	_, router := setupTestRouter(t, nil)

	w := do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.Sessions)
}

func TestViewNotReadyBeforeLoad(t *testing.T) {
	_, router := setupTestRouter(t, nil)

	w := do(t, router, http.MethodGet, "/v1/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[engine.ViewData](t, w)
	assert.False(t, view.Ready)
	assert.Empty(t, view.Summary)

	w = do(t, router, http.MethodGet, "/v1/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ChartResponse](t, w).Ready)

	w = do(t, router, http.MethodGet, "/v1/chart.png", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLoadAndSelectFlow(t *testing.T) {
	_, router := setupTestRouter(t, nil)

	w := do(t, router, http.MethodPost, "/v1/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "loaded", decode[LoadResponse](t, w).Outcome)

	w = do(t, router, http.MethodPost, "/v1/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_loaded", decode[LoadResponse](t, w).Outcome)

	w = do(t, router, http.MethodGet, "/v1/options", "")
	require.Equal(t, http.StatusOK, w.Code)
	opts := decode[OptionsResponse](t, w)
	assert.Equal(t, "ready", opts.State)
	assert.Equal(t, []string{"IE", "IN"}, opts.Options.Countries)
	assert.Equal(t, []string{"X"}, opts.Options.Variables)
	assert.Equal(t, 2015, opts.Options.YearBounds.Min)
	assert.Equal(t, 2016, opts.Options.YearBounds.Max)
	assert.Equal(t, 2016, opts.Options.YearBounds.Default)

	w = do(t, router, http.MethodPut, "/v1/selection",
		`{"countries":["IN","IE"],"variable":"X","yearCutoff":2016}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sel := decode[SelectionResponse](t, w)
	assert.True(t, sel.Ready)
	assert.Equal(t, []string{"IN", "IE"}, sel.Selection.Countries)
	assert.Equal(t, session.SelectionStatus{
		Countries:  session.Valid,
		Categories: session.Unset,
		Variable:   session.Valid,
		YearCutoff: session.Valid,
	}, sel.Status)

	w = do(t, router, http.MethodGet, "/v1/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[engine.ViewData](t, w)
	assert.True(t, view.Ready)
	assert.Equal(t, []engine.SummaryRow{
		{Country: "IE", Mean: 15, Count: 2},
		{Country: "IN", Mean: 5, Count: 1},
	}, view.Summary)

	w = do(t, router, http.MethodGet, "/v1/chart", "")
	chart := decode[ChartResponse](t, w)
	assert.True(t, chart.Ready)
	assert.Len(t, chart.ByCountry["IE"], 2)

	w = do(t, router, http.MethodGet, "/v1/table?sort=stable", "")
	require.Equal(t, http.StatusOK, w.Code)
	table := decode[TableResponse](t, w)
	assert.True(t, table.Ready)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "IE", table.Rows[0].Country)
	assert.Contains(t, table.Text, "IE 15.00")

	w = do(t, router, http.MethodGet, "/v1/chart.png?width=320&height=200", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String()[:4])

	w = do(t, router, http.MethodGet, "/v1/table?sort=value_asc", "")
	require.Equal(t, http.StatusOK, w.Code)
	table = decode[TableResponse](t, w)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "IN", table.Rows[0].Country)
	assert.Equal(t, "IN", table.Table.Rows[0][0])

	w = do(t, router, http.MethodGet, "/v1/table?sort=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SORT", decode[ErrorResponse](t, w).Code)
}

func TestPutSelectionRejectsUnknownValue(t *testing.T) {
	_, router := setupTestRouter(t, nil)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/load", "").Code)

	w := do(t, router, http.MethodPut, "/v1/selection", `{"variable":"Nope"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "INVALID_SELECTION", resp.Code)
	assert.Equal(t, "variable", resp.Field)

	w = do(t, router, http.MethodPut, "/v1/selection", `{"countries":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadFailureIsBadGateway(t *testing.T) {
	srv, router := setupTestRouter(t, errors.New("upstream down"))

	w := do(t, router, http.MethodPost, "/v1/load", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "LOAD_FAILED", decode[ErrorResponse](t, w).Code)
	assert.Equal(t, "failed", srv.Default().State().String())

	w = do(t, router, http.MethodGet, "/v1/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[engine.ViewData](t, w).Ready)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, router := setupTestRouter(t, nil)

	w := do(t, router, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[SessionResponse](t, w).ID
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/load", "", SessionHeader, id).Code)
	assert.Equal(t, "uninitialized", srv.Default().State().String())

	w = do(t, router, http.MethodGet, "/v1/options", "", SessionHeader, id)
	assert.Equal(t, "ready", decode[OptionsResponse](t, w).State)

	w = do(t, router, http.MethodGet, "/v1/options", "", SessionHeader, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/v1/view", "", SessionHeader, id).Code)
	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodDelete, "/v1/sessions/"+srv.Default().ID, "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupTestRouter(t, nil)
	do(t, router, http.MethodGet, "/health", "")

	w := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthlens_http_requests_total")
}

func TestUnknownSessionIsNotCreated(t *testing.T) {
	srv, router := setupTestRouter(t, nil)

	for i := 0; i < 5; i++ {
		w := do(t, router, http.MethodGet, "/v1/options", "", SessionHeader, uuid.NewString())
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorResponse](t, w).Code)
	}

	w := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, 1, decode[HealthResponse](t, w).Sessions)
	assert.Equal(t, "uninitialized", srv.Default().State().String())
}

func TestSessionLimit(t *testing.T) {
	_, router := setupTestRouter(t, nil, WithMaxSessions(2))

	w := do(t, router, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[SessionResponse](t, w).ID

	w = do(t, router, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "TOO_MANY_SESSIONS", decode[ErrorResponse](t, w).Code)

	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/v1/sessions", "").Code)
}
