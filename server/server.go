// Package server exposes sessions over a JSON HTTP API for a dashboard
// front end.
package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/render"
	"github.com/spektr-org/healthlens/session"
)

// ============================================================================
// SERVER — JSON boundary between sessions and the dashboard widgets
// ============================================================================
// Requests pick their session with the X-Session-ID header. Without it they
// use the server's default session. Other sessions are created with
// POST /v1/sessions; the registry holds at most maxSessions of them.
//
// Status codes:
//   200  including "not ready" views (ready=false in the body)
//   400  malformed body or session ID
//   404  unknown session ID
//   422  selection value not among the available options
//   502  dataset or taxonomy could not be loaded
//   503  session registry full
// ============================================================================

// SessionHeader carries the session ID.
const SessionHeader = "X-Session-ID"

const maxImageSide = 4096

// DefaultMaxSessions bounds the registry, the default session included.
const DefaultMaxSessions = 256

// ErrTooManySessions is returned when the registry is full.
var ErrTooManySessions = errors.New("session limit reached")

// Factory builds a new session with the given ID.
type Factory func(id string) *session.Session

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "healthlens_sessions_active",
		Help: "Sessions currently held by the server",
	})
)

// Server owns the session registry.
type Server struct {
	factory     Factory
	version     string
	logger      *slog.Logger
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*session.Session
	def      *session.Session
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSessions caps the number of live sessions. Values below 1 are
// ignored.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server. The default session is built immediately.
func New(factory Factory, opts ...Option) *Server {
	s := &Server{
		factory:     factory,
		version:     "dev",
		logger:      slog.Default(),
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.def = factory(uuid.NewString())
	s.sessions[s.def.ID] = s.def
	activeSessions.Inc()
	return s
}

// Default returns the session used when no header is sent.
func (s *Server) Default() *session.Session { return s.def }

// Router builds the gin engine with every route registered.
//
//	GET    /health
//	GET    /metrics
//	POST   /v1/sessions
//	DELETE /v1/sessions/:id
//	POST   /v1/load
//	GET    /v1/options
//	GET    /v1/selection
//	PUT    /v1/selection
//	GET    /v1/view
//	GET    /v1/chart
//	GET    /v1/chart.png    (?width=&height=)
//	GET    /v1/table        (?sort=stable|value_desc|value_asc|label_asc|label_desc)
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/sessions", s.HandleCreateSession)
		v1.DELETE("/sessions/:id", s.HandleDeleteSession)

		v1.POST("/load", s.HandleLoad)
		v1.GET("/options", s.HandleOptions)
		v1.GET("/selection", s.HandleGetSelection)
		v1.PUT("/selection", s.HandlePutSelection)
		v1.GET("/view", s.HandleView)
		v1.GET("/chart", s.HandleChart)
		v1.GET("/chart.png", s.HandleChartPNG)
		v1.GET("/table", s.HandleTable)
	}
	return router
}

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(c *gin.Context) {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: s.version, Sessions: n})
}

// HandleCreateSession handles POST /v1/sessions.
//
//	201 Created: SessionResponse
//	503 Service Unavailable: the registry is full
func (s *Server) HandleCreateSession(c *gin.Context) {
	sess, err := s.create(uuid.NewString())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "TOO_MANY_SESSIONS"})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{ID: sess.ID, State: sess.State().String()})
}

// HandleDeleteSession handles DELETE /v1/sessions/:id. The default session
// cannot be deleted.
func (s *Server) HandleDeleteSession(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok && id != s.def.ID {
		delete(s.sessions, id)
		activeSessions.Dec()
	}
	s.mu.Unlock()

	switch {
	case !ok:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})
	case id == s.def.ID:
		c.JSON(http.StatusConflict, ErrorResponse{Error: "default session cannot be deleted", Code: "DEFAULT_SESSION"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// HandleLoad handles POST /v1/load.
//
//	200 OK: LoadResponse (outcome "loaded" or "already_loaded")
//	502 Bad Gateway: a resource could not be fetched or parsed
func (s *Server) HandleLoad(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	out, err := sess.Load(c.Request.Context())
	if err != nil {
		s.logger.Warn("load failed", "session", sess.ID, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "LOAD_FAILED"})
		return
	}
	c.JSON(http.StatusOK, LoadResponse{Session: sess.ID, Outcome: out.String(), State: sess.State().String()})
}

// HandleOptions handles GET /v1/options.
func (s *Server) HandleOptions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, OptionsResponse{
		Session: sess.ID,
		State:   sess.State().String(),
		Options: sess.Options(),
	})
}

// HandleGetSelection handles GET /v1/selection.
func (s *Server) HandleGetSelection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, selectionResponse(sess))
}

// HandlePutSelection handles PUT /v1/selection. Absent fields are left as
// they are; an empty list or empty variable clears the field.
//
//	200 OK: SelectionResponse
//	400 Bad Request: body is not a selection update
//	422 Unprocessable Entity: a value is not among the available options
func (s *Server) HandlePutSelection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var u session.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	if err := sess.Apply(u); err != nil {
		var se *session.SelectionError
		if errors.As(err, &se) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_SELECTION",
				Field: string(se.Field),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
		return
	}
	c.JSON(http.StatusOK, selectionResponse(sess))
}

// HandleView handles GET /v1/view.
func (s *Server) HandleView(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

// HandleChart handles GET /v1/chart.
func (s *Server) HandleChart(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	chart := sess.Chart()
	c.JSON(http.StatusOK, ChartResponse{
		Ready:     chart != nil,
		Chart:     chart,
		ByCountry: chart.ByCountry(),
	})
}

// HandleChartPNG handles GET /v1/chart.png. A view that is not ready, or has
// no points, is 204 No Content.
func (s *Server) HandleChartPNG(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	width, _ := strconv.Atoi(c.DefaultQuery("width", "0"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "0"))
	if width > maxImageSide || height > maxImageSide {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image too large", Code: "INVALID_SIZE"})
		return
	}

	var buf bytes.Buffer
	err := render.PNG(&buf, sess.Chart(), width, height)
	switch {
	case errors.Is(err, render.ErrEmptyChart):
		c.Status(http.StatusNoContent)
	case err != nil:
		s.logger.Error("chart render failed", "session", sess.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RENDER_FAILED"})
	default:
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

// HandleTable handles GET /v1/table. sort reorders the summary rows:
// stable (by country), value_desc, value_asc, label_asc or label_desc. The
// default keeps first-seen order.
func (s *Server) HandleTable(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	mode, err := engine.ParseSort(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SORT"})
		return
	}

	view := sess.View()
	resp := TableResponse{Ready: view.Ready, Rows: view.Summary, Table: view.Table}
	if mode != engine.SortFirstSeen {
		resp.Rows = sess.SummaryTable(engine.WithSortBy(mode))
		if view.Ready {
			resp.Table = engine.BuildTable(view.Table.Title, view.Query.Variable, resp.Rows)
		}
	}

	if view.Ready {
		resp.Text = engine.Reply(&engine.ViewData{Ready: true, Query: view.Query, Summary: resp.Rows})
	}
	c.JSON(http.StatusOK, resp)
}

// session resolves the request's session, writing a 400 if the header is
// not a UUID and a 404 if no such session exists.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		return s.def, true
	}
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session ID must be a UUID", Code: "INVALID_SESSION"})
		return nil, false
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})
		return nil, false
	}
	return sess, true
}

// create registers a new session under id.
func (s *Server) create(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxSessions {
		s.logger.Warn("session limit reached", "sessions", len(s.sessions))
		return nil, ErrTooManySessions
	}
	sess := s.factory(id)
	s.sessions[id] = sess
	activeSessions.Inc()
	s.logger.Info("session created", "session", id)
	return sess, nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", code,
			"session", c.GetHeader(SessionHeader),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func selectionResponse(sess *session.Session) SelectionResponse {
	return SelectionResponse{
		Session:   sess.ID,
		Selection: sess.Selection(),
		Status:    sess.Status(),
		Ready:     sess.Query().Ready(),
	}
}
