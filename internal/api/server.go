// Package api serves the request/response transport over gin.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorrelay/internal/logging"
	"tutorrelay/internal/metrics"
	appErrors "tutorrelay/pkg/errors"
	"tutorrelay/pkg/interfaces"
	"tutorrelay/pkg/types"
)

const healthCheckTimeout = 5 * time.Second

// StatsProvider reports counters for the health document.
type StatsProvider interface {
	Stats() map[string]int
}

// Dependencies are the components the HTTP layer delegates to. Only
// Registry and Sessions are required.
type Dependencies struct {
	Registry  interfaces.TutorRegistry
	Sessions  interfaces.SessionRequester
	Directory StatsProvider
	Journal   interfaces.Journal
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// Sweep runs a deactivation pass before tutors are listed. When nil the
	// registry is swept against the wall clock.
	Sweep func() []string

	// WebSocket upgrades GET /ws. The route is not mounted when nil.
	WebSocket http.HandlerFunc

	AllowedOrigins []string
}

// Server is a thin HTTP layer: it binds JSON, calls into the registry and
// relay engine, and renders their results.
type Server struct {
	deps   Dependencies
	logger *zap.Logger
	engine *gin.Engine
}

// NewServer builds the gin engine and mounts every route.
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		deps:   deps,
		logger: logger,
		engine: gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.engine.Use(cors.New(corsConfig(s.deps.AllowedOrigins)))
	s.engine.Use(logging.RequestID())
	s.engine.Use(logging.GinMiddleware(s.logger))
	s.engine.Use(metricsMiddleware(s.deps.Metrics))
	s.engine.Use(gin.Recovery())
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
		ExposeHeaders: []string{logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) setupRoutes() {
	s.engine.POST("/addTutor", s.addTutor)
	s.engine.GET("/tutors", s.listTutors)
	s.engine.POST("/requestSession", s.requestSession)
	s.engine.GET("/sessions", s.listSessions)
	s.engine.GET("/health", s.healthCheck)

	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	if s.deps.WebSocket != nil {
		s.engine.GET("/ws", gin.WrapF(s.deps.WebSocket))
	}
}

// ServeHTTP lets the server be mounted directly on an http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type addTutorRequest struct {
	Tutor *types.TutorInput `json:"tutor"`
}

type tutorResponse struct {
	Message string       `json:"message"`
	Tutor   *types.Tutor `json:"tutor"`
}

type sessionResponse struct {
	Message string         `json:"message"`
	Session *types.Session `json:"session"`
}

// HealthResponse is the /health document.
type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Journal     string         `json:"journal"`
	Connections map[string]int `json:"connections"`
	Registry    map[string]int `json:"registry"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// POST /addTutor
func (s *Server) addTutor(c *gin.Context) {
	var req addTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid tutor payload"))
		return
	}
	if req.Tutor == nil {
		s.respondError(c, appErrors.ErrInvalidInput)
		return
	}

	tutor, created, err := s.deps.Registry.UpsertTutor(*req.Tutor)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if created {
		c.JSON(http.StatusCreated, tutorResponse{Message: "Tutor added", Tutor: tutor})
		return
	}
	c.JSON(http.StatusOK, tutorResponse{Message: "Tutor updated", Tutor: tutor})
}

// GET /tutors
func (s *Server) listTutors(c *gin.Context) {
	if s.deps.Sweep != nil {
		s.deps.Sweep()
	} else {
		s.deps.Registry.Sweep(time.Now())
	}
	c.JSON(http.StatusOK, nonNilTutors(s.deps.Registry.ListTutors()))
}

// POST /requestSession
func (s *Server) requestSession(c *gin.Context) {
	var req types.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			s.respondError(c, appErrors.ErrMissingFields)
			return
		}
		s.respondError(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid session request payload"))
		return
	}

	session, err := s.deps.Sessions.RequestSession(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{Message: "Session requested successfully", Session: session})
}

// GET /sessions
func (s *Server) listSessions(c *gin.Context) {
	sessions := s.deps.Registry.ListSessions()
	if sessions == nil {
		sessions = []types.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Journal:   "disabled",
		Registry:  s.deps.Registry.Stats(),
	}
	if s.deps.Directory != nil {
		resp.Connections = s.deps.Directory.Stats()
	}
	if s.deps.Journal != nil {
		resp.Journal = "healthy"
		if err := s.deps.Journal.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Journal = "error: " + err.Error()
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) respondError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", logging.RequestIDValue(c)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(appErr.Status, errorResponse{Error: appErr.Message, Code: appErr.Code})
}

func nonNilTutors(tutors []types.Tutor) []types.Tutor {
	if tutors == nil {
		return []types.Tutor{}
	}
	return tutors
}
