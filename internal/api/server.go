package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/eu-grants-monitor/internal/auth"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/metrics"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/monitor"
	"github.com/david/eu-grants-monitor/internal/prefill"
)

const jobTimeout = 30 * time.Minute

// Store is the read and account side of the database the API serves.
type Store interface {
	Ping(ctx context.Context) error
	ListGrants(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetGrant(ctx context.Context, id string) (*models.Grant, error)
	ListMonitoringSessions(ctx context.Context, limit int) ([]models.MonitoringSession, error)
	ListAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	GetStats(ctx context.Context) (*db.Stats, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error)
	UpdateApplicationStatus(ctx context.Context, userID, id uuid.UUID, to models.ApplicationStatus) (*models.Application, error)
}

type Options struct {
	Store          Store
	Auth           *auth.Service
	Monitor        *monitor.Monitor
	Metrics        *metrics.Metrics
	Profile        models.BusinessProfile
	AdminSecret    string
	AllowedOrigins []string
	Now            func() time.Time
}

type Server struct {
	Store   Store
	Auth    *auth.Service
	Monitor *monitor.Monitor
	Metrics *metrics.Metrics
	Echo    *echo.Echo

	profile     models.BusinessProfile
	adminSecret string
	now         func() time.Time
	generator   *prefill.Generator

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(opts Options) (*Server, error) {
	secret, err := resolveAdminSecret(opts.AdminSecret)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if opts.Metrics != nil {
		e.Use(opts.Metrics.EchoMiddleware())
	}

	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:       opts.Store,
		Auth:        opts.Auth,
		Monitor:     opts.Monitor,
		Metrics:     opts.Metrics,
		Echo:        e,
		profile:     opts.Profile,
		adminSecret: secret,
		now:         opts.Now,
		generator:   prefill.NewGenerator(opts.Now),
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	if s.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	api := s.Echo.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.GET("/grants", s.handleListGrants)
	api.GET("/grants/:id", s.handleGetGrant)
	api.POST("/grants/:id/assist", s.handleAssist)
	api.GET("/grants/:id/budget.xlsx", s.handleBudgetWorkbook)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/alerts", s.handleListAlerts)

	// Admin routes
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/monitor", s.handleTriggerMonitor)
	admin.GET("/admin/job/:id", s.handleJobStatus)

	// Auth routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected routes
	apps := api.Group("/applications")
	apps.Use(s.Auth.Middleware)
	apps.GET("", s.handleListApplications)
	apps.POST("", s.handleCreateApplication)
	apps.PATCH("/:id", s.handleUpdateApplication)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "database unavailable"})
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleStatus(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := map[string]any{
		"state": monitor.StateIdle,
		"stats": stats,
	}
	if s.Monitor != nil {
		resp["state"] = s.Monitor.State()
		if last, ok := s.Monitor.LastReport(); ok {
			resp["last_cycle"] = map[string]any{
				"session_id":          last.SessionID,
				"status":              last.Status,
				"completed_at":        last.CompletedAt,
				"grants_processed":    last.GrantsProcessed,
				"high_priority_count": last.HighPriorityCount,
				"alerts_sent":         last.AlertsSent,
				"errors":              last.Errors,
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTriggerMonitor(c echo.Context) error {
	if s.Monitor == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "monitor not configured"})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"error":  "A monitoring cycle is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP request; the job gets its
	// own timeout.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), jobTimeout,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: s.now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	profile := s.profile
	go func() {
		defer jobCancel()
		report, err := s.Monitor.RunCycle(jobCtx, profile)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = s.now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[monitor-job %s] failed: %v", jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = map[string]any{
			"session_id":          report.SessionID,
			"grants_found":        report.GrantsFound,
			"grants_processed":    report.GrantsProcessed,
			"high_priority_count": report.HighPriorityCount,
			"alerts_sent":         report.AlertsSent,
			"stored":              report.Stored,
			"errors":              report.Errors,
		}
		log.Printf("[monitor-job %s] completed: processed=%d alerts=%d", jobID, report.GrantsProcessed, report.AlertsSent)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Monitoring cycle started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if s.isAdminSecret(adminHeader) {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if s.isAdminSecret(authHeader[7:]) {
				return next(c)
			}
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) isAdminSecret(candidate string) bool {
	return candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1
}

func resolveAdminSecret(configured string) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func queryFloat(c echo.Context, name string) (float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number", name)
	}
	return v, nil
}
