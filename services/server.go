package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	"github.com/krshsl/destiny/backend/repository"
	ws "github.com/krshsl/destiny/backend/websocket"
)

// Infrastructure carries the connections main opens before the server is built.
// Any field may be nil; the services degrade to their fallbacks.
type Infrastructure struct {
	Repo    *repository.GORMRepository
	Cache   *Cache
	LLM     TextGenerator
	Events  EventPublisher
	Storage ObjectStore
	Queue   *asynq.Client
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server holds all server dependencies
type Server struct {
	config *Config
	infra  Infrastructure

	authService      *AuthService
	authEndpoints    *AuthEndpoints
	endpoints        []routeRegistrar
	interviews       *InterviewService
	websocketHandler *WebSocketHandler
	taskMux          *asynq.ServeMux
	wsHub            *ws.Hub
	upgrader         websocket.Upgrader
}

func NewServer(config *Config, infra Infrastructure) *Server {
	if infra.Events == nil {
		infra.Events = NoopPublisher{}
	}
	return &Server{
		config: config,
		infra:  infra,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// TaskMux exposes the task handlers so main can run a worker on them
func (s *Server) TaskMux() *asynq.ServeMux {
	return s.taskMux
}

// InitializeServices builds every service on top of the infrastructure
func (s *Server) InitializeServices(ctx context.Context) error {
	s.wsHub = ws.NewHub()
	go s.wsHub.Run()
	notifier := NewHubNotifier(s.wsHub)

	readiness := NewReadinessCalculator(s.config.Scoring.VerifiedBonus)
	ai := NewAIService(s.infra.LLM)
	var interviewStore InterviewStore
	if s.infra.Repo != nil {
		interviewStore = s.infra.Repo
	}
	s.interviews = NewInterviewService(s.infra.LLM, interviewStore, readiness, s.config.Scoring)
	s.websocketHandler = NewWebSocketHandler(s.interviews)
	go s.interviews.RunSweeper(ctx)

	if s.infra.Repo == nil {
		slog.Warn("Database not configured, only the health endpoint is served")
		return nil
	}
	repo := s.infra.Repo
	cache := s.infra.Cache

	insights := NewInsightsService(repo, cache)
	s.taskMux = asynq.NewServeMux()
	NewTaskHandlers(repo, s.infra.Storage, insights, readiness, cache).Register(s.taskMux)
	tasks := NewTaskDispatcher(s.infra.Queue, s.taskMux)
	s.interviews.WithSideEffects(tasks, s.infra.Events, notifier, cache)

	students := NewStudentService(repo, readiness, s.infra.Storage, ai, cache)
	verification := NewVerificationService(repo, readiness, s.infra.Events, notifier, cache)
	recruiters := NewRecruiterService(repo, s.infra.Events, notifier)
	matching := NewMatchingService(repo, ai, cache)
	tests := NewTestService(repo, cache)
	initial := NewInitialAssessmentService(repo, cache)
	assessments := NewAssessmentService(repo, ai, notifier)

	if s.config.JWT.Secret == "" {
		slog.Warn("JWT secret not configured, API routes are disabled")
	} else {
		s.authService = NewAuthService(repo, s.config.JWT.Secret, s.config.IsProduction())
		s.authEndpoints = NewAuthEndpoints(s.authService)
	}

	s.endpoints = []routeRegistrar{
		NewStudentEndpoints(students, ai, tasks),
		NewVerificationEndpoints(verification),
		NewAIEndpoints(ai, students, insights, tasks),
		NewInterviewEndpoints(s.interviews),
		NewRecruiterEndpoints(recruiters, matching),
		NewTestEndpoints(tests, initial),
		NewAssessmentEndpoints(assessments),
	}

	if s.config.Database.Seed {
		if err := NewDatabaseSeeder(repo, readiness).SeedDatabase(ctx); err != nil {
			slog.Error("Database seeding failed", "error", err)
		}
	}
	slog.Info("Services initialized", "llm", s.infra.LLM != nil, "cache", cache != nil, "queue", s.infra.Queue != nil)
	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		if s.authService == nil {
			return
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.authEndpoints.LoginHandler)
			r.Post("/signup", s.authEndpoints.SignupHandler)
			r.Post("/refresh", s.authEndpoints.RefreshHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Post("/logout", s.authEndpoints.LogoutHandler)
				r.Get("/me", s.authEndpoints.MeHandler)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Get("/ws", s.websocketHandlerFunc)
			for _, e := range s.endpoints {
				e.RegisterRoutes(r)
			}
		})
	})

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	slog.Info("Server exited")
	return nil
}

// CheckOrigin validates the origin of WebSocket connections against a
// comma separated allow list. An empty list rejects everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"
	cacheStatus := "not configured"

	if s.infra.Repo != nil {
		if sqlDB, err := s.infra.Repo.DB().DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}
	if s.infra.Cache != nil {
		if err := s.infra.Cache.Ping(r.Context()); err != nil {
			cacheStatus = "down"
			status = "degraded"
		} else {
			cacheStatus = "up"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"database":    dbStatus,
		"redis":       cacheStatus,
		"connections": s.connectedUsers(),
	})
	slog.Debug("Health check", "status", status, "database", dbStatus, "redis", cacheStatus)
}

func (s *Server) connectedUsers() int {
	if s.wsHub == nil {
		return 0
	}
	return s.wsHub.ConnectedUsers()
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Destiny API v1", "version": "1.0.0"})
}

// websocketHandlerFunc upgrades an authenticated request and hands the
// connection to the hub. The pumps own the connection from here on.
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := s.wsHub.RegisterClient(conn, user.ID, user.Role)
	client.MessageHandler = s.websocketHandler.HandleWebSocketMessage
	slog.Info("WebSocket connection established", "user_id", user.ID, "role", user.Role)

	go client.WritePump()
	go client.ReadPump()
}
