package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

// Server holds the HTTP API state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	tasks      *schtask.Service
	history    *store.Store
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API over the scheduler service. history may
// be nil; history endpoints then respond 404 and operations go unrecorded.
func NewServer(addr, authToken string, tasks *schtask.Service, history *store.Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		tasks:     tasks,
		history:   history,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{taskName}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteTask)
				r.Get("/exists", s.handleTaskExists)
				r.Post("/run", s.taskActionHandler("run", s.tasks.Run))
				r.Post("/enable", s.taskActionHandler("enable", s.tasks.Enable))
				r.Post("/disable", s.taskActionHandler("disable", s.tasks.Disable))
				r.Post("/stop", s.taskActionHandler("stop", s.tasks.Stop))
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/operations", s.handleListOperations)
			r.Get("/snapshots", s.handleListSnapshots)
		})
	})
}
