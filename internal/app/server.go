package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/contexta/internal/api/handlers"
)

const (
	requestTimeout = 60 * time.Second
	// Uploads run the whole pipeline before responding.
	uploadTimeout = 10 * time.Minute
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewRouter builds and wires all routes.
func NewRouter(docs *handlers.DocumentHandler, chat *handlers.ChatHandler, health *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", health.Healthz)

	r.Route("/api", func(api chi.Router) {
		api.With(middleware.Timeout(uploadTimeout)).Post("/documents", docs.UploadDocument)

		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(requestTimeout))
			g.Get("/documents", docs.GetDocuments)
			g.Get("/documents/incomplete", docs.GetIncompleteDocuments)
			g.Get("/documents/{id}", docs.GetDocument)
			g.Post("/retrieve", chat.Retrieve)
			g.Post("/chat/query", chat.QueryDocument)
		})
	})
	return r
}

func NewServer(port string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "http"),
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
