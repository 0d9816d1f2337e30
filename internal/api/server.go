package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docanchor/internal/annotation"
	"github.com/dgallion1/docanchor/internal/config"
	"github.com/dgallion1/docanchor/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for docanchor.
type Server struct {
	router      chi.Router
	sessions    *session.Manager
	annotations annotation.Store
	log         *slog.Logger
	cfg         config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *session.Manager, annotations annotation.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions:    sessions,
		annotations: annotations,
		log:         log,
		cfg:         cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/sessions", s.handleOpenSession)
		r.Get("/api/sessions", s.handleListSessions)

		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionContext)

			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)
			r.Get("/xml", s.handleSessionXML)
			r.Put("/document", s.handleReplaceDocument)

			r.Post("/anchors/encode", s.handleEncode)
			r.Post("/anchors/decode", s.handleDecode)

			r.Put("/nodes/{nodeID}", s.handleReplaceNode)
			r.Delete("/nodes/{nodeID}", s.handleDeleteNode)
			r.Put("/nodes/{nodeID}/attributes/{name}", s.handleSetAttribute)

			r.Get("/annotations", s.handleListAnnotations)
			r.Post("/annotations", s.handleCreateAnnotation)
			r.Get("/annotations/{annotationID}", s.handleGetAnnotation)
			r.Delete("/annotations/{annotationID}", s.handleDeleteAnnotation)

			r.Get("/stream", s.handleStream)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
