// Package server exposes the tutoring engine and the authoring surface
// over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/metrics"
)

// Server holds the HTTP handlers' dependencies.
type Server struct {
	cfg       Config
	dialogue  *dialogue.Router
	authoring *authoring.Service
	media     *media.Store
	log       *logging.Logger
}

// New creates a Server.
func New(cfg Config, router *dialogue.Router, svc *authoring.Service, files *media.Store, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{cfg: cfg, dialogue: router, authoring: svc, media: files, log: log}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.media.Dir()))))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/turn", s.handleTurn)
		r.Post("/reset", s.handleReset)
		r.Post("/step-back", s.handleStepBack)
		r.Post("/lessons/{lessonID}/enter", s.handleEnter)

		r.Post("/courses", s.handleCreateCourse)
		r.Post("/courses/{courseID}/chapters", s.handleAddChapter)
		r.Post("/courses/{courseID}/reorder", s.handleReorder)
		r.Post("/courses/{courseID}/publish", s.handlePublish)
		r.Post("/courses/{courseID}/enroll", s.handleEnroll)
		r.Get("/courses/{courseID}/chapters", s.handleListChapters)
		r.Get("/courses/{courseID}/certificate", s.handleCertificate)
		r.Post("/courses/{courseID}/reviews", s.handleSubmitReview)
		r.Get("/courses/{courseID}/reviews", s.handleListReviews)

		r.Put("/chapters/{lessonID}", s.handleEditChapter)
		r.Delete("/chapters/{lessonID}", s.handleDeleteChapter)
	})
	return r
}

// observe records request latency by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
