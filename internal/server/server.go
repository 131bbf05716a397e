package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/macrogi/macrogi-server/internal/logger"
)

// Server wires the HTTP API. All state lives in the injected services; the
// server itself holds nothing mutable between requests.
type Server struct {
	advisor   AdvisorHandler
	dashboard DashboardHandler
	glucose   GlucoseHandler
	diary     DiaryHandler

	httpServer *http.Server
}

// New assembles the router and handlers
func New(addr string, profiles ProfileManager, advisor DoseAdvisor, dashboard DashboardAggregator, glucose GlucoseStatsProvider, diary DiaryService) *Server {
	s := &Server{
		advisor:   AdvisorHandler{Profiles: profiles, Advisor: advisor},
		dashboard: DashboardHandler{Dashboard: dashboard},
		glucose:   GlucoseHandler{Glucose: glucose},
		diary:     DiaryHandler{Diary: diary},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.advisor.Register)
		r.Put("/profile-params", s.advisor.SetParams)
		r.Get("/auto-isf-icr", s.advisor.AutoParams)
		r.Post("/insulin-advice", s.advisor.Advice)

		r.Get("/glucose-stats", s.glucose.Stats)
		r.Post("/cgm", s.glucose.AddReading)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/overall", s.dashboard.Overall)
			r.Get("/weekly", s.dashboard.Weekly)
			r.Get("/daily", s.dashboard.Daily)
		})

		r.Post("/analyze-food", s.diary.Analyze)
		r.Post("/scan-food", s.diary.ScanFood)
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", s.diary.SaveEntry)
			r.Get("/", s.diary.ListEntries)
			r.Get("/{id}/nutrients", s.diary.Nutrients)
			r.Delete("/{id}", s.diary.DeleteEntry)
		})
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
