package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"occtitles/pkg/titles"
	"occtitles/pkg/version"
)

// writeTimeout bounds ordinary responses. Job handlers extend their own
// deadline from the configured poll budget.
const writeTimeout = 2 * time.Minute

// Handlers groups the handlers mounted by NewRouter.
type Handlers struct {
	Settings *SettingsHandler
	Stats    *StatsHandler
	Titles   *TitlesHandler
}

// NewRouter builds the route table. shutdown may be nil, which disables the shutdown endpoint.
func NewRouter(h Handlers, shutdown func()) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", handleVersion)
		r.Get("/styles", handleStyles)
		r.Method(http.MethodGet, "/stats", h.Stats)

		r.Get("/settings", h.Settings.HandleGet)
		r.Post("/settings", h.Settings.HandleSet)

		r.Post("/titles", h.Titles.HandleGenerate)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Titles.HandleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Titles.HandleGetSession)
				r.Delete("/", h.Titles.HandleDeleteSession)
				r.Put("/title", h.Titles.HandleSetTitle)
				r.Post("/generate", h.Titles.HandleSessionGenerate)
				r.Post("/apply", h.Titles.HandleApply)
				r.Post("/revert", h.Titles.HandleRevert)
				r.Get("/events", h.Titles.HandleEvents)
			})
		})

		if shutdown != nil {
			r.Post("/shutdown", func(w http.ResponseWriter, r *http.Request) {
				slog.Info("Graceful shutdown initiated via API")
				w.WriteHeader(http.StatusOK)
				if _, err := w.Write([]byte("Shutting down...")); err != nil {
					slog.Error("Failed to write shutdown response", "error", err)
				}
				go func() {
					time.Sleep(100 * time.Millisecond)
					shutdown()
				}()
			})
		}
	})

	return r
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(h, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func handleStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, titles.Styles)
}
