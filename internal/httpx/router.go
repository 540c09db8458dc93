package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter assembles the API surface. Presentation layers consume
// these endpoints; the pipeline itself lives behind the handlers.
func NewRouter(h *Handlers, logger *zap.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(RequestID)
	mux.Use(RequestLogger(logger))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Get("/weeks", h.getWeeks)
	mux.Get("/reports/weeks", h.getWeeklySummary)
	mux.Get("/reports/weeks/{week}", h.getWeekSummary)
	mux.Get("/reports/automations", h.getAutomations)
	mux.Get("/reports/automations/weekly", h.getWeeklyAutomations)
	mux.Get("/reports/automations/changes", h.getChanges)
	mux.Get("/reports/subjects", h.getSubjects)
	mux.Get("/reports/day-of-week", h.getDayOfWeek)

	mux.Post("/ingest/weekly", h.postIngestWeekly)
	mux.Post("/ingest/mapping", h.postIngestMapping)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
