package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/email-insights/internal/service"
)

const (
	defaultCacheTTL  = 10 * time.Minute
	defaultMinVolume = int64(0)
)

// Handlers serves the report and ingestion API. Report reads go
// through the redis cache; ingestion writes go straight to the store.
type Handlers struct {
	reports  ReportService
	ingestor Ingestor
	cache    Cacher
	logger   *zap.Logger
	sfGroup  singleflight.Group
	cacheTTL time.Duration
}

func NewHandlers(reports ReportService, ingestor Ingestor, cache Cacher, logger *zap.Logger, ttl time.Duration) *Handlers {
	if reports == nil {
		panic("nil ReportService provided to NewHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Handlers{
		reports:  reports,
		ingestor: ingestor,
		cache:    cache,
		logger:   logger.Named("http-handler"),
		cacheTTL: ttl,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) handleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNoData):
		h.logger.Info("no data for request", zap.String("op", op))
		writeError(w, http.StatusNotFound, "no weekly data available for this report")
	case errors.Is(err, service.ErrNoMapping):
		h.logger.Info("mapping not loaded", zap.String("op", op))
		writeError(w, http.StatusNotFound, "automation mapping not loaded")
	case errors.Is(err, service.ErrStorageFailure):
		h.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
	default:
		h.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s failed", op))
	}
}

func minVolumeParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("min_volume")
	if raw == "" {
		return defaultMinVolume, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("min_volume must be a non-negative integer")
	}
	return v, nil
}

// cacheKey appends the store revision to a report cache key. Ingestion
// bumps the metadata timestamps, so entries cached before an ingest are
// never read again and simply lapse by TTL.
func (h *Handlers) cacheKey(ctx context.Context, base string) string {
	if h.cache == nil {
		return base
	}
	info, err := h.reports.GetAvailableWeeks(ctx)
	if err != nil {
		h.logger.Warn("store revision lookup failed, caching without revision", zap.Error(err))
		return base + ":rev=0.0"
	}
	unix := func(t *time.Time) int64 {
		if t == nil {
			return 0
		}
		return t.Unix()
	}
	return fmt.Sprintf("%s:rev=%d.%d", base, unix(info.LastUpdated), unix(info.AutomationMapUpdated))
}

func (h *Handlers) getWeeks(w http.ResponseWriter, r *http.Request) {
	info, err := h.reports.GetAvailableWeeks(r.Context())
	if err != nil {
		h.handleError(w, "GetAvailableWeeks", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) getWeeklySummary(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(r.Context(), "reports:weekly_summary")
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) ([]service.WeekSummary, error) {
			return h.reports.GetAllWeeksSummary(ctx)
		})
	if err != nil {
		h.handleError(w, "GetAllWeeksSummary", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getWeekSummary(w http.ResponseWriter, r *http.Request) {
	week := chi.URLParam(r, "week")

	key := h.cacheKey(r.Context(), fmt.Sprintf("reports:week:%s", week))
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) (service.WeekSummary, error) {
			return h.reports.GetWeekSummary(ctx, week)
		})
	if err != nil {
		h.handleError(w, "GetWeekSummary", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getAutomations(w http.ResponseWriter, r *http.Request) {
	minVolume, err := minVolumeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := h.cacheKey(r.Context(), fmt.Sprintf("reports:automations:min=%d", minVolume))
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) ([]service.AutomationPerformance, error) {
			return h.reports.GetAutomationPerformance(ctx, minVolume)
		})
	if err != nil {
		h.handleError(w, "GetAutomationPerformance", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getWeeklyAutomations(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(r.Context(), "reports:automations_weekly")
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) ([]service.WeeklyAutomationPerformance, error) {
			return h.reports.GetWeeklyAutomationPerformance(ctx)
		})
	if err != nil {
		h.handleError(w, "GetWeeklyAutomationPerformance", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getChanges(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(r.Context(), "reports:week_over_week")
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) ([]service.TrendRecord, error) {
			return h.reports.GetWeekOverWeekChanges(ctx)
		})
	if err != nil {
		h.handleError(w, "GetWeekOverWeekChanges", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getSubjects(w http.ResponseWriter, r *http.Request) {
	minVolume, err := minVolumeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := h.cacheKey(r.Context(), fmt.Sprintf("reports:subjects:min=%d", minVolume))
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) ([]service.SubjectPerformance, error) {
			return h.reports.AnalyzeSubjectPerformance(ctx, minVolume)
		})
	if err != nil {
		h.handleError(w, "AnalyzeSubjectPerformance", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getDayOfWeek(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(r.Context(), "reports:day_of_week")
	out, err := findAndCache(r.Context(), h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(ctx context.Context) (service.DayOfWeekReport, error) {
			return h.reports.GetDayOfWeekPerformance(ctx)
		})
	if err != nil {
		h.handleError(w, "GetDayOfWeekPerformance", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) postIngestWeekly(w http.ResponseWriter, r *http.Request) {
	if h.ingestor == nil {
		writeError(w, http.StatusNotImplemented, "ingestion disabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter required")
		return
	}
	label := r.URL.Query().Get("label")

	week, rows, err := h.ingestor.LoadWeeklyData(r.Context(), path, label)
	if err != nil {
		h.logger.Error("weekly ingest failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"week": week, "rows": rows})
}

func (h *Handlers) postIngestMapping(w http.ResponseWriter, r *http.Request) {
	if h.ingestor == nil {
		writeError(w, http.StatusNotImplemented, "ingestion disabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter required")
		return
	}

	entries, err := h.ingestor.LoadMapping(r.Context(), path)
	if err != nil {
		h.logger.Error("mapping ingest failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": entries})
}
