package httpx

import (
	"context"
	"time"

	"github.com/godilite/email-insights/internal/service"
)

// Cacher is the cache surface used for report read-through caching.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Close() error
}

// ReportService is the read API exposed over HTTP.
type ReportService interface {
	GetAvailableWeeks(ctx context.Context) (service.WeeksInfo, error)
	GetAllWeeksSummary(ctx context.Context) ([]service.WeekSummary, error)
	GetWeekSummary(ctx context.Context, week string) (service.WeekSummary, error)
	GetAutomationPerformance(ctx context.Context, minVolume int64) ([]service.AutomationPerformance, error)
	GetWeeklyAutomationPerformance(ctx context.Context) ([]service.WeeklyAutomationPerformance, error)
	GetWeekOverWeekChanges(ctx context.Context) ([]service.TrendRecord, error)
	AnalyzeSubjectPerformance(ctx context.Context, minVolume int64) ([]service.SubjectPerformance, error)
	GetDayOfWeekPerformance(ctx context.Context) (service.DayOfWeekReport, error)
}

// Ingestor is the write API exposed over HTTP. Paths are server-local;
// upload handling lives outside this service.
type Ingestor interface {
	LoadWeeklyData(ctx context.Context, path, label string) (string, int, error)
	LoadMapping(ctx context.Context, path string) (int, error)
}
