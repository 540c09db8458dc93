package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/email-insights/internal/httpx"
	"github.com/godilite/email-insights/internal/service"
)

type mockReports struct {
	GetAvailableWeeksFunc              func(ctx context.Context) (service.WeeksInfo, error)
	GetAllWeeksSummaryFunc             func(ctx context.Context) ([]service.WeekSummary, error)
	GetWeekSummaryFunc                 func(ctx context.Context, week string) (service.WeekSummary, error)
	GetAutomationPerformanceFunc       func(ctx context.Context, minVolume int64) ([]service.AutomationPerformance, error)
	GetWeeklyAutomationPerformanceFunc func(ctx context.Context) ([]service.WeeklyAutomationPerformance, error)
	GetWeekOverWeekChangesFunc         func(ctx context.Context) ([]service.TrendRecord, error)
	AnalyzeSubjectPerformanceFunc      func(ctx context.Context, minVolume int64) ([]service.SubjectPerformance, error)
	GetDayOfWeekPerformanceFunc        func(ctx context.Context) (service.DayOfWeekReport, error)
}

func (m *mockReports) GetAvailableWeeks(ctx context.Context) (service.WeeksInfo, error) {
	if m.GetAvailableWeeksFunc != nil {
		return m.GetAvailableWeeksFunc(ctx)
	}
	return service.WeeksInfo{}, errors.New("GetAvailableWeeksFunc not implemented")
}

func (m *mockReports) GetAllWeeksSummary(ctx context.Context) ([]service.WeekSummary, error) {
	if m.GetAllWeeksSummaryFunc != nil {
		return m.GetAllWeeksSummaryFunc(ctx)
	}
	return nil, errors.New("GetAllWeeksSummaryFunc not implemented")
}

func (m *mockReports) GetWeekSummary(ctx context.Context, week string) (service.WeekSummary, error) {
	if m.GetWeekSummaryFunc != nil {
		return m.GetWeekSummaryFunc(ctx, week)
	}
	return service.WeekSummary{}, errors.New("GetWeekSummaryFunc not implemented")
}

func (m *mockReports) GetAutomationPerformance(ctx context.Context, minVolume int64) ([]service.AutomationPerformance, error) {
	if m.GetAutomationPerformanceFunc != nil {
		return m.GetAutomationPerformanceFunc(ctx, minVolume)
	}
	return nil, errors.New("GetAutomationPerformanceFunc not implemented")
}

func (m *mockReports) GetWeeklyAutomationPerformance(ctx context.Context) ([]service.WeeklyAutomationPerformance, error) {
	if m.GetWeeklyAutomationPerformanceFunc != nil {
		return m.GetWeeklyAutomationPerformanceFunc(ctx)
	}
	return nil, errors.New("GetWeeklyAutomationPerformanceFunc not implemented")
}

func (m *mockReports) GetWeekOverWeekChanges(ctx context.Context) ([]service.TrendRecord, error) {
	if m.GetWeekOverWeekChangesFunc != nil {
		return m.GetWeekOverWeekChangesFunc(ctx)
	}
	return nil, errors.New("GetWeekOverWeekChangesFunc not implemented")
}

func (m *mockReports) AnalyzeSubjectPerformance(ctx context.Context, minVolume int64) ([]service.SubjectPerformance, error) {
	if m.AnalyzeSubjectPerformanceFunc != nil {
		return m.AnalyzeSubjectPerformanceFunc(ctx, minVolume)
	}
	return nil, errors.New("AnalyzeSubjectPerformanceFunc not implemented")
}

func (m *mockReports) GetDayOfWeekPerformance(ctx context.Context) (service.DayOfWeekReport, error) {
	if m.GetDayOfWeekPerformanceFunc != nil {
		return m.GetDayOfWeekPerformanceFunc(ctx)
	}
	return service.DayOfWeekReport{}, errors.New("GetDayOfWeekPerformanceFunc not implemented")
}

type mockIngestor struct {
	LoadWeeklyDataFunc func(ctx context.Context, path, label string) (string, int, error)
	LoadMappingFunc    func(ctx context.Context, path string) (int, error)
}

func (m *mockIngestor) LoadWeeklyData(ctx context.Context, path, label string) (string, int, error) {
	if m.LoadWeeklyDataFunc != nil {
		return m.LoadWeeklyDataFunc(ctx, path, label)
	}
	return "", 0, errors.New("LoadWeeklyDataFunc not implemented")
}

func (m *mockIngestor) LoadMapping(ctx context.Context, path string) (int, error) {
	if m.LoadMappingFunc != nil {
		return m.LoadMappingFunc(ctx, path)
	}
	return 0, errors.New("LoadMappingFunc not implemented")
}

// mapCacher is an in-memory Cacher with redis miss semantics.
type mapCacher struct {
	data map[string][]byte
}

func newMapCacher() *mapCacher {
	return &mapCacher{data: make(map[string][]byte)}
}

func (c *mapCacher) Get(ctx context.Context, key string, dest any) error {
	raw, ok := c.data[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mapCacher) Close() error { return nil }

func (c *mapCacher) put(t *testing.T, key string, value any) {
	t.Helper()
	require.NoError(t, c.Set(context.Background(), key, value, 0))
}

func newServer(t *testing.T, reports *mockReports, ingestor httpx.Ingestor, cache httpx.Cacher) http.Handler {
	t.Helper()
	h := httpx.NewHandlers(reports, ingestor, cache, zap.NewNop(), time.Minute)
	return httpx.NewRouter(h, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestGetWeeksEndpoint(t *testing.T) {
	reports := &mockReports{
		GetAvailableWeeksFunc: func(ctx context.Context) (service.WeeksInfo, error) {
			return service.WeeksInfo{Weeks: []string{"Week 9", "Week 10"}}, nil
		},
	}
	srv := newServer(t, reports, nil, nil)

	rec := do(t, srv, http.MethodGet, "/weeks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var info service.WeeksInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, []string{"Week 9", "Week 10"}, info.Weeks)
}

func TestGetWeeklySummaryEndpoint(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		reports := &mockReports{
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				return []service.WeekSummary{{Week: "Week 9"}}, nil
			},
		}
		srv := newServer(t, reports, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		require.Equal(t, http.StatusOK, rec.Code)

		var out []service.WeekSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Week 9", out[0].Week)
	})

	t.Run("no data maps to 404", func(t *testing.T) {
		reports := &mockReports{
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				return nil, service.ErrNoData
			},
		}
		srv := newServer(t, reports, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("storage failure maps to 500", func(t *testing.T) {
		reports := &mockReports{
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				return nil, service.ErrStorageFailure
			},
		}
		srv := newServer(t, reports, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetWeekSummaryEndpoint(t *testing.T) {
	reports := &mockReports{
		GetWeekSummaryFunc: func(ctx context.Context, week string) (service.WeekSummary, error) {
			if week != "Week 9" {
				return service.WeekSummary{}, service.ErrNoData
			}
			return service.WeekSummary{Week: week}, nil
		},
	}
	srv := newServer(t, reports, nil, nil)

	rec := do(t, srv, http.MethodGet, "/reports/weeks/Week%209")
	require.Equal(t, http.StatusOK, rec.Code)

	var out service.WeekSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Week 9", out.Week)

	rec = do(t, srv, http.MethodGet, "/reports/weeks/Week%2099")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAutomationsEndpoint(t *testing.T) {
	t.Run("volume threshold forwarded", func(t *testing.T) {
		var gotMinVolume int64 = -1
		reports := &mockReports{
			GetAutomationPerformanceFunc: func(ctx context.Context, minVolume int64) ([]service.AutomationPerformance, error) {
				gotMinVolume = minVolume
				return []service.AutomationPerformance{{Automation: "G1"}}, nil
			},
		}
		srv := newServer(t, reports, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/automations?min_volume=100")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(100), gotMinVolume)
	})

	t.Run("bad threshold rejected", func(t *testing.T) {
		srv := newServer(t, &mockReports{}, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/automations?min_volume=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, srv, http.MethodGet, "/reports/automations?min_volume=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing mapping maps to 404", func(t *testing.T) {
		reports := &mockReports{
			GetAutomationPerformanceFunc: func(ctx context.Context, minVolume int64) ([]service.AutomationPerformance, error) {
				return nil, service.ErrNoMapping
			},
		}
		srv := newServer(t, reports, nil, nil)

		rec := do(t, srv, http.MethodGet, "/reports/automations")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetDayOfWeekEndpoint(t *testing.T) {
	reports := &mockReports{
		GetDayOfWeekPerformanceFunc: func(ctx context.Context) (service.DayOfWeekReport, error) {
			return service.DayOfWeekReport{Available: false}, nil
		},
	}
	srv := newServer(t, reports, nil, nil)

	rec := do(t, srv, http.MethodGet, "/reports/day-of-week")
	require.Equal(t, http.StatusOK, rec.Code)

	var out service.DayOfWeekReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Available)
}

func TestReportCaching(t *testing.T) {
	updated := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	weeksInfo := func(ctx context.Context) (service.WeeksInfo, error) {
		return service.WeeksInfo{Weeks: []string{"Week 9"}, LastUpdated: &updated}, nil
	}
	revKey := fmt.Sprintf("reports:weekly_summary:rev=%d.0", updated.Unix())

	t.Run("cached value served without hitting the service", func(t *testing.T) {
		cache := newMapCacher()
		cache.put(t, revKey, []service.WeekSummary{{Week: "Cached week"}})

		calls := 0
		reports := &mockReports{
			GetAvailableWeeksFunc: weeksInfo,
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				calls++
				return []service.WeekSummary{{Week: "Fresh week"}}, nil
			},
		}
		srv := newServer(t, reports, nil, cache)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		require.Equal(t, http.StatusOK, rec.Code)

		var out []service.WeekSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Cached week", out[0].Week)
		assert.Zero(t, calls)
	})

	t.Run("cache miss falls through to the service", func(t *testing.T) {
		cache := newMapCacher()
		reports := &mockReports{
			GetAvailableWeeksFunc: weeksInfo,
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				return []service.WeekSummary{{Week: "Fresh week"}}, nil
			},
		}
		srv := newServer(t, reports, nil, cache)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		require.Equal(t, http.StatusOK, rec.Code)

		var out []service.WeekSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Fresh week", out[0].Week)
	})

	t.Run("ingest bumps the store revision so reads see fresh data", func(t *testing.T) {
		cache := newMapCacher()

		// mutable backing state shared by the report and ingest mocks
		lastUpdated := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
		summaries := []service.WeekSummary{{Week: "Week 9"}}

		reports := &mockReports{
			GetAvailableWeeksFunc: func(ctx context.Context) (service.WeeksInfo, error) {
				t := lastUpdated
				return service.WeeksInfo{LastUpdated: &t}, nil
			},
			GetAllWeeksSummaryFunc: func(ctx context.Context) ([]service.WeekSummary, error) {
				return summaries, nil
			},
		}
		ingestor := &mockIngestor{
			LoadWeeklyDataFunc: func(ctx context.Context, path, label string) (string, int, error) {
				summaries = append(summaries, service.WeekSummary{Week: "Week 10"})
				lastUpdated = lastUpdated.Add(time.Minute)
				return "Week 10", 1, nil
			},
		}
		srv := newServer(t, reports, ingestor, cache)

		rec := do(t, srv, http.MethodGet, "/reports/weeks")
		require.Equal(t, http.StatusOK, rec.Code)
		var out []service.WeekSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)

		// warm the pre-ingest key so a stale hit would be visible
		cache.put(t, fmt.Sprintf("reports:weekly_summary:rev=%d.0", lastUpdated.Unix()), out)

		rec = do(t, srv, http.MethodPost, "/ingest/weekly?path=/data/export.csv")
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = do(t, srv, http.MethodGet, "/reports/weeks")
		require.Equal(t, http.StatusOK, rec.Code)
		out = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 2)
		assert.Equal(t, "Week 10", out[1].Week)
	})
}

func TestIngestEndpoints(t *testing.T) {
	t.Run("weekly ingest", func(t *testing.T) {
		ingestor := &mockIngestor{
			LoadWeeklyDataFunc: func(ctx context.Context, path, label string) (string, int, error) {
				assert.Equal(t, "/data/export.csv", path)
				assert.Equal(t, "Week 9", label)
				return "Week 9", 42, nil
			},
		}
		srv := newServer(t, &mockReports{}, ingestor, nil)

		rec := do(t, srv, http.MethodPost, "/ingest/weekly?path=/data/export.csv&label=Week%209")
		require.Equal(t, http.StatusCreated, rec.Code)

		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "Week 9", out["week"])
		assert.EqualValues(t, 42, out["rows"])
	})

	t.Run("weekly ingest requires a path", func(t *testing.T) {
		srv := newServer(t, &mockReports{}, &mockIngestor{}, nil)

		rec := do(t, srv, http.MethodPost, "/ingest/weekly")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ingest failure maps to 422", func(t *testing.T) {
		ingestor := &mockIngestor{
			LoadWeeklyDataFunc: func(ctx context.Context, path, label string) (string, int, error) {
				return "", 0, errors.New("weekly export missing required columns: CTOR")
			},
		}
		srv := newServer(t, &mockReports{}, ingestor, nil)

		rec := do(t, srv, http.MethodPost, "/ingest/weekly?path=/data/broken.csv")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("mapping ingest", func(t *testing.T) {
		ingestor := &mockIngestor{
			LoadMappingFunc: func(ctx context.Context, path string) (int, error) {
				return 7, nil
			},
		}
		srv := newServer(t, &mockReports{}, ingestor, nil)

		rec := do(t, srv, http.MethodPost, "/ingest/mapping?path=/data/mapping.csv")
		require.Equal(t, http.StatusCreated, rec.Code)

		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.EqualValues(t, 7, out["entries"])
	})

	t.Run("ingestion disabled without an ingestor", func(t *testing.T) {
		srv := newServer(t, &mockReports{}, nil, nil)

		rec := do(t, srv, http.MethodPost, "/ingest/weekly?path=/data/export.csv")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &mockReports{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
