package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/godilite/email-insights/internal/repository/models"
)

const dbTimeout = 5 * time.Second

var (
	ErrNoData         = errors.New("no weekly data loaded")
	ErrNoMapping      = errors.New("automation mapping not loaded")
	ErrStorageFailure = errors.New("storage failure")
)

// ReportService computes the aggregated and comparative views over the
// historical store. All methods are read-only.
type ReportService struct {
	store  WeekStore
	logger *zap.Logger
}

func NewReportService(store WeekStore, logger *zap.Logger) *ReportService {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{store: store, logger: logger}
}

// GetAvailableWeeks returns the known week labels in insertion order
// together with the metadata timestamps. An empty store yields an
// empty list, not an error.
func (s *ReportService) GetAvailableWeeks(ctx context.Context) (WeeksInfo, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	meta, err := s.store.Metadata(dbCtx)
	if err != nil {
		return WeeksInfo{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	info := WeeksInfo{Weeks: meta.Weeks}
	if meta.LastUpdated.Valid {
		t := meta.LastUpdated.Time
		info.LastUpdated = &t
	}
	if meta.AutomationMapUpdated.Valid {
		t := meta.AutomationMapUpdated.Time
		info.AutomationMapUpdated = &t
	}
	return info, nil
}

// GetAllWeeksSummary returns whole-week totals for every stored week.
func (s *ReportService) GetAllWeeksSummary(ctx context.Context) ([]WeekSummary, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	totals, err := s.store.WeekTotals(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(totals) == 0 {
		return nil, ErrNoData
	}

	out := make([]WeekSummary, 0, len(totals))
	for _, t := range totals {
		out = append(out, WeekSummary{
			Week:      t.Week,
			VolumeSet: volumes(t.GroupTotals),
			RateSet:   rates(t.GroupTotals),
		})
	}
	return out, nil
}

// GetWeekSummary returns the totals of one stored week.
func (s *ReportService) GetWeekSummary(ctx context.Context, week string) (WeekSummary, error) {
	summaries, err := s.GetAllWeeksSummary(ctx)
	if err != nil {
		return WeekSummary{}, err
	}
	for _, w := range summaries {
		if w.Week == week {
			return w, nil
		}
	}
	return WeekSummary{}, fmt.Errorf("week %q: %w", week, ErrNoData)
}

// GetAutomationPerformance aggregates all weeks per automation.
// minVolume drops groups whose total sent across all weeks is below
// the threshold; the filter runs after summation, so partial-week
// automations still contribute to the totals that survive.
func (s *ReportService) GetAutomationPerformance(ctx context.Context, minVolume int64) ([]AutomationPerformance, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.requireMapping(dbCtx); err != nil {
		return nil, err
	}

	if minVolume < 0 {
		minVolume = 0
	}

	totals, err := s.store.AutomationTotals(dbCtx, minVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(totals) == 0 {
		return nil, ErrNoData
	}

	out := make([]AutomationPerformance, 0, len(totals))
	for _, t := range totals {
		out = append(out, AutomationPerformance{
			Automation: t.Automation.String,
			Unmapped:   !t.Automation.Valid,
			VolumeSet:  volumes(t.GroupTotals),
			RateSet:    rates(t.GroupTotals),
		})
	}
	return out, nil
}

// GetWeeklyAutomationPerformance aggregates per (automation, week),
// ordered by automation and week insertion order.
func (s *ReportService) GetWeeklyAutomationPerformance(ctx context.Context) ([]WeeklyAutomationPerformance, error) {
	rows, err := s.weeklyAutomationRows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]WeeklyAutomationPerformance, 0, len(rows))
	for _, t := range rows {
		out = append(out, WeeklyAutomationPerformance{
			Automation: t.Automation.String,
			Unmapped:   !t.Automation.Valid,
			Week:       t.Week,
			VolumeSet:  volumes(t.GroupTotals),
			RateSet:    rates(t.GroupTotals),
		})
	}
	return out, nil
}

// GetWeekOverWeekChanges computes the percentage change of open rate,
// click rate and CTOR against the previous week within each
// automation's chronologically ordered series. The first week of an
// automation has no change; a zero previous rate yields no change
// rather than an infinite one.
func (s *ReportService) GetWeekOverWeekChanges(ctx context.Context) ([]TrendRecord, error) {
	rows, err := s.weeklyAutomationRows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TrendRecord, 0, len(rows))
	var prev *models.WeeklyAutomationTotals
	for i := range rows {
		r := &rows[i]
		rec := TrendRecord{
			Automation: r.Automation.String,
			Unmapped:   !r.Automation.Valid,
			Week:       r.Week,
			OpenRate:   r.OpenRate,
			ClickRate:  r.ClickRate,
			CTOR:       r.CTOR,
		}
		if prev != nil && sameGroup(prev.Automation, r.Automation) {
			rec.OpenRateChange = pctChange(prev.OpenRate, r.OpenRate)
			rec.ClickRateChange = pctChange(prev.ClickRate, r.ClickRate)
			rec.CTORChange = pctChange(prev.CTOR, r.CTOR)
		}
		out = append(out, rec)
		prev = r
	}
	return out, nil
}

// AnalyzeSubjectPerformance aggregates per subject line and derives
// the subject features: length, personalization token, question mark,
// digit. Features are pure functions of the subject text.
func (s *ReportService) AnalyzeSubjectPerformance(ctx context.Context, minVolume int64) ([]SubjectPerformance, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if minVolume < 0 {
		minVolume = 0
	}

	totals, err := s.store.SubjectTotals(dbCtx, minVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(totals) == 0 {
		return nil, ErrNoData
	}

	out := make([]SubjectPerformance, 0, len(totals))
	for _, t := range totals {
		out = append(out, SubjectPerformance{
			Subject:            t.Subject,
			VolumeSet:          volumes(t.GroupTotals),
			RateSet:            rates(t.GroupTotals),
			SubjectLength:      utf8.RuneCountInString(t.Subject),
			HasPersonalization: hasPersonalization(t.Subject),
			HasQuestion:        strings.Contains(t.Subject, "?"),
			HasDigit:           strings.ContainsFunc(t.Subject, unicode.IsDigit),
		})
	}
	return out, nil
}

// GetDayOfWeekPerformance groups the combined table by send weekday,
// Monday through Sunday. When no row carries a creation timestamp the
// report is marked unavailable instead of failing.
func (s *ReportService) GetDayOfWeekPerformance(ctx context.Context) (DayOfWeekReport, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	averages, err := s.store.WeekdayAverages(dbCtx)
	if err != nil {
		return DayOfWeekReport{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(averages) == 0 {
		return DayOfWeekReport{}, nil
	}

	// strftime('%w') numbers Sunday as 0.
	byWeekday := make(map[int]models.WeekdayAverages, len(averages))
	for _, a := range averages {
		byWeekday[a.Weekday] = a
	}

	report := DayOfWeekReport{Available: true}
	for offset := 0; offset < 7; offset++ {
		weekday := (int(time.Monday) + offset) % 7
		a, ok := byWeekday[weekday]
		if !ok {
			continue
		}
		report.Days = append(report.Days, DayPerformance{
			Day:          time.Weekday(weekday).String(),
			AvgOpenRate:  a.AvgOpenRate,
			AvgClickRate: a.AvgClickRate,
			AvgCTOR:      a.AvgCTOR,
			Sent:         a.Sent,
			Delivered:    a.Delivered,
			Opened:       a.Opened,
			Clicked:      a.Clicked,
		})
	}
	return report, nil
}

func (s *ReportService) weeklyAutomationRows(ctx context.Context) ([]models.WeeklyAutomationTotals, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.requireMapping(dbCtx); err != nil {
		return nil, err
	}

	rows, err := s.store.WeeklyAutomationTotals(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	// Trend differencing depends on (automation, week position) order;
	// enforce it here rather than trusting the store's row order.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Automation.Valid != b.Automation.Valid {
			return !a.Automation.Valid
		}
		if a.Automation.String != b.Automation.String {
			return a.Automation.String < b.Automation.String
		}
		return a.Position < b.Position
	})
	return rows, nil
}

func (s *ReportService) requireMapping(ctx context.Context) error {
	mapped, err := s.store.HasMapping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if !mapped {
		return ErrNoMapping
	}
	return nil
}

// pctChange returns (cur-prev)/prev*100, or nil when the previous
// value is zero.
func pctChange(prev, cur float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := (cur - prev) / prev * 100
	return &v
}

func sameGroup(a, b sql.NullString) bool {
	return a.Valid == b.Valid && a.String == b.String
}

func hasPersonalization(subject string) bool {
	return strings.Contains(strings.ToLower(subject), "{{contact")
}

func volumes(g models.GroupTotals) VolumeSet {
	return VolumeSet{
		Sent:         g.Sent,
		Delivered:    g.Delivered,
		Opened:       g.Opened,
		Clicked:      g.Clicked,
		Bounced:      g.Bounced,
		MarkedAsSpam: g.MarkedAsSpam,
		Unsubscribed: g.Unsubscribed,
	}
}

func rates(g models.GroupTotals) RateSet {
	return RateSet{
		DeliveryRate:      g.DeliveryRate,
		OpenRate:          g.OpenRate,
		ClickRate:         g.ClickRate,
		CTOR:              g.CTOR,
		BounceRate:        g.BounceRate,
		SpamComplaintRate: g.SpamComplaintRate,
		UnsubscribeRate:   g.UnsubscribeRate,
	}
}
