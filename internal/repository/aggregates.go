package repository

import (
	"context"
	"fmt"

	"github.com/godilite/email-insights/internal/repository/models"
)

// totalsColumns sums the volume counters and recomputes every rate as
// sum-of-numerator over sum-of-denominator. Rates are never averaged
// from per-row values. Bounce and delivery rates divide by sent, CTOR
// by opened, the remaining rates by delivered; this asymmetry is
// intentional and must not be unified.
const totalsColumns = `
	SUM(COALESCE(r.sent, 0))           AS sent,
	SUM(COALESCE(r.delivered, 0))      AS delivered,
	SUM(COALESCE(r.opened, 0))         AS opened,
	SUM(COALESCE(r.clicked, 0))        AS clicked,
	SUM(COALESCE(r.bounced, 0))        AS bounced,
	SUM(COALESCE(r.marked_as_spam, 0)) AS marked_as_spam,
	SUM(COALESCE(r.unsubscribed, 0))   AS unsubscribed,
	CASE WHEN SUM(COALESCE(r.sent, 0)) > 0
		THEN CAST(SUM(COALESCE(r.delivered, 0)) AS REAL) / SUM(COALESCE(r.sent, 0))
		ELSE 0 END AS delivery_rate,
	CASE WHEN SUM(COALESCE(r.delivered, 0)) > 0
		THEN CAST(SUM(COALESCE(r.opened, 0)) AS REAL) / SUM(COALESCE(r.delivered, 0))
		ELSE 0 END AS open_rate,
	CASE WHEN SUM(COALESCE(r.delivered, 0)) > 0
		THEN CAST(SUM(COALESCE(r.clicked, 0)) AS REAL) / SUM(COALESCE(r.delivered, 0))
		ELSE 0 END AS click_rate,
	CASE WHEN SUM(COALESCE(r.opened, 0)) > 0
		THEN CAST(SUM(COALESCE(r.clicked, 0)) AS REAL) / SUM(COALESCE(r.opened, 0))
		ELSE 0 END AS ctor,
	CASE WHEN SUM(COALESCE(r.sent, 0)) > 0
		THEN CAST(SUM(COALESCE(r.bounced, 0)) AS REAL) / SUM(COALESCE(r.sent, 0))
		ELSE 0 END AS bounce_rate,
	CASE WHEN SUM(COALESCE(r.delivered, 0)) > 0
		THEN CAST(SUM(COALESCE(r.marked_as_spam, 0)) AS REAL) / SUM(COALESCE(r.delivered, 0))
		ELSE 0 END AS spam_complaint_rate,
	CASE WHEN SUM(COALESCE(r.delivered, 0)) > 0
		THEN CAST(SUM(COALESCE(r.unsubscribed, 0)) AS REAL) / SUM(COALESCE(r.delivered, 0))
		ELSE 0 END AS unsubscribe_rate`

func scanTotals(scan func(dest ...any) error, extra []any, g *models.GroupTotals) error {
	dest := append(extra,
		&g.Sent, &g.Delivered, &g.Opened, &g.Clicked, &g.Bounced, &g.MarkedAsSpam, &g.Unsubscribed,
		&g.DeliveryRate, &g.OpenRate, &g.ClickRate, &g.CTOR, &g.BounceRate, &g.SpamComplaintRate, &g.UnsubscribeRate)
	return scan(dest...)
}

// WeekTotals aggregates every stored week into whole-week totals,
// ordered by week insertion order.
func (s *WeekStoreRepository) WeekTotals(ctx context.Context) ([]models.WeekTotals, error) {
	query := `
		SELECT w.label,` + totalsColumns + `
		FROM campaign_reports r
		JOIN weeks w ON w.label = r.week_label
		GROUP BY w.label
		ORDER BY w.position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query WeekTotals: %w", err)
	}
	defer rows.Close()

	var out []models.WeekTotals
	for rows.Next() {
		var t models.WeekTotals
		if err := scanTotals(rows.Scan, []any{&t.Week}, &t.GroupTotals); err != nil {
			return nil, fmt.Errorf("scan WeekTotals row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate WeekTotals: %w", err)
	}
	return out, nil
}

// AutomationTotals left-joins the combined table to the mapping and
// aggregates per automation across all weeks. Campaigns without a
// mapping entry land in the NULL automation group. The minimum-sent
// filter is applied to the aggregated totals, never per week.
func (s *WeekStoreRepository) AutomationTotals(ctx context.Context, minSent int64) ([]models.AutomationTotals, error) {
	query := `
		SELECT m.automation,` + totalsColumns + `
		FROM campaign_reports r
		LEFT JOIN automation_map m ON m.message_name = r.message_name
		GROUP BY m.automation
		HAVING SUM(COALESCE(r.sent, 0)) >= ?
		ORDER BY m.automation`

	rows, err := s.db.QueryContext(ctx, query, minSent)
	if err != nil {
		return nil, fmt.Errorf("query AutomationTotals: %w", err)
	}
	defer rows.Close()

	var out []models.AutomationTotals
	for rows.Next() {
		var t models.AutomationTotals
		if err := scanTotals(rows.Scan, []any{&t.Automation}, &t.GroupTotals); err != nil {
			return nil, fmt.Errorf("scan AutomationTotals row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate AutomationTotals: %w", err)
	}
	return out, nil
}

// WeeklyAutomationTotals aggregates per (automation, week). Within each
// automation the rows follow week insertion order, which is the time
// axis for trend computation; labels are never sorted as text.
func (s *WeekStoreRepository) WeeklyAutomationTotals(ctx context.Context) ([]models.WeeklyAutomationTotals, error) {
	query := `
		SELECT m.automation, w.label, w.position,` + totalsColumns + `
		FROM campaign_reports r
		JOIN weeks w ON w.label = r.week_label
		LEFT JOIN automation_map m ON m.message_name = r.message_name
		GROUP BY m.automation, w.label
		ORDER BY m.automation, w.position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query WeeklyAutomationTotals: %w", err)
	}
	defer rows.Close()

	var out []models.WeeklyAutomationTotals
	for rows.Next() {
		var t models.WeeklyAutomationTotals
		if err := scanTotals(rows.Scan, []any{&t.Automation, &t.Week, &t.Position}, &t.GroupTotals); err != nil {
			return nil, fmt.Errorf("scan WeeklyAutomationTotals row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate WeeklyAutomationTotals: %w", err)
	}
	return out, nil
}

// SubjectTotals aggregates per subject line across all weeks, with the
// minimum-sent filter applied after aggregation.
func (s *WeekStoreRepository) SubjectTotals(ctx context.Context, minSent int64) ([]models.SubjectTotals, error) {
	query := `
		SELECT COALESCE(r.subject, ''),` + totalsColumns + `
		FROM campaign_reports r
		GROUP BY COALESCE(r.subject, '')
		HAVING SUM(COALESCE(r.sent, 0)) >= ?
		ORDER BY sent DESC`

	rows, err := s.db.QueryContext(ctx, query, minSent)
	if err != nil {
		return nil, fmt.Errorf("query SubjectTotals: %w", err)
	}
	defer rows.Close()

	var out []models.SubjectTotals
	for rows.Next() {
		var t models.SubjectTotals
		if err := scanTotals(rows.Scan, []any{&t.Subject}, &t.GroupTotals); err != nil {
			return nil, fmt.Errorf("scan SubjectTotals row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate SubjectTotals: %w", err)
	}
	return out, nil
}

// WeekdayAverages groups rows by send weekday: means of the stored
// per-row rates plus volume sums. Rows without a creation timestamp are
// excluded; an empty result means the analysis is unavailable.
func (s *WeekStoreRepository) WeekdayAverages(ctx context.Context) ([]models.WeekdayAverages, error) {
	const query = `
		SELECT CAST(strftime('%w', r.created_on) AS INTEGER) AS weekday,
		       COALESCE(AVG(r.open_rate), 0),
		       COALESCE(AVG(r.click_rate), 0),
		       COALESCE(AVG(r.ctor), 0),
		       SUM(COALESCE(r.sent, 0)),
		       SUM(COALESCE(r.delivered, 0)),
		       SUM(COALESCE(r.opened, 0)),
		       SUM(COALESCE(r.clicked, 0))
		FROM campaign_reports r
		WHERE r.created_on IS NOT NULL
		GROUP BY weekday
		ORDER BY weekday`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query WeekdayAverages: %w", err)
	}
	defer rows.Close()

	var out []models.WeekdayAverages
	for rows.Next() {
		var a models.WeekdayAverages
		err := rows.Scan(&a.Weekday, &a.AvgOpenRate, &a.AvgClickRate, &a.AvgCTOR,
			&a.Sent, &a.Delivered, &a.Opened, &a.Clicked)
		if err != nil {
			return nil, fmt.Errorf("scan WeekdayAverages row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate WeekdayAverages: %w", err)
	}
	return out, nil
}
