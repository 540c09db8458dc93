package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/email-insights/internal/repository/models"
)

const (
	metaLastUpdated     = "last_updated"
	metaMappingUpdated  = "automation_map_updated"
	metaTimestampLayout = time.RFC3339
)

// WeekStoreRepository is the durable historical store: one row set per
// ingested week, the current automation mapping, and the pipeline
// metadata (insertion-ordered week labels plus update timestamps).
type WeekStoreRepository struct {
	db *sql.DB
}

func NewWeekStoreRepository(db *sql.DB) *WeekStoreRepository {
	return &WeekStoreRepository{db: db}
}

// InitSchema creates the storage tables when absent.
func (s *WeekStoreRepository) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS weeks (
		label       TEXT NOT NULL PRIMARY KEY,
		storage_key TEXT NOT NULL UNIQUE,
		position    INTEGER NOT NULL,
		updated_at  DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS campaign_reports (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		week_label          TEXT NOT NULL,
		message_name        TEXT NOT NULL,
		subject             TEXT,
		list_name           TEXT,
		sent                INTEGER,
		delivered           INTEGER,
		opened              INTEGER,
		clicked             INTEGER,
		bounced             INTEGER,
		marked_as_spam      INTEGER,
		unsubscribed        INTEGER,
		open_rate           REAL,
		click_rate          REAL,
		ctor                REAL,
		bounce_rate         REAL,
		spam_complaint_rate REAL,
		unsubscribe_rate    REAL,
		created_on          DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_reports_week ON campaign_reports(week_label);
	CREATE INDEX IF NOT EXISTS idx_reports_message ON campaign_reports(message_name);
	CREATE TABLE IF NOT EXISTS automation_map (
		message_name TEXT NOT NULL PRIMARY KEY,
		automation   TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pipeline_meta (
		key   TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

var labelSanitizer = strings.NewReplacer(" ", "_", "-", "_", "/", "_")

// SanitizeLabel turns a week label into a storage-safe key. The same
// label always maps to the same key.
func SanitizeLabel(label string) string {
	return "week_" + labelSanitizer.Replace(label)
}

// PutWeek inserts or overwrites the rows stored under label. A new
// label is registered at the end of the insertion order; re-ingesting
// an existing label replaces its rows and keeps its position. The rows
// and metadata are committed before returning.
func (s *WeekStoreRepository) PutWeek(ctx context.Context, label string, rows []models.CampaignReport) error {
	if label == "" {
		return fmt.Errorf("put week: empty label")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put week %q: begin: %w", label, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var position int
	err = tx.QueryRowContext(ctx, `SELECT position FROM weeks WHERE label = ?`, label).Scan(&position)
	switch {
	case err == sql.ErrNoRows:
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM weeks`).Scan(&position); err != nil {
			return fmt.Errorf("put week %q: next position: %w", label, err)
		}
	case err != nil:
		return fmt.Errorf("put week %q: lookup: %w", label, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weeks (label, storage_key, position, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET updated_at = excluded.updated_at`,
		label, SanitizeLabel(label), position, now)
	if err != nil {
		return fmt.Errorf("put week %q: register: %w", label, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_reports WHERE week_label = ?`, label); err != nil {
		return fmt.Errorf("put week %q: clear: %w", label, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_reports (
			week_label, message_name, subject, list_name,
			sent, delivered, opened, clicked, bounced, marked_as_spam, unsubscribed,
			open_rate, click_rate, ctor, bounce_rate, spam_complaint_rate, unsubscribe_rate,
			created_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("put week %q: prepare: %w", label, err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		_, err := stmt.ExecContext(ctx,
			label, r.MessageName, r.Subject, r.ListName,
			r.Sent, r.Delivered, r.Opened, r.Clicked, r.Bounced, r.MarkedAsSpam, r.Unsubscribed,
			r.OpenRate, r.ClickRate, r.CTOR, r.BounceRate, r.SpamComplaintRate, r.UnsubscribeRate,
			r.CreatedOn)
		if err != nil {
			return fmt.Errorf("put week %q: insert row %d: %w", label, i, err)
		}
	}

	if err := setMeta(ctx, tx, metaLastUpdated, now); err != nil {
		return fmt.Errorf("put week %q: %w", label, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put week %q: commit: %w", label, err)
	}
	return nil
}

// ReplaceMapping swaps in a new automation mapping table. There is a
// single current version; no history is kept.
func (s *WeekStoreRepository) ReplaceMapping(ctx context.Context, entries []models.MappingEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace mapping: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM automation_map`); err != nil {
		return fmt.Errorf("replace mapping: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO automation_map (message_name, automation) VALUES (?, ?)
		ON CONFLICT(message_name) DO UPDATE SET automation = excluded.automation`)
	if err != nil {
		return fmt.Errorf("replace mapping: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.MessageName, e.Automation); err != nil {
			return fmt.Errorf("replace mapping: insert %q: %w", e.MessageName, err)
		}
	}

	if err := setMeta(ctx, tx, metaMappingUpdated, time.Now().UTC()); err != nil {
		return fmt.Errorf("replace mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace mapping: commit: %w", err)
	}
	return nil
}

func setMeta(ctx context.Context, tx *sql.Tx, key string, ts time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pipeline_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, ts.Format(metaTimestampLayout))
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Weeks lists registered weeks in insertion order.
func (s *WeekStoreRepository) Weeks(ctx context.Context) ([]models.WeekInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, storage_key, position, updated_at FROM weeks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query weeks: %w", err)
	}
	defer rows.Close()

	var out []models.WeekInfo
	for rows.Next() {
		var w models.WeekInfo
		if err := rows.Scan(&w.Label, &w.StorageKey, &w.Position, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weeks: %w", err)
	}
	return out, nil
}

// Metadata returns the persisted metadata record.
func (s *WeekStoreRepository) Metadata(ctx context.Context) (models.Metadata, error) {
	weeks, err := s.Weeks(ctx)
	if err != nil {
		return models.Metadata{}, err
	}

	meta := models.Metadata{}
	for _, w := range weeks {
		meta.Weeks = append(meta.Weeks, w.Label)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM pipeline_meta`)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Metadata{}, fmt.Errorf("scan meta: %w", err)
		}
		ts, err := time.Parse(metaTimestampLayout, value)
		if err != nil {
			continue
		}
		switch key {
		case metaLastUpdated:
			meta.LastUpdated = sql.NullTime{Time: ts, Valid: true}
		case metaMappingUpdated:
			meta.AutomationMapUpdated = sql.NullTime{Time: ts, Valid: true}
		}
	}
	if err := rows.Err(); err != nil {
		return models.Metadata{}, fmt.Errorf("iterate meta: %w", err)
	}
	return meta, nil
}

// HasMapping reports whether an automation mapping has been loaded.
func (s *WeekStoreRepository) HasMapping(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automation_map`).Scan(&n); err != nil {
		return false, fmt.Errorf("count mapping: %w", err)
	}
	return n > 0, nil
}

// CombinedRows concatenates every stored week into one table, ordered
// by week insertion order. Each row keeps its week tag.
func (s *WeekStoreRepository) CombinedRows(ctx context.Context) ([]models.CampaignReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.week_label, r.message_name, r.subject, r.list_name,
		       r.sent, r.delivered, r.opened, r.clicked, r.bounced, r.marked_as_spam, r.unsubscribed,
		       r.open_rate, r.click_rate, r.ctor, r.bounce_rate, r.spam_complaint_rate, r.unsubscribe_rate,
		       r.created_on
		FROM campaign_reports r
		JOIN weeks w ON w.label = r.week_label
		ORDER BY w.position, r.id`)
	if err != nil {
		return nil, fmt.Errorf("query combined rows: %w", err)
	}
	defer rows.Close()

	var out []models.CampaignReport
	for rows.Next() {
		var r models.CampaignReport
		err := rows.Scan(&r.WeekLabel, &r.MessageName, &r.Subject, &r.ListName,
			&r.Sent, &r.Delivered, &r.Opened, &r.Clicked, &r.Bounced, &r.MarkedAsSpam, &r.Unsubscribed,
			&r.OpenRate, &r.ClickRate, &r.CTOR, &r.BounceRate, &r.SpamComplaintRate, &r.UnsubscribeRate,
			&r.CreatedOn)
		if err != nil {
			return nil, fmt.Errorf("scan combined row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate combined rows: %w", err)
	}
	return out, nil
}

// Load verifies the stored state against the metadata at startup.
// Weeks listed in the metadata whose rows are gone are reported, not
// fatal; callers decide whether partial data is acceptable.
func (s *WeekStoreRepository) Load(ctx context.Context) (models.LoadReport, error) {
	report := models.LoadReport{}

	mapped, err := s.HasMapping(ctx)
	if err != nil {
		return report, err
	}
	report.MappingLoaded = mapped

	weeks, err := s.Weeks(ctx)
	if err != nil {
		return report, err
	}

	for _, w := range weeks {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_reports WHERE week_label = ?`, w.Label).Scan(&n); err != nil {
			return report, fmt.Errorf("count week %q: %w", w.Label, err)
		}
		if n == 0 {
			report.MissingWeeks = append(report.MissingWeeks, w.Label)
			continue
		}
		report.WeeksFound++
		report.LatestWeek = w.Label
	}

	report.Complete = report.MappingLoaded && len(report.MissingWeeks) == 0
	return report, nil
}
