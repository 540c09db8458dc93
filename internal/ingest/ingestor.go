package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/email-insights/internal/metrics"
	"github.com/godilite/email-insights/internal/repository/models"
)

// WeekStore is the slice of the historical store the ingestor writes
// through. Both calls persist synchronously before returning.
type WeekStore interface {
	PutWeek(ctx context.Context, label string, rows []models.CampaignReport) error
	ReplaceMapping(ctx context.Context, entries []models.MappingEntry) error
}

// Ingestor normalizes source files and hands them to the historical
// store. Ingestion is batch-oriented and single-writer; concurrent
// calls must be serialized by the caller.
type Ingestor struct {
	store  WeekStore
	logger *zap.Logger
}

func NewIngestor(store WeekStore, logger *zap.Logger) *Ingestor {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, logger: logger}
}

// LoadWeeklyData ingests one weekly export from a local path. The week
// label is resolved from the explicit label, the filename, or the
// current ISO week, in that order. Re-ingesting a label overwrites its
// previous rows. Returns the resolved label and the row count.
func (i *Ingestor) LoadWeeklyData(ctx context.Context, path, label string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open weekly export: %w", err)
	}
	defer f.Close()

	table, err := Normalize(f, filepath.Base(path), label, time.Now())
	if err != nil {
		return "", 0, fmt.Errorf("normalize %s: %w", filepath.Base(path), err)
	}

	if err := i.store.PutWeek(ctx, table.Label, table.Rows); err != nil {
		return "", 0, err
	}

	metrics.FilesIngested.WithLabelValues("weekly").Inc()
	metrics.RowsIngested.Add(float64(len(table.Rows)))
	metrics.ParseWarnings.Add(float64(table.Warnings))

	i.logger.Info("weekly export ingested",
		zap.String("week", table.Label),
		zap.Int("rows", len(table.Rows)),
		zap.Int("parse_warnings", table.Warnings))

	return table.Label, len(table.Rows), nil
}

// LoadMapping replaces the automation mapping from a local CSV path and
// returns the number of entries loaded.
func (i *Ingestor) LoadMapping(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()

	entries, err := ParseMappingCSV(f)
	if err != nil {
		return 0, fmt.Errorf("parse mapping %s: %w", filepath.Base(path), err)
	}

	if err := i.store.ReplaceMapping(ctx, entries); err != nil {
		return 0, err
	}

	metrics.FilesIngested.WithLabelValues("mapping").Inc()

	i.logger.Info("automation mapping replaced", zap.Int("entries", len(entries)))
	return len(entries), nil
}
