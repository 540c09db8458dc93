package service

import (
	"context"

	"github.com/godilite/email-insights/internal/repository/models"
)

// WeekStore defines the read side of the historical store used by the
// report service.
type WeekStore interface {
	Weeks(ctx context.Context) ([]models.WeekInfo, error)
	Metadata(ctx context.Context) (models.Metadata, error)
	HasMapping(ctx context.Context) (bool, error)
	WeekTotals(ctx context.Context) ([]models.WeekTotals, error)
	AutomationTotals(ctx context.Context, minSent int64) ([]models.AutomationTotals, error)
	WeeklyAutomationTotals(ctx context.Context) ([]models.WeeklyAutomationTotals, error)
	SubjectTotals(ctx context.Context, minSent int64) ([]models.SubjectTotals, error)
	WeekdayAverages(ctx context.Context) ([]models.WeekdayAverages, error)
}
