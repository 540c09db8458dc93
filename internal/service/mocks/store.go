package mocks

import (
	"context"
	"errors"

	"github.com/godilite/email-insights/internal/repository/models"
)

// MockWeekStore is a function-field mock of the service WeekStore
// interface for testing the report service.
type MockWeekStore struct {
	WeeksFunc                  func(ctx context.Context) ([]models.WeekInfo, error)
	MetadataFunc               func(ctx context.Context) (models.Metadata, error)
	HasMappingFunc             func(ctx context.Context) (bool, error)
	WeekTotalsFunc             func(ctx context.Context) ([]models.WeekTotals, error)
	AutomationTotalsFunc       func(ctx context.Context, minSent int64) ([]models.AutomationTotals, error)
	WeeklyAutomationTotalsFunc func(ctx context.Context) ([]models.WeeklyAutomationTotals, error)
	SubjectTotalsFunc          func(ctx context.Context, minSent int64) ([]models.SubjectTotals, error)
	WeekdayAveragesFunc        func(ctx context.Context) ([]models.WeekdayAverages, error)
}

func (m *MockWeekStore) Weeks(ctx context.Context) ([]models.WeekInfo, error) {
	if m.WeeksFunc != nil {
		return m.WeeksFunc(ctx)
	}
	return nil, errors.New("WeeksFunc not implemented")
}

func (m *MockWeekStore) Metadata(ctx context.Context) (models.Metadata, error) {
	if m.MetadataFunc != nil {
		return m.MetadataFunc(ctx)
	}
	return models.Metadata{}, errors.New("MetadataFunc not implemented")
}

func (m *MockWeekStore) HasMapping(ctx context.Context) (bool, error) {
	if m.HasMappingFunc != nil {
		return m.HasMappingFunc(ctx)
	}
	return true, nil
}

func (m *MockWeekStore) WeekTotals(ctx context.Context) ([]models.WeekTotals, error) {
	if m.WeekTotalsFunc != nil {
		return m.WeekTotalsFunc(ctx)
	}
	return nil, errors.New("WeekTotalsFunc not implemented")
}

func (m *MockWeekStore) AutomationTotals(ctx context.Context, minSent int64) ([]models.AutomationTotals, error) {
	if m.AutomationTotalsFunc != nil {
		return m.AutomationTotalsFunc(ctx, minSent)
	}
	return nil, errors.New("AutomationTotalsFunc not implemented")
}

func (m *MockWeekStore) WeeklyAutomationTotals(ctx context.Context) ([]models.WeeklyAutomationTotals, error) {
	if m.WeeklyAutomationTotalsFunc != nil {
		return m.WeeklyAutomationTotalsFunc(ctx)
	}
	return nil, errors.New("WeeklyAutomationTotalsFunc not implemented")
}

func (m *MockWeekStore) SubjectTotals(ctx context.Context, minSent int64) ([]models.SubjectTotals, error) {
	if m.SubjectTotalsFunc != nil {
		return m.SubjectTotalsFunc(ctx, minSent)
	}
	return nil, errors.New("SubjectTotalsFunc not implemented")
}

func (m *MockWeekStore) WeekdayAverages(ctx context.Context) ([]models.WeekdayAverages, error) {
	if m.WeekdayAveragesFunc != nil {
		return m.WeekdayAveragesFunc(ctx)
	}
	return nil, errors.New("WeekdayAveragesFunc not implemented")
}
