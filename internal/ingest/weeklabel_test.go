package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveWeekLabel(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) // ISO week 11

	t.Run("explicit label wins over everything", func(t *testing.T) {
		got := ResolveWeekLabel("Semana especial", "report_sent_2025-03-012025-03-07.csv", now)
		assert.Equal(t, "Semana especial", got)
	})

	t.Run("filename date range used when no explicit label", func(t *testing.T) {
		got := ResolveWeekLabel("", "report_sent_2025-03-012025-03-07.csv", now)
		assert.Equal(t, "2025-03-01 a 2025-03-07", got)
	})

	t.Run("falls back to ISO week of processing time", func(t *testing.T) {
		got := ResolveWeekLabel("", "weekly_export.csv", now)
		assert.Equal(t, "Semana 11, 2025", got)
	})
}

func TestParseLabelFromFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "standard export name",
			input: "campaigns_sent_2025-03-012025-03-07.csv",
			want:  "2025-03-01 a 2025-03-07",
			ok:    true,
		},
		{
			name:  "full path is reduced to base name",
			input: "/data/exports/campaigns_sent_2025-02-222025-02-28.csv",
			want:  "2025-02-22 a 2025-02-28",
			ok:    true,
		},
		{
			name:  "no sent_ marker",
			input: "campaigns_2025-03-012025-03-07.csv",
			ok:    false,
		},
		{
			name:  "date part wrong length",
			input: "campaigns_sent_2025-03-01.csv",
			ok:    false,
		},
		{
			name:  "dates do not parse",
			input: "campaigns_sent_2025-13-992025-14-99.csv",
			ok:    false,
		},
		{
			name:  "not a csv file",
			input: "campaigns_sent_2025-03-012025-03-07.xlsx",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLabelFromFilename(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
