package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weeklyHeader = "Message name,Subject,List name,Sent,Delivered,Opened,Open rate,Clicked,Click rate,CTOR,Bounced,Bounce rate,Marked as spam,Spam complaint rate,Unsubscribed,Unsubscribe rate,Created on"

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("mixed percent and numeric rates end up as fractions", func(t *testing.T) {
		csv := weeklyHeader + "\n" +
			"Welcome 1,Bem-vindo!,Main list,100,98,25,25.51%,5,5.1%,20%,2,2%,0,0%,1,1.02%,2025-03-03 09:30:00\n" +
			"Promo,50% off hoje,Main list,200,190,57,0.3,19,0.1,0.3333,10,0.05,1,0.005,2,0.0105,2025-03-04\n"

		table, err := Normalize(strings.NewReader(csv), "export.csv", "2025-03-01 a 2025-03-07", now)
		require.NoError(t, err)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, 0, table.Warnings)

		first := table.Rows[0]
		assert.Equal(t, "Welcome 1", first.MessageName)
		assert.Equal(t, "2025-03-01 a 2025-03-07", first.WeekLabel)
		assert.InDelta(t, 0.2551, first.OpenRate.Float64, 1e-9)
		assert.InDelta(t, 0.051, first.ClickRate.Float64, 1e-9)
		assert.InDelta(t, 0.20, first.CTOR.Float64, 1e-9)
		assert.Equal(t, int64(100), first.Sent.Int64)
		require.True(t, first.CreatedOn.Valid)
		assert.Equal(t, time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC), first.CreatedOn.Time)

		second := table.Rows[1]
		assert.InDelta(t, 0.3, second.OpenRate.Float64, 1e-9)
		assert.InDelta(t, 0.3333, second.CTOR.Float64, 1e-9)

		for _, row := range table.Rows {
			for _, rate := range []float64{
				row.OpenRate.Float64, row.ClickRate.Float64, row.CTOR.Float64,
				row.BounceRate.Float64, row.SpamComplaintRate.Float64, row.UnsubscribeRate.Float64,
			} {
				assert.GreaterOrEqual(t, rate, 0.0)
				assert.LessOrEqual(t, rate, 1.0)
			}
		}
	})

	t.Run("header cleanup applied before column lookup", func(t *testing.T) {
		dirty := strings.ReplaceAll(weeklyHeader, "Message name", "  Message name  ")
		csv := dirty + "\n" +
			"Welcome 1,Oi,Main list,10,10,5,50%,1,10%,20%,0,0%,0,0%,0,0%,2025-03-03\n"

		table, err := Normalize(strings.NewReader(csv), "export.csv", "w1", now)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "Welcome 1", table.Rows[0].MessageName)
	})

	t.Run("missing required column fails with a descriptive error", func(t *testing.T) {
		csv := strings.Replace(weeklyHeader, "CTOR,", "", 1) + "\n"

		_, err := Normalize(strings.NewReader(csv), "export.csv", "w1", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required columns")
		assert.Contains(t, err.Error(), "CTOR")
	})

	t.Run("unparseable cells become missing values, row is kept", func(t *testing.T) {
		csv := weeklyHeader + "\n" +
			"Broken,Sub,Lst,abc,98,xx,n/a%,5,5%,??,2,2%,0,0%,1,1%,not-a-date\n"

		table, err := Normalize(strings.NewReader(csv), "export.csv", "w1", now)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)

		row := table.Rows[0]
		assert.False(t, row.Sent.Valid)
		assert.False(t, row.Opened.Valid)
		assert.False(t, row.OpenRate.Valid)
		assert.False(t, row.CTOR.Valid)
		assert.False(t, row.CreatedOn.Valid)
		assert.True(t, row.Delivered.Valid)
		assert.Equal(t, int64(98), row.Delivered.Int64)
		assert.Equal(t, 5, table.Warnings)
	})

	t.Run("empty cells are missing without warnings", func(t *testing.T) {
		csv := weeklyHeader + "\n" +
			"Quiet,Sub,Lst,,,,,,,,,,,,,,\n"

		table, err := Normalize(strings.NewReader(csv), "export.csv", "w1", now)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, 0, table.Warnings)
		assert.False(t, table.Rows[0].Sent.Valid)
		assert.False(t, table.Rows[0].OpenRate.Valid)
	})

	t.Run("counters exported as floats are accepted", func(t *testing.T) {
		csv := weeklyHeader + "\n" +
			"Floaty,Sub,Lst,100.0,98.0,25.0,25%,5.0,5%,20%,2.0,2%,0.0,0%,1.0,1%,2025-03-03\n"

		table, err := Normalize(strings.NewReader(csv), "export.csv", "w1", now)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, int64(100), table.Rows[0].Sent.Int64)
		assert.Equal(t, int64(98), table.Rows[0].Delivered.Int64)
	})
}

func TestCleanHeader(t *testing.T) {
	assert.Equal(t, "Message name", cleanHeader(`  "Message name" `))
	assert.Equal(t, "Subject", cleanHeader("Subject"))
	assert.Equal(t, "Open rate", cleanHeader(` Open rate`))
}
