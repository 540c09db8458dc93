package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/godilite/email-insights/internal/repository/models"
)

// Column names expected in a weekly export, after header cleanup.
const (
	colMessageName       = "Message name"
	colSubject           = "Subject"
	colListName          = "List name"
	colSent              = "Sent"
	colDelivered         = "Delivered"
	colOpened            = "Opened"
	colOpenRate          = "Open rate"
	colClicked           = "Clicked"
	colClickRate         = "Click rate"
	colCTOR              = "CTOR"
	colBounced           = "Bounced"
	colBounceRate        = "Bounce rate"
	colMarkedAsSpam      = "Marked as spam"
	colSpamComplaintRate = "Spam complaint rate"
	colUnsubscribed      = "Unsubscribed"
	colUnsubscribeRate   = "Unsubscribe rate"
	colCreatedOn         = "Created on"
)

var requiredWeeklyColumns = []string{
	colMessageName, colSubject, colListName,
	colSent, colDelivered, colOpened, colOpenRate,
	colClicked, colClickRate, colCTOR,
	colBounced, colBounceRate,
	colMarkedAsSpam, colSpamComplaintRate,
	colUnsubscribed, colUnsubscribeRate,
	colCreatedOn,
}

// WeeklyTable is one normalized weekly export, tagged with its resolved
// week label. Warnings counts cells that failed to parse and were
// stored as missing values.
type WeeklyTable struct {
	Label    string
	Rows     []models.CampaignReport
	Warnings int
}

// dateLayouts tried in order when coercing the Created on column.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// Normalize cleans one raw weekly export: header cleanup, required
// column check, percentage and numeric coercion, date coercion, week
// label resolution. Unparseable cells become missing values, never
// errors; only structural problems (unreadable CSV, missing columns)
// fail.
func Normalize(r io.Reader, sourceName, explicitLabel string, now time.Time) (*WeeklyTable, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[cleanHeader(name)] = i
	}

	var missing []string
	for _, name := range requiredWeeklyColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("weekly export missing required columns: %s", strings.Join(missing, ", "))
	}

	table := &WeeklyTable{Label: ResolveWeekLabel(explicitLabel, sourceName, now)}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		cell := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := models.CampaignReport{
			WeekLabel:   table.Label,
			MessageName: cell(colMessageName),
			Subject:     nullString(cell(colSubject)),
			ListName:    nullString(cell(colListName)),
		}

		row.Sent = table.parseCount(cell(colSent))
		row.Delivered = table.parseCount(cell(colDelivered))
		row.Opened = table.parseCount(cell(colOpened))
		row.Clicked = table.parseCount(cell(colClicked))
		row.Bounced = table.parseCount(cell(colBounced))
		row.MarkedAsSpam = table.parseCount(cell(colMarkedAsSpam))
		row.Unsubscribed = table.parseCount(cell(colUnsubscribed))

		row.OpenRate = table.parseRate(cell(colOpenRate))
		row.ClickRate = table.parseRate(cell(colClickRate))
		row.CTOR = table.parseRate(cell(colCTOR))
		row.BounceRate = table.parseRate(cell(colBounceRate))
		row.SpamComplaintRate = table.parseRate(cell(colSpamComplaintRate))
		row.UnsubscribeRate = table.parseRate(cell(colUnsubscribeRate))

		row.CreatedOn = table.parseDate(cell(colCreatedOn))

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// cleanHeader trims whitespace and strips stray quote characters from a
// column name. Applied before any column lookup.
func cleanHeader(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), `"`, "")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseRate coerces a rate cell to a fraction of 1. Values formatted
// as "NN%" are divided by 100; already-numeric values pass through
// unchanged.
func (t *WeeklyTable) parseRate(s string) sql.NullFloat64 {
	if s == "" {
		return sql.NullFloat64{}
	}
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			t.Warnings++
			return sql.NullFloat64{}
		}
		return sql.NullFloat64{Float64: v / 100, Valid: true}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Warnings++
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (t *WeeklyTable) parseCount(s string) sql.NullInt64 {
	if s == "" {
		return sql.NullInt64{}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}
	// exports sometimes carry counters as floats
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	t.Warnings++
	return sql.NullInt64{}
}

func (t *WeeklyTable) parseDate(s string) sql.NullTime {
	if s == "" {
		return sql.NullTime{}
	}
	for _, layout := range dateLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return sql.NullTime{Time: v, Valid: true}
		}
	}
	t.Warnings++
	return sql.NullTime{}
}
