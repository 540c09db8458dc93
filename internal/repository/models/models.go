package models

import (
	"database/sql"
	"time"
)

// CampaignReport is one normalized row of a weekly export. Counter and
// rate fields are nullable: cells that fail to parse are stored as NULL
// and the row is kept.
type CampaignReport struct {
	WeekLabel   string
	MessageName string
	Subject     sql.NullString
	ListName    sql.NullString

	Sent         sql.NullInt64
	Delivered    sql.NullInt64
	Opened       sql.NullInt64
	Clicked      sql.NullInt64
	Bounced      sql.NullInt64
	MarkedAsSpam sql.NullInt64
	Unsubscribed sql.NullInt64

	OpenRate          sql.NullFloat64
	ClickRate         sql.NullFloat64
	CTOR              sql.NullFloat64
	BounceRate        sql.NullFloat64
	SpamComplaintRate sql.NullFloat64
	UnsubscribeRate   sql.NullFloat64

	CreatedOn sql.NullTime
}

// MappingEntry maps a campaign (message name) to its automation group.
type MappingEntry struct {
	MessageName string
	Automation  string
}

// WeekInfo describes one registered week in insertion order.
type WeekInfo struct {
	Label      string
	StorageKey string
	Position   int
	UpdatedAt  time.Time
}

// Metadata mirrors the persisted pipeline metadata record.
type Metadata struct {
	Weeks                []string
	LastUpdated          sql.NullTime
	AutomationMapUpdated sql.NullTime
}

// LoadReport is the outcome of reconstructing state from storage.
// Missing artifacts are tolerated; Complete tells the caller whether
// everything listed in the metadata was actually found.
type LoadReport struct {
	Complete      bool
	MappingLoaded bool
	WeeksFound    int
	MissingWeeks  []string
	LatestWeek    string
}

// GroupTotals holds summed volume counters and rates recomputed from
// those sums. Bounce and delivery rates divide by sent, CTOR by opened,
// the rest by delivered; a zero denominator yields 0.
type GroupTotals struct {
	Sent         int64
	Delivered    int64
	Opened       int64
	Clicked      int64
	Bounced      int64
	MarkedAsSpam int64
	Unsubscribed int64

	DeliveryRate      float64
	OpenRate          float64
	ClickRate         float64
	CTOR              float64
	BounceRate        float64
	SpamComplaintRate float64
	UnsubscribeRate   float64
}

type WeekTotals struct {
	Week string
	GroupTotals
}

// AutomationTotals groups by automation. Automation is NULL for
// campaigns absent from the mapping table; those rows are grouped
// together rather than dropped.
type AutomationTotals struct {
	Automation sql.NullString
	GroupTotals
}

type WeeklyAutomationTotals struct {
	Automation sql.NullString
	Week       string
	Position   int
	GroupTotals
}

type SubjectTotals struct {
	Subject string
	GroupTotals
}

// WeekdayAverages carries per-weekday means of the stored per-row rates
// plus volume sums. Weekday follows strftime('%w'): 0 is Sunday.
type WeekdayAverages struct {
	Weekday      int
	AvgOpenRate  float64
	AvgClickRate float64
	AvgCTOR      float64
	Sent         int64
	Delivered    int64
	Opened       int64
	Clicked      int64
}
