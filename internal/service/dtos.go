package service

import "time"

// RateSet carries the derived rates recomputed from summed counters.
type RateSet struct {
	DeliveryRate      float64 `json:"delivery_rate"`
	OpenRate          float64 `json:"open_rate"`
	ClickRate         float64 `json:"click_rate"`
	CTOR              float64 `json:"ctor"`
	BounceRate        float64 `json:"bounce_rate"`
	SpamComplaintRate float64 `json:"spam_complaint_rate"`
	UnsubscribeRate   float64 `json:"unsubscribe_rate"`
}

// VolumeSet carries the summed volume counters of one group.
type VolumeSet struct {
	Sent         int64 `json:"sent"`
	Delivered    int64 `json:"delivered"`
	Opened       int64 `json:"opened"`
	Clicked      int64 `json:"clicked"`
	Bounced      int64 `json:"bounced"`
	MarkedAsSpam int64 `json:"marked_as_spam"`
	Unsubscribed int64 `json:"unsubscribed"`
}

// WeeksInfo lists the known week labels in insertion order plus the
// persisted update timestamps.
type WeeksInfo struct {
	Weeks                []string   `json:"weeks"`
	LastUpdated          *time.Time `json:"last_updated,omitempty"`
	AutomationMapUpdated *time.Time `json:"automation_map_updated,omitempty"`
}

// WeekSummary is the whole-week granularity.
type WeekSummary struct {
	Week string `json:"week"`
	VolumeSet
	RateSet
}

// AutomationPerformance is the per-automation granularity across all
// weeks. Campaigns absent from the mapping table are grouped under an
// empty automation name with Unmapped set.
type AutomationPerformance struct {
	Automation string `json:"automation"`
	Unmapped   bool   `json:"unmapped,omitempty"`
	VolumeSet
	RateSet
}

// WeeklyAutomationPerformance is the per-(automation, week)
// granularity, ordered by automation then week insertion order.
type WeeklyAutomationPerformance struct {
	Automation string `json:"automation"`
	Unmapped   bool   `json:"unmapped,omitempty"`
	Week       string `json:"week"`
	VolumeSet
	RateSet
}

// TrendRecord is one week of an automation's time series with the
// percentage change of each headline rate against the previous week.
// Change fields are nil for the first week of an automation and when
// the previous rate was zero.
type TrendRecord struct {
	Automation string `json:"automation"`
	Unmapped   bool   `json:"unmapped,omitempty"`
	Week       string `json:"week"`

	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
	CTOR      float64 `json:"ctor"`

	OpenRateChange  *float64 `json:"open_rate_change"`
	ClickRateChange *float64 `json:"click_rate_change"`
	CTORChange      *float64 `json:"ctor_change"`
}

// SubjectPerformance is the per-subject granularity plus derived
// subject-line features.
type SubjectPerformance struct {
	Subject string `json:"subject"`
	VolumeSet
	RateSet
	SubjectLength      int  `json:"subject_length"`
	HasPersonalization bool `json:"has_personalization"`
	HasQuestion        bool `json:"has_question"`
	HasDigit           bool `json:"has_digit"`
}

// DayPerformance is one weekday of the day-of-week analysis.
type DayPerformance struct {
	Day          string  `json:"day"`
	AvgOpenRate  float64 `json:"avg_open_rate"`
	AvgClickRate float64 `json:"avg_click_rate"`
	AvgCTOR      float64 `json:"avg_ctor"`
	Sent         int64   `json:"sent"`
	Delivered    int64   `json:"delivered"`
	Opened       int64   `json:"opened"`
	Clicked      int64   `json:"clicked"`
}

// DayOfWeekReport is ordered Monday through Sunday. Available is false
// when no row carries a creation timestamp; that is not an error.
type DayOfWeekReport struct {
	Available bool             `json:"available"`
	Days      []DayPerformance `json:"days"`
}
