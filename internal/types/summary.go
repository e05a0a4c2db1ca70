package types

import "time"

// LinkStat is one row of the top-links breakdown.
type LinkStat struct {
	LinkID string  `json:"link_id"`
	Clicks int     `json:"clicks"`
	Views  int     `json:"views"`
	CTR    float64 `json:"ctr"`
}

// Breakdown is one row of a key/count breakdown (traffic source, device
// type, country).
type Breakdown struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type HourlyBucket struct {
	Views  int `json:"views"`
	Clicks int `json:"clicks"`
}

type DailyBucket struct {
	Date     string `json:"date"`
	Views    int    `json:"views"`
	Clicks   int    `json:"clicks"`
	Visitors int    `json:"visitors"`
}

// Summary is a pure function of an event set; it is recomputed on demand
// and never stored.
type Summary struct {
	TotalViews             int              `json:"total_views"`
	TotalClicks            int              `json:"total_clicks"`
	UniqueVisitors         int              `json:"unique_visitors"`
	BounceRate             float64          `json:"bounce_rate"`
	AverageSessionDuration time.Duration    `json:"average_session_duration"`
	ConversionRate         float64          `json:"conversion_rate"`
	TopLinks               []LinkStat       `json:"top_links"`
	TrafficSources         []Breakdown      `json:"traffic_sources"`
	DeviceTypes            []Breakdown      `json:"device_types"`
	GeographicData         []Breakdown      `json:"geographic_data"`
	HourlyData             [24]HourlyBucket `json:"hourly_data"`
	DailyData              []DailyBucket    `json:"daily_data"`
}

// PageStat is one row of the real-time top-pages breakdown.
type PageStat struct {
	Page  string `json:"page"`
	Count int    `json:"count"`
}

// RealTime is the volatile view over the trailing window.
type RealTime struct {
	ActiveUsers   int              `json:"active_users"`
	CurrentViews  int              `json:"current_views"`
	CurrentClicks int              `json:"current_clicks"`
	TopPages      []PageStat       `json:"top_pages"`
	RecentEvents  []AnalyticsEvent `json:"recent_events"`
}
