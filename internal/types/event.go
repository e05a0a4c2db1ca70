package types

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPageView     EventType = "page_view"
	EventLinkClick    EventType = "link_click"
	EventConversion   EventType = "conversion"
	EventBounce       EventType = "bounce"
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventLinkClick, EventConversion, EventBounce, EventSessionStart, EventSessionEnd:
		return true
	default:
		return false
	}
}

type Location struct {
	Country string  `json:"country" db:"country"`
	Region  string  `json:"region" db:"region"`
	City    string  `json:"city" db:"city"`
	Lat     float64 `json:"lat" db:"lat"`
	Lon     float64 `json:"lon" db:"lon"`
}

// UnknownLocation is the degraded record used whenever the geo resolver
// cannot produce an answer.
func UnknownLocation() Location {
	return Location{Country: "Unknown", Region: "Unknown", City: "Unknown"}
}

type Device struct {
	Type             string `json:"type" db:"device_type"`
	OS               string `json:"os" db:"os"`
	Browser          string `json:"browser" db:"browser"`
	ScreenResolution string `json:"screen_resolution" db:"screen_resolution"`
}

type SessionInfo struct {
	SessionID    string        `json:"session_id" db:"session_id"`
	Duration     time.Duration `json:"duration" db:"duration"`
	PageViews    int           `json:"page_views" db:"page_views"`
	IsNewSession bool          `json:"is_new_session" db:"is_new_session"`
}

type UTM struct {
	Source   string `json:"source" db:"utm_source"`
	Medium   string `json:"medium" db:"utm_medium"`
	Campaign string `json:"campaign" db:"utm_campaign"`
	Term     string `json:"term" db:"utm_term"`
	Content  string `json:"content" db:"utm_content"`
}

// Metadata is the enrichment payload attached to every stored event.
// Custom is an opaque caller-supplied blob; the engine never inspects it.
type Metadata struct {
	UserAgent     string          `json:"user_agent"`
	Referrer      string          `json:"referrer"`
	IPAddress     string          `json:"ip_address"`
	TrafficSource string          `json:"traffic_source"`
	Location      Location        `json:"location"`
	Device        Device          `json:"device"`
	Session       SessionInfo     `json:"session"`
	UTM           *UTM            `json:"utm,omitempty"`
	Custom        json.RawMessage `json:"custom,omitempty"`
}

// AnalyticsEvent is an immutable fact once stored: corrections are new
// events, never edits.
type AnalyticsEvent struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	LinkID    string    `json:"link_id,omitempty"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// RawEvent carries the request attributes a caller is able to observe.
// Everything else on the stored event is derived at ingestion.
type RawEvent struct {
	UserAgent        string          `json:"user_agent"`
	Referrer         string          `json:"referrer"`
	IPAddress        string          `json:"ip_address"`
	PageURL          string          `json:"page_url"`
	ScreenWidth      int             `json:"screen_width"`
	ScreenResolution string          `json:"screen_resolution"`
	VisitorID        string          `json:"visitor_id"`
	Custom           json.RawMessage `json:"custom,omitempty"`
}

type Ack struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
}
