package store

import (
	"context"
	"time"

	"linkpulse/internal/types"
)

// Filter narrows a range query. Zero values match everything.
type Filter struct {
	LinkID string
	Types  []types.EventType
}

func (f Filter) matchType(t types.EventType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if t == want {
			return true
		}
	}
	return false
}

// EventStore is the durable append-only log of enriched events. Stored
// events are never mutated or deleted. Query returns events ordered by
// (timestamp, id) so aggregation output does not depend on storage order.
type EventStore interface {
	Append(ctx context.Context, event types.AnalyticsEvent) error
	Query(ctx context.Context, accountID string, start, end time.Time, filter Filter) ([]types.AnalyticsEvent, error)
}
