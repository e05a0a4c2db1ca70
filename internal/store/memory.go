package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"linkpulse/internal/types"
)

// Memory is a mutex-guarded in-memory EventStore, used in tests and as a
// stand-in when no durable backend is configured.
type Memory struct {
	mu     sync.RWMutex
	events []types.AnalyticsEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, event types.AnalyticsEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Query(ctx context.Context, accountID string, start, end time.Time, filter Filter) ([]types.AnalyticsEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.AnalyticsEvent
	for _, ev := range m.events {
		if ev.AccountID != accountID {
			continue
		}
		if ev.Timestamp.Before(start) || !ev.Timestamp.Before(end) {
			continue
		}
		if filter.LinkID != "" && ev.LinkID != filter.LinkID {
			continue
		}
		if !filter.matchType(ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Len reports the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
