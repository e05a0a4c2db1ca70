package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/types"
)

func seedEvents(t *testing.T, m *Memory) {
	t.Helper()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	events := []types.AnalyticsEvent{
		{ID: "e1", AccountID: "u1", Type: types.EventPageView, Timestamp: base},
		{ID: "e2", AccountID: "u1", LinkID: "link-a", Type: types.EventLinkClick, Timestamp: base.Add(time.Minute)},
		{ID: "e3", AccountID: "u2", Type: types.EventPageView, Timestamp: base.Add(2 * time.Minute)},
		{ID: "e4", AccountID: "u1", Type: types.EventPageView, Timestamp: base.Add(time.Hour)},
	}
	for _, ev := range events {
		require.NoError(t, m.Append(context.Background(), ev))
	}
}

func TestMemoryQueryRangeAndAccount(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	got, err := m.Query(context.Background(), "u1", base, base.Add(30*time.Minute), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
}

func TestMemoryQueryEndExclusive(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	got, err := m.Query(context.Background(), "u1", base, base.Add(time.Hour), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2, "event exactly at end must be excluded")
}

func TestMemoryQueryFilters(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	end := base.Add(2 * time.Hour)

	byLink, err := m.Query(context.Background(), "u1", base, end, Filter{LinkID: "link-a"})
	require.NoError(t, err)
	require.Len(t, byLink, 1)
	assert.Equal(t, "e2", byLink[0].ID)

	byType, err := m.Query(context.Background(), "u1", base, end, Filter{Types: []types.EventType{types.EventPageView}})
	require.NoError(t, err)
	require.Len(t, byType, 2)
}

func TestMemoryQueryStableOrder(t *testing.T) {
	m := NewMemory()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	// Same timestamp, inserted out of id order.
	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, m.Append(context.Background(), types.AnalyticsEvent{
			ID: id, AccountID: "u1", Type: types.EventPageView, Timestamp: ts,
		}))
	}

	got, err := m.Query(context.Background(), "u1", ts.Add(-time.Minute), ts.Add(time.Minute), Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, ev := range got {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryConcurrentAppend(t *testing.T) {
	m := NewMemory()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = m.Append(context.Background(), types.AnalyticsEvent{
					ID:        fmt.Sprintf("%d-%d", n, j),
					AccountID: "u1",
					Type:      types.EventPageView,
					Timestamp: time.Now(),
				})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 400, m.Len())
}
