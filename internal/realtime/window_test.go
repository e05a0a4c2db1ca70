package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/types"
)

func event(account, link, session string, t types.EventType, ts time.Time) types.AnalyticsEvent {
	return types.AnalyticsEvent{
		ID:        fmt.Sprintf("%s-%d", session, ts.UnixNano()),
		AccountID: account,
		LinkID:    link,
		Type:      t,
		Timestamp: ts,
		Metadata: types.Metadata{
			Session: types.SessionInfo{SessionID: session},
		},
	}
}

func TestSnapshotEvictsOutsideWindow(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	w.Record(event("u1", "", "old-session", types.EventPageView, now.Add(-6*time.Minute)))
	w.Record(event("u1", "", "live-session", types.EventPageView, now.Add(-time.Minute)))

	snap := w.Snapshot("u1", now)
	assert.Equal(t, 1, snap.ActiveUsers)
	assert.Equal(t, 1, snap.CurrentViews)
	require.Len(t, snap.RecentEvents, 1)
	assert.Equal(t, "live-session", snap.RecentEvents[0].Metadata.Session.SessionID)
}

func TestSnapshotCountsAndTopPages(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	w.Record(event("u1", "", "s1", types.EventPageView, now.Add(-4*time.Minute)))
	w.Record(event("u1", "link-a", "s1", types.EventLinkClick, now.Add(-3*time.Minute)))
	w.Record(event("u1", "link-a", "s2", types.EventLinkClick, now.Add(-2*time.Minute)))
	w.Record(event("u1", "link-b", "s2", types.EventLinkClick, now.Add(-time.Minute)))

	snap := w.Snapshot("u1", now)
	assert.Equal(t, 2, snap.ActiveUsers)
	assert.Equal(t, 1, snap.CurrentViews)
	assert.Equal(t, 3, snap.CurrentClicks)

	require.Len(t, snap.TopPages, 3)
	assert.Equal(t, types.PageStat{Page: "link-a", Count: 2}, snap.TopPages[0])
}

func TestSnapshotIgnoresOtherAccounts(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	w.Record(event("u1", "", "s1", types.EventPageView, now.Add(-time.Minute)))
	w.Record(event("u2", "", "s2", types.EventPageView, now.Add(-time.Minute)))

	snap := w.Snapshot("u1", now)
	assert.Equal(t, 1, snap.CurrentViews)
	assert.Equal(t, 1, snap.ActiveUsers)
}

func TestRecentEventsNewestFirstCappedAtTen(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		w.Record(event("u1", "", fmt.Sprintf("s%d", i), types.EventPageView,
			now.Add(time.Duration(i-15)*time.Second)))
	}

	snap := w.Snapshot("u1", now)
	require.Len(t, snap.RecentEvents, 10)
	assert.Equal(t, "s14", snap.RecentEvents[0].Metadata.Session.SessionID)
	assert.Equal(t, "s5", snap.RecentEvents[9].Metadata.Session.SessionID)
}

func TestRecordEvictsEagerly(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		w.Record(event("u1", "", "s", types.EventPageView, now.Add(time.Duration(i)*time.Minute)))
	}
	w.mu.Lock()
	held := len(w.events)
	w.mu.Unlock()
	assert.LessOrEqual(t, held, 6, "entries older than the window must not accumulate")
}
