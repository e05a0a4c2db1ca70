package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContinuesSessionWithinWindow(t *testing.T) {
	tr := NewTracker(30*time.Minute, nil)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	first := tr.Resolve("acct|visitor-1", now)
	require.True(t, first.IsNewSession)
	require.Equal(t, 1, first.PageViews)
	require.NotEmpty(t, first.SessionID)

	second := tr.Resolve("acct|visitor-1", now.Add(10*time.Second))
	assert.False(t, second.IsNewSession)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 2, second.PageViews)
	assert.Equal(t, 10*time.Second, second.Duration)
}

func TestResolveStartsNewSessionAfterGap(t *testing.T) {
	tr := NewTracker(30*time.Minute, nil)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	first := tr.Resolve("acct|visitor-1", now)
	later := tr.Resolve("acct|visitor-1", now.Add(31*time.Minute))

	assert.True(t, later.IsNewSession)
	assert.NotEqual(t, first.SessionID, later.SessionID)
	assert.Equal(t, 1, later.PageViews)
}

func TestResolveKeepsVisitorsSeparate(t *testing.T) {
	tr := NewTracker(30*time.Minute, nil)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	a := tr.Resolve("acct|visitor-a", now)
	b := tr.Resolve("acct|visitor-b", now)

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, 2, tr.Live())
}

func TestPruneReportsExpiredSessions(t *testing.T) {
	var expired []Expired
	tr := NewTracker(30*time.Minute, func(e Expired) { expired = append(expired, e) })
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	stale := tr.Resolve("acct|gone", now)
	tr.Resolve("acct|gone", now.Add(5*time.Minute))
	fresh := tr.Resolve("acct|here", now.Add(20*time.Minute))

	tr.Prune(now.Add(40 * time.Minute))

	require.Len(t, expired, 1)
	assert.Equal(t, "acct|gone", expired[0].VisitorKey)
	assert.Equal(t, stale.SessionID, expired[0].SessionID)
	assert.Equal(t, 2, expired[0].PageViews)
	assert.Equal(t, now, expired[0].StartTime)
	assert.Equal(t, now.Add(5*time.Minute), expired[0].LastSeen)

	// The fresh session survives and keeps its identity.
	still := tr.Resolve("acct|here", now.Add(41*time.Minute))
	assert.Equal(t, fresh.SessionID, still.SessionID)
	assert.Equal(t, 1, tr.Live())
}

func TestPageViewsNeverDecrease(t *testing.T) {
	tr := NewTracker(30*time.Minute, nil)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	prev := 0
	for i := 0; i < 20; i++ {
		info := tr.Resolve("acct|v", now.Add(time.Duration(i)*time.Second))
		require.Greater(t, info.PageViews, prev)
		prev = info.PageViews
	}
}
