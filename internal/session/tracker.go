package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkpulse/internal/types"
)

const (
	// DefaultInactivityWindow ends a session after this much silence from
	// the visitor. The boundary is inferred, never enforced client-side.
	DefaultInactivityWindow = 30 * time.Minute

	janitorInterval = time.Minute
)

// Expired describes a session the janitor pruned.
type Expired struct {
	VisitorKey string
	SessionID  string
	PageViews  int
	StartTime  time.Time
	LastSeen   time.Time
}

// ExpiredFn receives sessions pruned by the janitor.
type ExpiredFn func(Expired)

type liveSession struct {
	id        string
	startTime time.Time
	lastSeen  time.Time
	pageViews int
}

// Tracker maintains per-visitor session continuity. It is shared by every
// concurrent ingestion call, so all map access goes through the mutex.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
	window   time.Duration
	onExpire ExpiredFn
}

func NewTracker(window time.Duration, onExpire ExpiredFn) *Tracker {
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	return &Tracker{
		sessions: make(map[string]*liveSession),
		window:   window,
		onExpire: onExpire,
	}
}

// Resolve continues the visitor's live session or starts a new one when
// none exists or the inactivity window has elapsed since the last event.
func (t *Tracker) Resolve(visitorKey string, now time.Time) types.SessionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[visitorKey]
	if !ok || now.Sub(s.lastSeen) > t.window {
		s = &liveSession{
			id:        uuid.NewString(),
			startTime: now,
			lastSeen:  now,
			pageViews: 1,
		}
		t.sessions[visitorKey] = s
		return types.SessionInfo{
			SessionID:    s.id,
			PageViews:    1,
			IsNewSession: true,
		}
	}

	s.pageViews++
	s.lastSeen = now
	return types.SessionInfo{
		SessionID:    s.id,
		Duration:     now.Sub(s.startTime),
		PageViews:    s.pageViews,
		IsNewSession: false,
	}
}

// Start runs the janitor until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Prune(time.Now())
			}
		}
	}()
}

// Prune drops sessions whose inactivity window has elapsed and reports
// each one to the expiry callback.
func (t *Tracker) Prune(now time.Time) {
	var expired []Expired

	t.mu.Lock()
	for key, s := range t.sessions {
		if now.Sub(s.lastSeen) > t.window {
			expired = append(expired, Expired{
				VisitorKey: key,
				SessionID:  s.id,
				PageViews:  s.pageViews,
				StartTime:  s.startTime,
				LastSeen:   s.lastSeen,
			})
			delete(t.sessions, key)
		}
	}
	t.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	slog.Debug("expired sessions pruned", "count", len(expired))
	if t.onExpire != nil {
		for _, e := range expired {
			t.onExpire(e)
		}
	}
}

// Live returns the number of currently tracked sessions.
func (t *Tracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
