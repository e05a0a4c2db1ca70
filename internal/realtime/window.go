package realtime

import (
	"sort"
	"sync"
	"time"

	"linkpulse/internal/types"
)

const (
	// DefaultWindow is the trailing interval visible in live counters.
	DefaultWindow = 5 * time.Minute

	recentLimit = 10
)

// Window is a bounded, continuously-evicting view over the most recent
// events. Entries are appended in arrival order and evicted from the front,
// so eviction cost follows window churn, not total history.
type Window struct {
	mu     sync.Mutex
	span   time.Duration
	events []types.AnalyticsEvent
}

func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = DefaultWindow
	}
	return &Window{span: span}
}

// Record adds an event and evicts everything older than the window.
func (w *Window) Record(event types.AnalyticsEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	w.evict(event.Timestamp)
}

// Snapshot evicts stale entries and derives the live view for the given
// account as of now.
func (w *Window) Snapshot(accountID string, now time.Time) types.RealTime {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now)

	var (
		rt       types.RealTime
		sessions = make(map[string]struct{})
		pages    = make(map[string]int)
		order    []string
		matched  []types.AnalyticsEvent
	)
	for _, ev := range w.events {
		if ev.AccountID != accountID {
			continue
		}
		matched = append(matched, ev)
		if id := ev.Metadata.Session.SessionID; id != "" {
			sessions[id] = struct{}{}
		}
		switch ev.Type {
		case types.EventPageView:
			rt.CurrentViews++
		case types.EventLinkClick:
			rt.CurrentClicks++
		}
		page := ev.LinkID
		if page == "" {
			page = "profile"
		}
		if _, seen := pages[page]; !seen {
			order = append(order, page)
		}
		pages[page]++
	}

	rt.ActiveUsers = len(sessions)
	rt.TopPages = topPages(pages, order)
	rt.RecentEvents = recent(matched)
	return rt
}

// evict drops entries older than the window relative to now. Events arrive
// timestamped at ingestion, so the slice stays time-ordered.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.events) && !w.events[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0:0], w.events[i:]...)
	}
}

func topPages(counts map[string]int, order []string) []types.PageStat {
	stats := make([]types.PageStat, 0, len(order))
	for _, page := range order {
		stats = append(stats, types.PageStat{Page: page, Count: counts[page]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

func recent(events []types.AnalyticsEvent) []types.AnalyticsEvent {
	n := len(events)
	limit := recentLimit
	if n < limit {
		limit = n
	}
	out := make([]types.AnalyticsEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, events[i])
	}
	return out
}
