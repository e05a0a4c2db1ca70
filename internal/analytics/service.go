package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkpulse/internal/cache"
	"linkpulse/internal/enrich"
	"linkpulse/internal/realtime"
	"linkpulse/internal/session"
	"linkpulse/internal/store"
	"linkpulse/internal/types"
)

const summaryCacheTTL = time.Minute

// AsyncAppender receives best-effort writes that must not block or fail
// the caller, such as synthesized session_end events.
type AsyncAppender interface {
	PushAsync(event types.AnalyticsEvent)
}

type Config struct {
	Store          store.EventStore
	Enricher       *enrich.Enricher
	Cache          *cache.Cache  // optional summary cache
	Async          AsyncAppender // optional sink for synthesized session_end events
	SessionWindow  time.Duration
	RealTimeWindow time.Duration
}

// Service is the analytics engine: ingestion, session continuity, the
// real-time window and summary aggregation behind one injected instance.
type Service struct {
	store    store.EventStore
	enricher *enrich.Enricher
	cache    *cache.Cache
	async    AsyncAppender
	sessions *session.Tracker
	window   *realtime.Window
	now      func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		enricher: cfg.Enricher,
		cache:    cfg.Cache,
		async:    cfg.Async,
		window:   realtime.NewWindow(cfg.RealTimeWindow),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.sessions = session.NewTracker(cfg.SessionWindow, s.handleExpired)
	return s
}

// Start launches the session janitor; it stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.sessions.Start(ctx)
}

// Track validates, enriches and durably records one raw visitor event.
// The stored timestamp is engine-assigned: client clocks are never trusted.
func (s *Service) Track(ctx context.Context, accountID string, eventType types.EventType, raw types.RawEvent, linkID string) (types.Ack, error) {
	if accountID == "" {
		return types.Ack{}, ErrMissingAccount
	}
	if !eventType.Valid() {
		slog.Warn("rejected event with unknown type", "account_id", accountID, "type", eventType)
		return types.Ack{}, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	now := s.now()
	meta := s.enricher.Enrich(ctx, raw)
	meta.Session = s.sessions.Resolve(s.visitorKey(accountID, raw), now)

	event := types.AnalyticsEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		LinkID:    linkID,
		Type:      eventType,
		Timestamp: now,
		Metadata:  meta,
	}

	if err := s.store.Append(ctx, event); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// Live counters are best-effort; a durable write already succeeded.
	s.window.Record(event)

	return types.Ack{EventID: event.ID, SessionID: meta.Session.SessionID}, nil
}

// LiveSnapshot returns the volatile view over the trailing window.
func (s *Service) LiveSnapshot(accountID string) types.RealTime {
	return s.window.Snapshot(accountID, s.now())
}

// Summarize computes the deterministic summary for the account over
// [start, end). Results are cached briefly; a cache failure only logs.
func (s *Service) Summarize(ctx context.Context, accountID string, start, end time.Time, filter store.Filter) (types.Summary, error) {
	key := summaryKey(accountID, start, end, filter)
	if s.cache != nil {
		if cached, err := s.cache.GetSummary(ctx, key); err == nil {
			return *cached, nil
		} else if !cache.IsMiss(err) {
			slog.Warn("summary cache read failed", "error", err)
		}
	}

	events, err := s.store.Query(ctx, accountID, start, end, filter)
	if err != nil {
		return types.Summary{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	summary := reduce(events)

	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, key, summary, summaryCacheTTL); err != nil {
			slog.Warn("summary cache write failed", "error", err)
		}
	}
	return summary, nil
}

// visitorKey scopes session continuity to one account. A stable visitor id
// is preferred; IP plus user agent is the fallback fingerprint.
func (s *Service) visitorKey(accountID string, raw types.RawEvent) string {
	visitor := raw.VisitorID
	if visitor == "" {
		visitor = raw.IPAddress + "|" + raw.UserAgent
	}
	return accountID + "|" + visitor
}

// handleExpired synthesizes a session_end event for a pruned session and
// hands it to the async writer. Ingestion is never blocked by this path.
func (s *Service) handleExpired(e session.Expired) {
	if s.async == nil {
		return
	}
	accountID, _, found := strings.Cut(e.VisitorKey, "|")
	if !found {
		return
	}
	s.async.PushAsync(types.AnalyticsEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Type:      types.EventSessionEnd,
		Timestamp: e.LastSeen,
		Metadata: types.Metadata{
			Session: types.SessionInfo{
				SessionID: e.SessionID,
				Duration:  e.LastSeen.Sub(e.StartTime),
				PageViews: e.PageViews,
			},
		},
	})
}

func summaryKey(accountID string, start, end time.Time, filter store.Filter) string {
	kinds := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		kinds = append(kinds, string(t))
	}
	return fmt.Sprintf("summary:%s:%d:%d:%s:%s",
		accountID, start.Unix(), end.Unix(), filter.LinkID, strings.Join(kinds, ","))
}
