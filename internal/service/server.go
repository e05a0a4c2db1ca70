package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"linkpulse/internal/analytics"
	"linkpulse/internal/store"
	"linkpulse/internal/types"
)

const defaultRange = 7 * 24 * time.Hour

// Server exposes the engine's narrow boundary over HTTP: one ingest call
// and two read calls for dashboards.
type Server struct {
	port   string
	engine *analytics.Service
}

func NewServer(port string, engine *analytics.Service) *Server {
	return &Server{
		port:   port,
		engine: engine,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /track", s.handlerTrack)
	mux.HandleFunc("GET /accounts/{id}/summary", s.handlerSummary)
	mux.HandleFunc("GET /accounts/{id}/live", s.handlerLive)
	srv := &http.Server{
		Addr:    ":" + s.port,
		Handler: mux,
	}
	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type trackRequest struct {
	AccountID string          `json:"account_id"`
	Type      types.EventType `json:"type"`
	LinkID    string          `json:"link_id"`
	Event     types.RawEvent  `json:"event"`
}

func (s *Server) handlerTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Prefer what the browser actually sent over caller-supplied hints.
	if req.Event.IPAddress == "" {
		req.Event.IPAddress = r.Header.Get("X-Forwarded-For")
	}
	if req.Event.UserAgent == "" {
		req.Event.UserAgent = r.UserAgent()
	}
	if req.Event.Referrer == "" {
		req.Event.Referrer = r.Referer()
	}

	ack, err := s.engine.Track(r.Context(), req.AccountID, req.Type, req.Event, req.LinkID)
	switch {
	case errors.Is(err, analytics.ErrUnknownEventType), errors.Is(err, analytics.ErrMissingAccount):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("track failed", "account_id", req.AccountID, "error", err)
		http.Error(w, "failed to record event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (s *Server) handlerSummary(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if accountID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	start, end, err := parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "invalid date range, use RFC3339 or YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	filter := store.Filter{LinkID: r.URL.Query().Get("link")}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	summary, err := s.engine.Summarize(ctx, accountID, start, end, filter)
	if err != nil {
		slog.Error("summarize failed", "account_id", accountID, "error", err)
		http.Error(w, "failed to compute summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlerLive(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if accountID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.LiveSnapshot(accountID))
}

// parseRange accepts RFC3339 timestamps or plain dates; a plain end date
// is inclusive, so the range extends to the following midnight. Missing
// bounds default to the trailing week.
func parseRange(startParam, endParam string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.Add(-defaultRange)
	end := now

	if startParam != "" {
		t, _, err := parseStamp(startParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if endParam != "" {
		t, dateOnly, err := parseStamp(endParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly {
			t = t.Add(24 * time.Hour)
		}
		end = t
	}
	return start, end, nil
}

func parseStamp(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
