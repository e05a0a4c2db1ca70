package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickmigrations "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"linkpulse/internal/types"
)

//go:embed migrations/clickhouse/*.sql
var migrationsClickHouseFS embed.FS

const (
	asyncBufferSize = 1000
	asyncBatchSize  = 100
	asyncFlushEvery = 5 * time.Second
)

const insertColumns = `id, account_id, link_id, type, timestamp, user_agent, referrer,
		traffic_source, country, region, city, lat, lon,
		device_type, os, browser, screen_resolution,
		session_id, session_duration_ms, session_page_views, is_new_session,
		utm_source, utm_medium, utm_campaign, utm_term, utm_content, custom`

// ClickHouse is the durable EventStore backend. Append writes one event
// synchronously so storage failures surface to the caller; PushAsync feeds
// a buffered channel drained by the batch worker and is best-effort.
type ClickHouse struct {
	db     *sql.DB
	buffer chan types.AnalyticsEvent
}

func ConnectClickHouse(addr, user, pass, dbName string) (*ClickHouse, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: pass,
		},
		DialTimeout: time.Second * 30,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	s := &ClickHouse{
		db:     conn,
		buffer: make(chan types.AnalyticsEvent, asyncBufferSize),
	}

	if err := s.runMigrations(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ClickHouse) runMigrations() error {
	d, err := iofs.New(migrationsClickHouseFS, "migrations/clickhouse")
	if err != nil {
		return err
	}

	driver, err := clickmigrations.WithInstance(s.db, &clickmigrations.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"clickhouse", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	slog.Info("ClickHouse migrations applied successfully")
	return nil
}

// Start launches the async batch worker; it drains the buffer until ctx is
// cancelled.
func (s *ClickHouse) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *ClickHouse) worker(ctx context.Context) {
	var batch []types.AnalyticsEvent
	ticker := time.NewTicker(asyncFlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.appendBatch(batch); err != nil {
			slog.Warn("async event batch write failed", "error", err, "count", len(batch))
		}
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev := <-s.buffer:
			batch = append(batch, ev)
			if len(batch) >= asyncBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// PushAsync enqueues an event for the batch worker, dropping it when the
// buffer is full.
func (s *ClickHouse) PushAsync(event types.AnalyticsEvent) {
	select {
	case s.buffer <- event:
	default:
		slog.Warn("event buffer full, dropping event", "account_id", event.AccountID, "type", event.Type)
	}
}

func (s *ClickHouse) Append(ctx context.Context, event types.AnalyticsEvent) error {
	query := fmt.Sprintf("INSERT INTO events (%s) VALUES (%s)",
		insertColumns, placeholders(27))
	if _, err := s.db.ExecContext(ctx, query, insertArgs(event)...); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *ClickHouse) appendBatch(events []types.AnalyticsEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO events (%s) VALUES (%s)",
		insertColumns, placeholders(27)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(insertArgs(ev)...); err != nil {
			slog.Error("failed to exec insert for event", "error", err, "event_id", ev.ID)
			continue
		}
	}
	return tx.Commit()
}

func (s *ClickHouse) Query(ctx context.Context, accountID string, start, end time.Time, filter Filter) ([]types.AnalyticsEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM events
		WHERE account_id = ? AND timestamp >= ? AND timestamp < ?`, insertColumns)
	args := []any{accountID, start, end}

	if filter.LinkID != "" {
		query += " AND link_id = ?"
		args = append(args, filter.LinkID)
	}
	if len(filter.Types) > 0 {
		query += fmt.Sprintf(" AND type IN (%s)", placeholders(len(filter.Types)))
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []types.AnalyticsEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *ClickHouse) Close() error {
	return s.db.Close()
}

func insertArgs(ev types.AnalyticsEvent) []any {
	m := ev.Metadata
	var utm types.UTM
	if m.UTM != nil {
		utm = *m.UTM
	}
	return []any{
		ev.ID, ev.AccountID, ev.LinkID, string(ev.Type), ev.Timestamp,
		m.UserAgent, m.Referrer,
		m.TrafficSource, m.Location.Country, m.Location.Region, m.Location.City,
		m.Location.Lat, m.Location.Lon,
		m.Device.Type, m.Device.OS, m.Device.Browser, m.Device.ScreenResolution,
		m.Session.SessionID, m.Session.Duration.Milliseconds(),
		int32(m.Session.PageViews), boolToUInt8(m.Session.IsNewSession),
		utm.Source, utm.Medium, utm.Campaign, utm.Term, utm.Content,
		string(m.Custom),
	}
}

func scanEvent(rows *sql.Rows) (types.AnalyticsEvent, error) {
	var (
		ev         types.AnalyticsEvent
		evType     string
		durationMs int64
		pageViews  int32
		newSession uint8
		utm        types.UTM
		custom     string
	)
	err := rows.Scan(
		&ev.ID, &ev.AccountID, &ev.LinkID, &evType, &ev.Timestamp,
		&ev.Metadata.UserAgent, &ev.Metadata.Referrer,
		&ev.Metadata.TrafficSource,
		&ev.Metadata.Location.Country, &ev.Metadata.Location.Region,
		&ev.Metadata.Location.City, &ev.Metadata.Location.Lat, &ev.Metadata.Location.Lon,
		&ev.Metadata.Device.Type, &ev.Metadata.Device.OS,
		&ev.Metadata.Device.Browser, &ev.Metadata.Device.ScreenResolution,
		&ev.Metadata.Session.SessionID, &durationMs, &pageViews, &newSession,
		&utm.Source, &utm.Medium, &utm.Campaign, &utm.Term, &utm.Content,
		&custom,
	)
	if err != nil {
		return types.AnalyticsEvent{}, err
	}
	ev.Type = types.EventType(evType)
	ev.Metadata.Session.Duration = time.Duration(durationMs) * time.Millisecond
	ev.Metadata.Session.PageViews = int(pageViews)
	ev.Metadata.Session.IsNewSession = newSession == 1
	if utm != (types.UTM{}) {
		ev.Metadata.UTM = &utm
	}
	if custom != "" {
		ev.Metadata.Custom = []byte(custom)
	}
	return ev, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
