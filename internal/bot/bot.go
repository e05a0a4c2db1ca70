package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"linkpulse/internal/analytics"
	"linkpulse/internal/database"
	"linkpulse/internal/store"
	"linkpulse/internal/types"
)

const reportRange = 7 * 24 * time.Hour

// TelegramBot is a thin consumer of the query API: it binds a chat to an
// account and renders summary and live reports on demand.
type TelegramBot struct {
	tgBot  *tele.Bot
	db     *database.Database
	engine *analytics.Service
}

func NewTelegramBot(tgToken string, db *database.Database, engine *analytics.Service) (*TelegramBot, error) {
	pref := tele.Settings{
		Token:  tgToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		return nil, err
	}

	b := &TelegramBot{
		tgBot:  bot,
		db:     db,
		engine: engine,
	}

	return b, nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	slog.Info("Telegram bot started", "bot_username", b.tgBot.Me.Username)

	b.tgBot.Handle("/start", b.handleStart)
	b.tgBot.Handle("/stats", b.handleStats)
	b.tgBot.Handle("/live", b.handleLive)

	go func() {
		<-ctx.Done()
		slog.Info("Telegram bot shutting down")
		b.tgBot.Stop()
	}()

	b.tgBot.Start()
	return nil
}

func (b *TelegramBot) handleStart(c tele.Context) error {
	slog.Debug("command /start received", "user_id", c.Sender().ID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.db.EnsureAccount(ctx, uuid.NewString(), c.Sender().ID); err != nil {
		slog.Error("failed to create account", "user_id", c.Sender().ID, "error", err)
		return c.Send("Failed to set up your account, please try again later.")
	}
	account, err := b.db.GetAccountByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		slog.Error("failed to load account", "user_id", c.Sender().ID, "error", err)
		return c.Send("Failed to set up your account, please try again later.")
	}
	return c.Send("Welcome! Your analytics account is ready.\nAccount ID: " + account.ID +
		"\nUse /stats for the last 7 days or /live for the current window.")
}

func (b *TelegramBot) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account, err := b.db.GetAccountByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		slog.Warn("stats requested for unknown chat", "user_id", c.Sender().ID, "error", err)
		return c.Send("No account bound to this chat yet. Send /start first.")
	}

	end := time.Now().UTC()
	summary, err := b.engine.Summarize(ctx, account.ID, end.Add(-reportRange), end, store.Filter{})
	if err != nil {
		slog.Error("failed to compute summary", "account_id", account.ID, "error", err)
		return c.Send("Could not compute your stats right now, please try again later.")
	}

	links, err := b.db.GetLinksByAccount(ctx, account.ID)
	if err != nil {
		slog.Warn("failed to load link titles", "account_id", account.ID, "error", err)
	}
	return c.Send(formatSummary(summary, links))
}

func (b *TelegramBot) handleLive(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	account, err := b.db.GetAccountByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		return c.Send("No account bound to this chat yet. Send /start first.")
	}

	live := b.engine.LiveSnapshot(account.ID)
	return c.Send(fmt.Sprintf(
		"Right now:\nActive visitors: %d\nViews: %d\nClicks: %d",
		live.ActiveUsers, live.CurrentViews, live.CurrentClicks))
}

func formatSummary(summary types.Summary, links []types.Link) string {
	titles := make(map[string]string, len(links))
	for _, l := range links {
		titles[l.ID] = l.Title
	}

	var sb strings.Builder
	sb.WriteString("Last 7 days:\n")
	fmt.Fprintf(&sb, "Views: %d\nClicks: %d\nUnique visitors: %d\n",
		summary.TotalViews, summary.TotalClicks, summary.UniqueVisitors)
	fmt.Fprintf(&sb, "Bounce rate: %.1f%%\nConversion rate: %.1f%%\n",
		summary.BounceRate, summary.ConversionRate)

	if len(summary.TopLinks) > 0 {
		sb.WriteString("\nTop links:\n")
		for i, link := range summary.TopLinks {
			if i == 5 {
				break
			}
			name := titles[link.LinkID]
			if name == "" {
				name = link.LinkID
			}
			fmt.Fprintf(&sb, "%d. %s — %d clicks (CTR %.1f%%)\n", i+1, name, link.Clicks, link.CTR)
		}
	}
	if len(summary.TrafficSources) > 0 {
		sb.WriteString("\nTraffic sources:\n")
		for _, src := range summary.TrafficSources {
			fmt.Fprintf(&sb, "%s: %d (%.1f%%)\n", src.Key, src.Count, src.Percentage)
		}
	}
	return sb.String()
}
