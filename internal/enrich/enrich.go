package enrich

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"linkpulse/internal/types"
)

const (
	mobileMaxWidth = 768
	tabletMaxWidth = 1024

	resolveTimeout = 500 * time.Millisecond
)

// knownSources maps referrer hosts to a named traffic source. Matching is
// case-insensitive and ignores a leading "www." prefix.
var knownSources = map[string]string{
	"google.com":     "Google",
	"bing.com":       "Bing",
	"yahoo.com":      "Yahoo",
	"duckduckgo.com": "DuckDuckGo",
	"yandex.ru":      "Yandex",
	"baidu.com":      "Baidu",
	"facebook.com":   "Facebook",
	"instagram.com":  "Instagram",
	"twitter.com":    "Twitter",
	"x.com":          "Twitter",
	"t.co":           "Twitter",
	"linkedin.com":   "LinkedIn",
	"tiktok.com":     "TikTok",
	"youtube.com":    "YouTube",
	"reddit.com":     "Reddit",
	"pinterest.com":  "Pinterest",
	"t.me":           "Telegram",
}

var osPatterns = []struct{ substr, name string }{
	{"windows", "Windows"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"mac os", "macOS"},
	{"macintosh", "macOS"},
	{"linux", "Linux"},
}

// Order matters: Edge and Opera advertise Chrome, Chrome advertises Safari.
var browserPatterns = []struct{ substr, name string }{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"opera", "Opera"},
	{"firefox", "Firefox"},
	{"chrome", "Chrome"},
	{"safari", "Safari"},
}

// Enricher derives device, traffic source, UTM and location context for a
// raw event. It performs no network calls beyond the single resolver lookup
// and never fails: missing or unparseable input degrades to "Unknown".
type Enricher struct {
	resolver Resolver
}

func NewEnricher(resolver Resolver) *Enricher {
	return &Enricher{resolver: resolver}
}

func (e *Enricher) Enrich(ctx context.Context, raw types.RawEvent) types.Metadata {
	return types.Metadata{
		UserAgent:     raw.UserAgent,
		Referrer:      raw.Referrer,
		IPAddress:     raw.IPAddress,
		TrafficSource: ClassifySource(raw.Referrer),
		Location:      e.resolveLocation(ctx, raw.IPAddress),
		Device: types.Device{
			Type:             ClassifyDevice(raw.ScreenWidth),
			OS:               DetectOS(raw.UserAgent),
			Browser:          DetectBrowser(raw.UserAgent),
			ScreenResolution: raw.ScreenResolution,
		},
		UTM:    ExtractUTM(raw.PageURL),
		Custom: raw.Custom,
	}
}

func (e *Enricher) resolveLocation(ctx context.Context, ip string) types.Location {
	if e.resolver == nil || ip == "" {
		return types.UnknownLocation()
	}
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	loc, err := e.resolver.Resolve(ctx, ip)
	if err != nil {
		slog.Debug("geo lookup degraded", "error", err)
		return types.UnknownLocation()
	}
	return loc
}

// ClassifyDevice buckets a viewport width into mobile, tablet or desktop.
// A missing width is treated as desktop.
func ClassifyDevice(screenWidth int) string {
	switch {
	case screenWidth > 0 && screenWidth < mobileMaxWidth:
		return "mobile"
	case screenWidth > 0 && screenWidth < tabletMaxWidth:
		return "tablet"
	default:
		return "desktop"
	}
}

func DetectOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, p := range osPatterns {
		if strings.Contains(ua, p.substr) {
			return p.name
		}
	}
	return "Unknown"
}

func DetectBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, p := range browserPatterns {
		if strings.Contains(ua, p.substr) {
			return p.name
		}
	}
	return "Unknown"
}

// ClassifySource categorizes a referrer URL: empty means the visitor came
// directly, a known host gets its platform name, everything else is a
// generic referral.
func ClassifySource(referrer string) string {
	if strings.TrimSpace(referrer) == "" {
		return "Direct"
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return "Referral"
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if name, ok := knownSources[host]; ok {
		return name
	}
	return "Referral"
}

// ExtractUTM parses the five conventional campaign parameters from a page
// URL. It returns nil when all five are empty so callers can distinguish
// "no campaign" from a campaign with empty fields.
func ExtractUTM(pageURL string) *types.UTM {
	if pageURL == "" {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	utm := types.UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Term:     q.Get("utm_term"),
		Content:  q.Get("utm_content"),
	}
	if utm == (types.UTM{}) {
		return nil
	}
	return &utm
}
