package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/enrich"
	"linkpulse/internal/store"
	"linkpulse/internal/types"
)

func day(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func pageView(id, session string, ts time.Time) types.AnalyticsEvent {
	return types.AnalyticsEvent{
		ID: id, AccountID: "u1", Type: types.EventPageView, Timestamp: ts,
		Metadata: types.Metadata{
			TrafficSource: "Direct",
			Device:        types.Device{Type: "mobile"},
			Location:      types.Location{Country: "Germany"},
			Session:       types.SessionInfo{SessionID: session},
		},
	}
}

func linkClick(id, link, session string, ts time.Time) types.AnalyticsEvent {
	ev := pageView(id, session, ts)
	ev.Type = types.EventLinkClick
	ev.LinkID = link
	return ev
}

func testService(t *testing.T, events []types.AnalyticsEvent) *Service {
	t.Helper()
	mem := store.NewMemory()
	for _, ev := range events {
		require.NoError(t, mem.Append(context.Background(), ev))
	}
	return NewService(Config{Store: mem, Enricher: enrich.NewEnricher(nil)})
}

func TestSummarizeEndToEndScenario(t *testing.T) {
	events := []types.AnalyticsEvent{
		pageView("e1", "s1", day(9, 0)),
		pageView("e2", "s1", day(9, 5)),
		pageView("e3", "s1", day(14, 0)),
		linkClick("e4", "link-a", "s1", day(14, 1)),
	}
	svc := testService(t, events)

	summary, err := svc.Summarize(context.Background(), "u1",
		day(0, 0), day(0, 0).Add(24*time.Hour), store.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalViews)
	assert.Equal(t, 1, summary.TotalClicks)
	assert.Equal(t, 1, summary.UniqueVisitors)
	require.NotEmpty(t, summary.TopLinks)
	assert.Equal(t, 1, summary.TopLinks[0].Clicks)
}

func TestSummarizeIsDeterministic(t *testing.T) {
	var events []types.AnalyticsEvent
	for i := 0; i < 50; i++ {
		events = append(events, pageView(fmt.Sprintf("v%02d", i), fmt.Sprintf("s%d", i%7), day(i%24, i%60)))
		events = append(events, linkClick(fmt.Sprintf("c%02d", i), fmt.Sprintf("link-%d", i%5), fmt.Sprintf("s%d", i%7), day(i%24, (i+1)%60)))
	}
	svc := testService(t, events)

	start, end := day(0, 0), day(0, 0).Add(24*time.Hour)
	first, err := svc.Summarize(context.Background(), "u1", start, end, store.Filter{})
	require.NoError(t, err)
	second, err := svc.Summarize(context.Background(), "u1", start, end, store.Filter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRatesGuardZeroDenominator(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		{ID: "b1", AccountID: "u1", Type: types.EventBounce, Timestamp: day(10, 0)},
		{ID: "c1", AccountID: "u1", Type: types.EventConversion, Timestamp: day(10, 1)},
	})

	assert.Equal(t, 0, summary.TotalViews)
	assert.Zero(t, summary.BounceRate)
	assert.Zero(t, summary.ConversionRate)
}

func TestRates(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		pageView("e1", "s1", day(9, 0)),
		pageView("e2", "s1", day(9, 1)),
		pageView("e3", "s2", day(9, 2)),
		pageView("e4", "s2", day(9, 3)),
		{ID: "b1", AccountID: "u1", Type: types.EventBounce, Timestamp: day(9, 4)},
		{ID: "c1", AccountID: "u1", Type: types.EventConversion, Timestamp: day(9, 5)},
	})

	assert.Equal(t, 4, summary.TotalViews)
	assert.InEpsilon(t, 25.0, summary.BounceRate, 1e-9)
	assert.InEpsilon(t, 25.0, summary.ConversionRate, 1e-9)
}

func TestHourlyAndDailyConsistency(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		pageView("e1", "s1", day(9, 0)),
		pageView("e2", "s1", day(9, 30)),
		pageView("e3", "s1", day(14, 0)),
	})

	assert.Equal(t, 2, summary.HourlyData[9].Views)
	assert.Equal(t, 1, summary.HourlyData[14].Views)

	total := 0
	for _, bucket := range summary.HourlyData {
		total += bucket.Views
	}
	assert.Equal(t, summary.TotalViews, total)

	require.Len(t, summary.DailyData, 1)
	assert.Equal(t, "2024-01-15", summary.DailyData[0].Date)
	assert.Equal(t, total, summary.DailyData[0].Views)
	assert.Equal(t, 1, summary.DailyData[0].Visitors)
}

func TestDailyBucketsSortedAscending(t *testing.T) {
	later := time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC)
	summary := reduce([]types.AnalyticsEvent{
		pageView("e2", "s2", later),
		pageView("e1", "s1", day(9, 0)),
	})

	require.Len(t, summary.DailyData, 2)
	assert.Equal(t, "2024-01-15", summary.DailyData[0].Date)
	assert.Equal(t, "2024-01-17", summary.DailyData[1].Date)
}

func TestTopLinksOrdering(t *testing.T) {
	var events []types.AnalyticsEvent
	clicks := []struct {
		link string
		n    int
	}{{"A", 5}, {"B", 9}, {"C", 2}}
	i := 0
	for _, c := range clicks {
		for j := 0; j < c.n; j++ {
			events = append(events, linkClick(fmt.Sprintf("c%02d", i), c.link, "s1", day(10, i%60)))
			i++
		}
	}
	summary := reduce(events)

	require.Len(t, summary.TopLinks, 3)
	assert.Equal(t, "B", summary.TopLinks[0].LinkID)
	assert.Equal(t, "A", summary.TopLinks[1].LinkID)
	assert.Equal(t, "C", summary.TopLinks[2].LinkID)
}

func TestTopLinksStableTies(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		linkClick("c1", "first-seen", "s1", day(10, 0)),
		linkClick("c2", "second-seen", "s1", day(10, 1)),
	})

	require.Len(t, summary.TopLinks, 2)
	assert.Equal(t, "first-seen", summary.TopLinks[0].LinkID)
	assert.Equal(t, "second-seen", summary.TopLinks[1].LinkID)
}

func TestBreakdownPercentagesSumToHundred(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		pageView("e1", "s1", day(9, 0)),
		pageView("e2", "s2", day(9, 1)),
		linkClick("e3", "link-a", "s1", day(9, 2)),
	})

	require.NotEmpty(t, summary.TrafficSources)
	var sum float64
	for _, b := range summary.TrafficSources {
		sum += b.Percentage
	}
	assert.InEpsilon(t, 100.0, sum, 1e-9)
}

func TestCTRGuardsZeroViews(t *testing.T) {
	summary := reduce([]types.AnalyticsEvent{
		linkClick("c1", "link-a", "s1", day(10, 0)),
	})

	require.Len(t, summary.TopLinks, 1)
	assert.Equal(t, 1, summary.TopLinks[0].Clicks)
	assert.Zero(t, summary.TopLinks[0].CTR)
}

func TestAverageSessionDuration(t *testing.T) {
	short := pageView("e1", "s1", day(9, 0))
	short.Metadata.Session.Duration = 40 * time.Second
	long := pageView("e2", "s2", day(9, 1))
	long.Metadata.Session.Duration = 2 * time.Minute

	summary := reduce([]types.AnalyticsEvent{short, long})
	assert.Equal(t, 80*time.Second, summary.AverageSessionDuration)
}
