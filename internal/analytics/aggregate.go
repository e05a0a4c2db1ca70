package analytics

import (
	"sort"
	"time"

	"linkpulse/internal/types"
)

const dateLayout = "2006-01-02"

// reduce derives the summary from an event set. It is a pure function:
// the same input slice always produces bit-identical output. Breakdowns
// sort by count descending with ties broken by first-seen order in the
// input, which is why every grouping keeps an explicit key-order slice
// instead of relying on map iteration.
func reduce(events []types.AnalyticsEvent) types.Summary {
	var summary types.Summary

	var views, clicks, bounces, conversions int
	sessions := newCounter()
	sources := newCounter()
	devices := newCounter()
	countries := newCounter()
	links := newLinkTally()
	days := newDayTally()
	durations := map[string]time.Duration{}

	for _, ev := range events {
		if id := ev.Metadata.Session.SessionID; id != "" {
			sessions.add(id)
			if d := ev.Metadata.Session.Duration; d > durations[id] {
				durations[id] = d
			}
		}

		switch ev.Type {
		case types.EventPageView:
			views++
			summary.HourlyData[ev.Timestamp.Hour()].Views++
			days.addView(ev)
			links.addView(ev.LinkID)
		case types.EventLinkClick:
			clicks++
			summary.HourlyData[ev.Timestamp.Hour()].Clicks++
			days.addClick(ev)
			links.addClick(ev.LinkID)
		case types.EventBounce:
			bounces++
		case types.EventConversion:
			conversions++
		}

		// Session boundary events carry no visitor context.
		if ev.Type == types.EventPageView || ev.Type == types.EventLinkClick {
			sources.add(ev.Metadata.TrafficSource)
			devices.add(ev.Metadata.Device.Type)
			countries.add(ev.Metadata.Location.Country)
		}
	}

	summary.TotalViews = views
	summary.TotalClicks = clicks
	summary.UniqueVisitors = sessions.distinct()
	summary.BounceRate = rate(bounces, views)
	summary.ConversionRate = rate(conversions, views)
	summary.AverageSessionDuration = averageDuration(durations)
	summary.TopLinks = links.sorted()
	summary.TrafficSources = sources.breakdown()
	summary.DeviceTypes = devices.breakdown()
	summary.GeographicData = countries.breakdown()
	summary.DailyData = days.sorted()
	return summary
}

// rate guards the zero-denominator case: no views means a zero rate, not
// NaN.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}

func averageDuration(durations map[string]time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// counter counts occurrences per key while remembering first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) distinct() int {
	return len(c.counts)
}

func (c *counter) breakdown() []types.Breakdown {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	out := make([]types.Breakdown, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, types.Breakdown{
			Key:        key,
			Count:      c.counts[key],
			Percentage: rate(c.counts[key], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

type linkTally struct {
	stats map[string]*types.LinkStat
	order []string
}

func newLinkTally() *linkTally {
	return &linkTally{stats: map[string]*types.LinkStat{}}
}

func (l *linkTally) get(linkID string) *types.LinkStat {
	if linkID == "" {
		return nil
	}
	s, ok := l.stats[linkID]
	if !ok {
		s = &types.LinkStat{LinkID: linkID}
		l.stats[linkID] = s
		l.order = append(l.order, linkID)
	}
	return s
}

func (l *linkTally) addView(linkID string) {
	if s := l.get(linkID); s != nil {
		s.Views++
	}
}

func (l *linkTally) addClick(linkID string) {
	if s := l.get(linkID); s != nil {
		s.Clicks++
	}
}

func (l *linkTally) sorted() []types.LinkStat {
	out := make([]types.LinkStat, 0, len(l.order))
	for _, id := range l.order {
		s := *l.stats[id]
		s.CTR = rate(s.Clicks, s.Views)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Clicks > out[j].Clicks
	})
	return out
}

type dayTally struct {
	buckets  map[string]*types.DailyBucket
	visitors map[string]map[string]struct{}
}

func newDayTally() *dayTally {
	return &dayTally{
		buckets:  map[string]*types.DailyBucket{},
		visitors: map[string]map[string]struct{}{},
	}
}

func (d *dayTally) get(ev types.AnalyticsEvent) *types.DailyBucket {
	date := ev.Timestamp.Format(dateLayout)
	b, ok := d.buckets[date]
	if !ok {
		b = &types.DailyBucket{Date: date}
		d.buckets[date] = b
		d.visitors[date] = map[string]struct{}{}
	}
	if id := ev.Metadata.Session.SessionID; id != "" {
		d.visitors[date][id] = struct{}{}
	}
	return b
}

func (d *dayTally) addView(ev types.AnalyticsEvent) {
	d.get(ev).Views++
}

func (d *dayTally) addClick(ev types.AnalyticsEvent) {
	d.get(ev).Clicks++
}

func (d *dayTally) sorted() []types.DailyBucket {
	out := make([]types.DailyBucket, 0, len(d.buckets))
	for date, b := range d.buckets {
		bucket := *b
		bucket.Visitors = len(d.visitors[date])
		out = append(out, bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}
