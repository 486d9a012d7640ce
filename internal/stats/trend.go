// Package stats computes reporting windows and period-over-period trends.
package stats

import (
	"math"
	"time"
)

// Day limits for reporting windows.
const (
	DefaultDays = 30
	MaxDays     = 365
)

// Trend directions.
const (
	Up   = "up"
	Down = "down"
	Flat = "flat"
)

// ClampDays maps a requested window length onto 1..MaxDays; 0 or negative means the default.
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

// Window is a current period [Start, End) and the equally long previous
// period [PrevStart, Start).
type Window struct {
	Days      int       `json:"days"`
	PrevStart time.Time `json:"previous_start"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// NewWindow ends at now (UTC) and spans days days.
func NewWindow(now time.Time, days int) Window {
	days = ClampDays(days)
	end := now.UTC()
	span := time.Duration(days) * 24 * time.Hour
	return Window{
		Days:      days,
		PrevStart: end.Add(-2 * span),
		Start:     end.Add(-span),
		End:       end,
	}
}

// Trend compares the current window with the previous one.
type Trend struct {
	Current       int64   `json:"current"`
	Previous      int64   `json:"previous"`
	Change        int64   `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Direction     string  `json:"direction"`
}

// NewTrend builds a trend. With no previous activity any growth counts as 100%.
func NewTrend(current, previous int64) Trend {
	t := Trend{Current: current, Previous: previous, Change: current - previous}
	switch {
	case previous == 0 && current > 0:
		t.PercentChange = 100
	case previous == 0:
		t.PercentChange = 0
	default:
		t.PercentChange = Round1(float64(t.Change) / float64(previous) * 100)
	}
	switch {
	case t.Change > 0:
		t.Direction = Up
	case t.Change < 0:
		t.Direction = Down
	default:
		t.Direction = Flat
	}
	return t
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DailyCount is the number of events on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Daily buckets event times by UTC calendar day, oldest first, covering every
// day the window touches from the day of w.Start through the day of w.End. A
// window that starts mid-day therefore yields w.Days+1 entries. Days without
// events are zero.
func Daily(w Window, times []time.Time) []DailyCount {
	start := w.Start.UTC()
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := w.End.UTC().Add(-time.Nanosecond)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]DailyCount, 0, w.Days+1)
	index := map[string]int{}
	for d := first; !d.After(lastDay); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(out)
		out = append(out, DailyCount{Date: key})
	}
	for _, t := range times {
		t = t.UTC()
		if t.Before(w.Start) || !t.Before(w.End) {
			continue
		}
		if i, ok := index[t.Format("2006-01-02")]; ok {
			out[i].Count++
		}
	}
	return out
}
