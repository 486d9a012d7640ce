package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDays(t *testing.T) {
	assert.Equal(t, DefaultDays, ClampDays(0))
	assert.Equal(t, DefaultDays, ClampDays(-3))
	assert.Equal(t, 7, ClampDays(7))
	assert.Equal(t, MaxDays, ClampDays(MaxDays+1))
}

func TestNewWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	w := NewWindow(now, 3)

	assert.Equal(t, 3, w.Days)
	assert.Equal(t, time.UTC, w.End.Location())
	assert.Equal(t, time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, w.End.Add(-72*time.Hour), w.Start)
	assert.Equal(t, w.End.Add(-144*time.Hour), w.PrevStart)
}

func TestNewTrend(t *testing.T) {
	tests := []struct {
		name      string
		current   int64
		previous  int64
		percent   float64
		direction string
	}{
		{"growth", 15, 10, 50, Up},
		{"decline", 5, 10, -50, Down},
		{"flat", 4, 4, 0, Flat},
		{"from zero", 3, 0, 100, Up},
		{"both zero", 0, 0, 0, Flat},
		{"rounded", 2, 3, -33.3, Down},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrend(tt.current, tt.previous)
			assert.Equal(t, tt.current-tt.previous, tr.Change)
			assert.Equal(t, tt.percent, tr.PercentChange)
			assert.Equal(t, tt.direction, tr.Direction)
		})
	}
}

func TestDaily(t *testing.T) {
	w := NewWindow(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 3)

	days := Daily(w, []time.Time{
		time.Date(2024, 3, 7, 13, 0, 0, 0, time.UTC), // first, partial day
		time.Date(2024, 3, 8, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 11, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC), // after End
		time.Date(2024, 3, 7, 11, 0, 0, 0, time.UTC),  // before Start
	})

	require.Len(t, days, 4)
	assert.Equal(t, DailyCount{Date: "2024-03-07", Count: 1}, days[0])
	assert.Equal(t, DailyCount{Date: "2024-03-08", Count: 1}, days[1])
	assert.Equal(t, DailyCount{Date: "2024-03-09", Count: 0}, days[2])
	assert.Equal(t, DailyCount{Date: "2024-03-10", Count: 2}, days[3])
}

func TestDailyCoversWholeWindow(t *testing.T) {
	w := NewWindow(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 7)
	events := []time.Time{
		w.Start.Add(time.Hour),
		w.Start.Add(50 * time.Hour),
		w.End.Add(-time.Minute),
	}

	days := Daily(w, events)
	require.Len(t, days, 8)
	assert.Equal(t, "2024-03-03", days[0].Date)
	assert.Equal(t, "2024-03-10", days[7].Date)

	var sum int64
	for _, d := range days {
		sum += d.Count
	}
	assert.Equal(t, int64(len(events)), sum)
	assert.Equal(t, int64(1), days[0].Count)
}

func TestDailyMidnightWindow(t *testing.T) {
	w := NewWindow(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 2)

	days := Daily(w, []time.Time{w.Start})
	require.Len(t, days, 2)
	assert.Equal(t, DailyCount{Date: "2024-03-08", Count: 1}, days[0])
	assert.Equal(t, "2024-03-09", days[1].Date)
}
