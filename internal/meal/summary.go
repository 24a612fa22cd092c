package meal

import (
	"math"
	"sort"
	"time"
)

// DailyCalorieTarget is the fixed daily calorie goal shown on the dashboard.
const DailyCalorieTarget = 2000

// DailySummary is the nutrition total of one calendar day.
type DailySummary struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Target   int     `json:"target"`
}

// DayCalories is one bar of the weekly chart.
type DayCalories struct {
	Day      string  `json:"day"`
	Calories float64 `json:"calories"`
}

// SummarizeToday sums the entries logged on today's calendar date. Dates are
// compared in today's location, so pass a time in the viewer's zone.
func SummarizeToday(entries []Entry, today time.Time) DailySummary {
	summary := DailySummary{Target: DailyCalorieTarget}
	for _, e := range Today(entries, today) {
		summary.Calories += e.Calories
		summary.Protein += e.Protein
		summary.Carbs += e.Carbs
		summary.Fat += e.Fat
	}
	summary.Protein = math.Round(summary.Protein)
	summary.Carbs = math.Round(summary.Carbs)
	summary.Fat = math.Round(summary.Fat)
	return summary
}

// Today filters entries down to those on today's calendar date.
func Today(entries []Entry, today time.Time) []Entry {
	loc := today.Location()
	y, m, d := today.Date()
	var out []Entry
	for _, e := range entries {
		ey, em, ed := e.Timestamp.In(loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// Recent returns up to n entries, newest first.
func Recent(entries []Entry, n int) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ReshapeWeekly maps the backend's per-day totals onto chart points. The
// backend already aggregates, so values are passed through unchanged.
func ReshapeWeekly(points []WeeklyPoint) []DayCalories {
	out := make([]DayCalories, 0, len(points))
	for _, p := range points {
		out = append(out, DayCalories{Day: p.Day, Calories: p.Calories})
	}
	return out
}
