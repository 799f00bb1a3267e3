// Package analytics derives the statistics shown on the analytics view from
// a task collection. Every function is pure; callers pass the clock.
package analytics

import (
	"math"
	"time"

	"github.com/ytakahashi/taskflow/internal/models"
)

const day = 24 * time.Hour

type PriorityShare struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percentOfTotal"`
}

type Distribution struct {
	Low    PriorityShare `json:"low"`
	Medium PriorityShare `json:"medium"`
	High   PriorityShare `json:"high"`
}

type Report struct {
	Total          int          `json:"total"`
	Completed      int          `json:"completed"`
	Pending        int          `json:"pending"`
	CompletionRate int          `json:"completionRate"`
	AveragePerDay  int          `json:"averagePerDay"`
	Streak         int          `json:"streak"`
	Priorities     Distribution `json:"priorities"`
}

// Summarize computes every metric over the full collection.
func Summarize(list []models.Task, now time.Time) Report {
	completed := countCompleted(list)
	return Report{
		Total:          len(list),
		Completed:      completed,
		Pending:        len(list) - completed,
		CompletionRate: CompletionRate(list),
		AveragePerDay:  AveragePerDay(list, now),
		Streak:         CurrentStreak(list, now),
		Priorities:     PriorityDistribution(list),
	}
}

// CompletionRate is the rounded percentage of completed tasks, 0 for an empty list.
func CompletionRate(list []models.Task) int {
	if len(list) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(countCompleted(list)) / float64(len(list))))
}

// AveragePerDay divides the completed tasks by the whole days elapsed since
// the oldest task (of any state) was created, with a floor of one day.
func AveragePerDay(list []models.Task, now time.Time) int {
	var done int
	for _, t := range list {
		if t.Completed && t.CompletedAt != nil {
			done++
		}
	}
	if done == 0 {
		return 0
	}

	first := list[0].CreatedAt
	for _, t := range list[1:] {
		if t.CreatedAt.Before(first) {
			first = t.CreatedAt
		}
	}

	span := int(math.Ceil(float64(now.Sub(first)) / float64(day)))
	if span < 1 {
		span = 1
	}
	return int(math.Round(float64(done) / float64(span)))
}

// CurrentStreak counts consecutive calendar days ending today (in now's
// location) with at least one completion. No completion today means 0.
func CurrentStreak(list []models.Task, now time.Time) int {
	loc := now.Location()
	days := make(map[string]struct{})
	for _, t := range list {
		if t.CompletedAt != nil {
			days[dayKey(t.CompletedAt.In(loc))] = struct{}{}
		}
	}

	// Noon avoids DST transitions skipping or repeating a date.
	cursor := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, loc)
	streak := 0
	for {
		if _, ok := days[dayKey(cursor)]; !ok {
			return streak
		}
		streak++
		cursor = time.Date(cursor.Year(), cursor.Month(), cursor.Day()-1, 12, 0, 0, 0, loc)
	}
}

// PriorityDistribution counts tasks per priority with their share of the total.
func PriorityDistribution(list []models.Task) Distribution {
	var low, medium, high int
	for _, t := range list {
		switch models.ParsePriority(string(t.Priority)) {
		case models.PriorityHigh:
			high++
		case models.PriorityMedium:
			medium++
		default:
			low++
		}
	}
	total := len(list)
	return Distribution{
		Low:    share(low, total),
		Medium: share(medium, total),
		High:   share(high, total),
	}
}

func share(n, total int) PriorityShare {
	if total == 0 {
		return PriorityShare{Count: n}
	}
	return PriorityShare{Count: n, Percent: float64(n) / float64(total) * 100}
}

func countCompleted(list []models.Task) int {
	n := 0
	for _, t := range list {
		if t.Completed {
			n++
		}
	}
	return n
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
