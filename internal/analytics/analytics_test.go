package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ytakahashi/taskflow/internal/models"
)

var now = time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func done(createdAt, completedAt time.Time) models.Task {
	return models.Task{Completed: true, CreatedAt: createdAt, CompletedAt: at(completedAt), Priority: models.PriorityLow}
}

func pending(createdAt time.Time) models.Task {
	return models.Task{CreatedAt: createdAt, Priority: models.PriorityLow}
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0, CompletionRate(nil))
	assert.Equal(t, 100, CompletionRate([]models.Task{done(now, now), done(now, now)}))
	assert.Equal(t, 33, CompletionRate([]models.Task{done(now, now), pending(now), pending(now)}))
	assert.Equal(t, 67, CompletionRate([]models.Task{done(now, now), done(now, now), pending(now)}))
	assert.Equal(t, 0, CompletionRate([]models.Task{pending(now)}))
}

func TestAveragePerDay(t *testing.T) {
	tests := []struct {
		name string
		list []models.Task
		want int
	}{
		{name: "empty", list: nil, want: 0},
		{name: "nothing completed", list: []models.Task{pending(now.Add(-72 * time.Hour))}, want: 0},
		{
			name: "created today counts as one day",
			list: []models.Task{done(now.Add(-time.Hour), now), done(now.Add(-time.Hour), now)},
			want: 2,
		},
		{
			name: "oldest task of any state sets the span",
			// span = ceil(4 days) = 4; 6 completions / 4 = 1.5 -> 2
			list: []models.Task{
				pending(now.Add(-4 * day)),
				done(now, now), done(now, now), done(now, now),
				done(now, now), done(now, now), done(now, now),
			},
			want: 2,
		},
		{
			name: "partial days round up",
			// 2.5 days -> span 3; 3 / 3 = 1
			list: []models.Task{done(now.Add(-60*time.Hour), now), done(now, now), done(now, now)},
			want: 1,
		},
		{
			name: "completed without timestamp is ignored",
			list: []models.Task{{Completed: true, CreatedAt: now}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AveragePerDay(tt.list, now))
		})
	}
}

func TestCurrentStreak(t *testing.T) {
	today := now
	yesterday := now.Add(-day)
	threeDaysAgo := now.Add(-3 * day)

	tests := []struct {
		name string
		list []models.Task
		want int
	}{
		{name: "empty", list: nil, want: 0},
		{name: "today and yesterday with a gap before", list: []models.Task{done(threeDaysAgo, today), done(threeDaysAgo, yesterday), done(threeDaysAgo, threeDaysAgo)}, want: 2},
		{name: "only yesterday", list: []models.Task{done(yesterday, yesterday)}, want: 0},
		{name: "several completions on one day count once", list: []models.Task{done(today, today), done(today, today.Add(-time.Hour))}, want: 1},
		{
			name: "early morning completion still counts as today",
			list: []models.Task{done(yesterday, time.Date(2026, 5, 20, 0, 5, 0, 0, time.UTC)), done(yesterday, time.Date(2026, 5, 19, 23, 55, 0, 0, time.UTC))},
			want: 2,
		},
		{name: "pending tasks are ignored", list: []models.Task{pending(today)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.list, now))
		})
	}
}

func TestCurrentStreakUsesNowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2026-05-20 23:30 UTC is already 2026-05-21 in Tokyo.
	completed := time.Date(2026, 5, 20, 23, 30, 0, 0, time.UTC)
	list := []models.Task{done(completed, completed)}

	assert.Equal(t, 1, CurrentStreak(list, time.Date(2026, 5, 21, 10, 0, 0, 0, tokyo)))
	assert.Equal(t, 0, CurrentStreak(list, time.Date(2026, 5, 20, 23, 45, 0, 0, time.UTC).Add(25*time.Hour)))
}

func TestCurrentStreakLongRun(t *testing.T) {
	var list []models.Task
	for i := 0; i < 40; i++ {
		c := now.AddDate(0, 0, -i)
		list = append(list, done(c, c))
	}
	assert.Equal(t, 40, CurrentStreak(list, now))
}

func TestPriorityDistribution(t *testing.T) {
	empty := PriorityDistribution(nil)
	assert.Equal(t, Distribution{}, empty)

	list := []models.Task{
		{Priority: models.PriorityLow},
		{Priority: models.PriorityMedium},
		{Priority: models.PriorityHigh},
		{Priority: models.PriorityHigh},
		{Priority: ""},
		{Priority: models.PriorityMedium},
	}
	d := PriorityDistribution(list)

	assert.Equal(t, 2, d.Low.Count)
	assert.Equal(t, 2, d.Medium.Count)
	assert.Equal(t, 2, d.High.Count)
	assert.InDelta(t, 33.33, d.Low.Percent, 0.01)
	assert.InDelta(t, 100, d.Low.Percent+d.Medium.Percent+d.High.Percent, 0.0001)
}

func TestSummarize(t *testing.T) {
	list := []models.Task{
		done(now.Add(-day), now),
		{Priority: models.PriorityHigh, CreatedAt: now.Add(-day)},
	}
	r := Summarize(list, now)

	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 1, r.Completed)
	assert.Equal(t, 1, r.Pending)
	assert.Equal(t, 50, r.CompletionRate)
	assert.Equal(t, 1, r.AveragePerDay)
	assert.Equal(t, 1, r.Streak)
	assert.Equal(t, 1, r.Priorities.High.Count)
}
