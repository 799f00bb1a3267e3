package tasks

import (
	"time"

	"github.com/ytakahashi/taskflow/internal/models"
)

// The functions in this file decide what a mutation does to a collection.
// They never modify their input and never touch persistence.

func indexOf(list []models.Task, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(list []models.Task) []models.Task {
	out := make([]models.Task, len(list))
	copy(out, list)
	return out
}

func prepend(list []models.Task, t models.Task) []models.Task {
	out := make([]models.Task, 0, len(list)+1)
	out = append(out, t)
	return append(out, list...)
}

// toggled flips the completion state of id. completedAt is stamped on
// false->true and cleared on true->false.
func toggled(list []models.Task, id string, now time.Time) ([]models.Task, models.Task, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, models.Task{}, false
	}
	out := clone(list)
	t := out[i]
	t.Completed = !t.Completed
	if t.Completed {
		at := now
		if at.Before(t.CreatedAt) {
			at = t.CreatedAt
		}
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	out[i] = t
	return out, t, true
}

// edited replaces the user-editable fields of id in place.
func edited(list []models.Task, id string, in TaskInput) ([]models.Task, models.Task, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, models.Task{}, false
	}
	out := clone(list)
	t := out[i]
	t.Text = in.text()
	t.Priority = in.priority()
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	out[i] = t
	return out, t, true
}

func without(list []models.Task, id string) ([]models.Task, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, false
	}
	out := make([]models.Task, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...), true
}

// withoutCompleted drops every completed task and reports how many went.
func withoutCompleted(list []models.Task) ([]models.Task, int) {
	out := make([]models.Task, 0, len(list))
	for _, t := range list {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out, len(list) - len(out)
}

func markedSent(list []models.Task, id string) ([]models.Task, models.Task, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, models.Task{}, false
	}
	out := clone(list)
	out[i].ReminderSent = true
	return out, out[i], true
}

// normalize repairs records written by older clients.
func normalize(list []models.Task) []models.Task {
	for i := range list {
		list[i].Priority = models.ParsePriority(string(list[i].Priority))
		if !list[i].Completed {
			list[i].CompletedAt = nil
		}
	}
	return list
}
