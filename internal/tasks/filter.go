package tasks

import (
	"strings"

	"github.com/ytakahashi/taskflow/internal/models"
)

type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterPending   FilterMode = "pending"
	FilterCompleted FilterMode = "completed"
)

// ParseFilterMode maps input onto a mode; unknown values behave as all.
func ParseFilterMode(s string) FilterMode {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case FilterPending:
		return FilterPending
	case FilterCompleted:
		return FilterCompleted
	default:
		return FilterAll
	}
}

type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

type FilterResult struct {
	Visible []models.Task `json:"visible"`
	Counts  Counts        `json:"counts"`
}

// Filter returns the tasks visible under mode in collection order.
// Counts always describe the whole collection.
func Filter(list []models.Task, mode FilterMode) FilterResult {
	res := FilterResult{
		Visible: make([]models.Task, 0, len(list)),
		Counts:  Counts{Total: len(list)},
	}
	mode = ParseFilterMode(string(mode))

	for _, t := range list {
		if t.Completed {
			res.Counts.Completed++
		} else {
			res.Counts.Pending++
		}

		switch {
		case mode == FilterPending && t.Completed:
		case mode == FilterCompleted && !t.Completed:
		default:
			res.Visible = append(res.Visible, t)
		}
	}
	return res
}
