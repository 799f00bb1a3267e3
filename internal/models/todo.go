package models

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps free-form input onto a Priority. Anything unrecognised is low.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityMedium:
		return PriorityMedium
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// PriorityFromInput parses user input strictly. Empty input is low; anything
// other than low, medium or high is a ValidationError.
func PriorityFromInput(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityLow, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", ValidationError("Priority must be low, medium or high.")
}

// Task represents a todo item owned by a single account.
type Task struct {
	ID           string     `firestore:"id" json:"id"`
	Text         string     `firestore:"text" json:"text"`
	Completed    bool       `firestore:"completed" json:"completed"`
	Priority     Priority   `firestore:"priority" json:"priority"`
	CreatedAt    time.Time  `firestore:"createdAt" json:"createdAt"`
	StartDate    *time.Time `firestore:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate      *time.Time `firestore:"endDate,omitempty" json:"endDate,omitempty"`
	CompletedAt  *time.Time `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
	ReminderSent bool       `firestore:"reminderSent" json:"reminderSent"`
}

// Account is a registered user. Email is the lower-cased unique key.
type Account struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NormalizeEmail returns the canonical form used as the account key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
