package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultReminderLead is how long before the due time a reminder fires.
const DefaultReminderLead = 15 * time.Minute

// ReminderRequest is the body of both /api/schedule-reminder and /api/send-reminder.
type ReminderRequest struct {
	Email    string `json:"email"`
	TaskText string `json:"taskText"`
	DueDate  string `json:"dueDate"`
	UserName string `json:"userName"`
}

// ScheduleResponse is returned by /api/schedule-reminder.
type ScheduleResponse struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Immediate    bool       `json:"immediate,omitempty"`
}

// SendResponse is returned by /api/send-reminder.
type SendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx answer from the notification service.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ReminderState string

const (
	ReminderNone         ReminderState = "none"
	ReminderRequested    ReminderState = "requested"
	ReminderAcknowledged ReminderState = "acknowledged"
	ReminderFailed       ReminderState = "failed"
)

// ScheduleRecord is the local acknowledgment that the notification service
// accepted a reminder request. It is independent of Task.ReminderSent.
type ScheduleRecord struct {
	TaskID       string        `json:"taskId"`
	State        ReminderState `json:"state"`
	ScheduledFor *time.Time    `json:"scheduledFor,omitempty"`
	RequestedAt  time.Time     `json:"requestedAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Error        string        `json:"error,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the zone-less layouts produced by
// HTML datetime-local inputs. Zone-less values are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for i, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
