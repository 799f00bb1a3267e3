// Package notify delivers task reminders: it times them against the due date
// and sends them by email and, for linked accounts, by LINE.
package notify

import "time"

// FireTime returns when a reminder for due should go out: lead before due,
// or now (immediate) when that moment is not in the future.
func FireTime(due, now time.Time, lead time.Duration) (time.Time, bool) {
	at := due.Add(-lead)
	if at.After(now) {
		return at, false
	}
	return now, true
}
