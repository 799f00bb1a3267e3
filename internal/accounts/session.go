package accounts

import (
	"context"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/reminder"
	"github.com/ytakahashi/taskflow/internal/tasks"
)

// Session is the signed-in state: the account, its loaded task collection
// and the reminder worker serving it. It exists from sign-in to sign-out.
type Session struct {
	Account   models.Account
	Tasks     *tasks.Store
	Reminders *reminder.Coordinator
	Prefs     *reminder.Preferences
}

// Close drains queued reminder requests and discards the task collection.
// The remembered session, if any, is left in place.
func (s *Session) Close(ctx context.Context) error {
	err := s.Reminders.Stop(ctx)
	s.Tasks.Unload()
	return err
}

// RemindersEnabled reports the account's reminder preference.
func (s *Session) RemindersEnabled(ctx context.Context) (bool, error) {
	return s.Prefs.Enabled(ctx, s.Account.Email)
}

func (s *Session) SetRemindersEnabled(ctx context.Context, enabled bool) error {
	return s.Prefs.SetEnabled(ctx, s.Account.Email, enabled)
}
