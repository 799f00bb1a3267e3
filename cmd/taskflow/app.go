package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ytakahashi/taskflow/internal/accounts"
	"github.com/ytakahashi/taskflow/internal/analytics"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
	"github.com/ytakahashi/taskflow/internal/tasks"
)

const drainTimeout = 10 * time.Second

type healthChecker interface {
	Health(ctx context.Context) error
}

// app runs one command against the store. Output is plain text.
type app struct {
	kv       services.KV
	accounts *accounts.Manager
	notify   healthChecker
	out      io.Writer
	loc      *time.Location
	now      func() time.Time
}

func (a *app) clock() time.Time {
	now := time.Now()
	if a.now != nil {
		now = a.now()
	}
	if a.loc != nil {
		now = now.In(a.loc)
	}
	return now
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		return a.runSignup(ctx, args)
	case "login":
		return a.runLogin(ctx, args)
	case "logout":
		return a.runLogout(ctx)
	case "whoami":
		return a.withSession(ctx, func(s *accounts.Session) error {
			fmt.Fprintf(a.out, "%s <%s>\n", s.Account.Name, s.Account.Email)
			return nil
		})
	case "add":
		return a.runAdd(ctx, args)
	case "list":
		return a.runList(ctx, args)
	case "toggle":
		return a.runToggle(ctx, args)
	case "edit":
		return a.runEdit(ctx, args)
	case "delete":
		return a.runDelete(ctx, args)
	case "clear-completed":
		return a.runClearCompleted(ctx)
	case "clear-all":
		return a.runClearAll(ctx, args)
	case "stats":
		return a.runStats(ctx)
	case "reminders":
		return a.runReminders(ctx, args)
	case "reminder-sent":
		return a.runReminderSent(ctx, args)
	case "ping":
		return a.runPing(ctx)
	case "theme":
		return a.runTheme(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// withSession restores the remembered session, runs fn and closes the
// session so queued reminder requests are sent before the process exits.
func (a *app) withSession(ctx context.Context, fn func(s *accounts.Session) error) error {
	s, err := a.accounts.Restore(ctx)
	if err != nil {
		return err
	}
	runErr := fn(s)

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := s.Close(drainCtx); err != nil && runErr == nil {
		return fmt.Errorf("reminder requests still pending: %w", err)
	}
	return runErr
}

func (a *app) closeSession(ctx context.Context, s *accounts.Session) error {
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	return s.Close(drainCtx)
}

func (a *app) runSignup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (at least 6 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.accounts.Signup(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Welcome, %s! You are signed in as %s\n", s.Account.Name, s.Account.Email)
	return a.closeSession(ctx, s)
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	remember := fs.Bool("remember", true, "Stay signed in for later commands")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.accounts.Login(ctx, *email, *password, *remember)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Signed in as %s (%d tasks)\n", s.Account.Email, len(s.Tasks.Tasks()))
	return a.closeSession(ctx, s)
}

func (a *app) runLogout(ctx context.Context) error {
	s, err := a.accounts.Restore(ctx)
	if errors.Is(err, models.ErrAuthentication) {
		s = nil
	} else if err != nil {
		return err
	}
	if err := a.accounts.Logout(ctx, s); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Signed out")
	return nil
}

type taskFlags struct {
	fs       *flag.FlagSet
	text     *string
	priority *string
	start    *string
	end      *string
}

func newTaskFlags(name string) *taskFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &taskFlags{
		fs:       fs,
		text:     fs.String("text", "", "Task text"),
		priority: fs.String("priority", "", "low, medium or high"),
		start:    fs.String("start", "", "Start time"),
		end:      fs.String("end", "", "Due time"),
	}
}

func (a *app) parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := models.ParseTimestamp(s, a.loc)
	if err != nil {
		return nil, models.ValidationError(fmt.Sprintf("Invalid time %q.", s))
	}
	return &t, nil
}

func (a *app) runAdd(ctx context.Context, args []string) error {
	tf := newTaskFlags("add")
	if err := tf.fs.Parse(args); err != nil {
		return err
	}
	text := *tf.text
	if text == "" {
		text = strings.Join(tf.fs.Args(), " ")
	}
	start, err := a.parseTime(*tf.start)
	if err != nil {
		return err
	}
	end, err := a.parseTime(*tf.end)
	if err != nil {
		return err
	}
	priority, err := models.PriorityFromInput(*tf.priority)
	if err != nil {
		return err
	}

	return a.withSession(ctx, func(s *accounts.Session) error {
		t, err := s.Tasks.Create(ctx, tasks.TaskInput{
			Text:      text,
			Priority:  priority,
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Added %s\n", a.formatTask(t))
		return nil
	})
}

func (a *app) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	mode := fs.String("filter", "all", "all, pending or completed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withSession(ctx, func(s *accounts.Session) error {
		res := tasks.Filter(s.Tasks.Tasks(), tasks.ParseFilterMode(*mode))
		for _, t := range res.Visible {
			fmt.Fprintln(a.out, a.formatTask(t))
		}
		if len(res.Visible) == 0 {
			fmt.Fprintln(a.out, "No tasks here.")
		}
		fmt.Fprintf(a.out, "\n%d total, %d pending, %d completed\n", res.Counts.Total, res.Counts.Pending, res.Counts.Completed)
		return nil
	})
}

func requireID(command string, args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", models.ValidationError(fmt.Sprintf("Usage: taskflow %s ID", command))
	}
	return args[0], nil
}

func (a *app) runToggle(ctx context.Context, args []string) error {
	id, err := requireID("toggle", args)
	if err != nil {
		return err
	}
	return a.withSession(ctx, func(s *accounts.Session) error {
		t, err := s.Tasks.Toggle(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.formatTask(t))
		return nil
	})
}

func (a *app) runEdit(ctx context.Context, args []string) error {
	id, err := requireID("edit", args)
	if err != nil {
		return err
	}
	tf := newTaskFlags("edit")
	if err := tf.fs.Parse(args[1:]); err != nil {
		return err
	}
	set := map[string]bool{}
	tf.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	priority, err := models.PriorityFromInput(*tf.priority)
	if err != nil {
		return err
	}

	start, err := a.parseTime(*tf.start)
	if err != nil {
		return err
	}
	end, err := a.parseTime(*tf.end)
	if err != nil {
		return err
	}

	return a.withSession(ctx, func(s *accounts.Session) error {
		cur, ok := s.Tasks.Get(id)
		if !ok {
			return models.NotFoundError("Task not found.")
		}
		// unset flags keep the current values
		in := tasks.TaskInput{
			Text:      cur.Text,
			Priority:  cur.Priority,
			StartDate: cur.StartDate,
			EndDate:   cur.EndDate,
		}
		if set["text"] {
			in.Text = *tf.text
		}
		if set["priority"] {
			in.Priority = priority
		}
		if set["start"] {
			in.StartDate = start
		}
		if set["end"] {
			in.EndDate = end
		}

		t, err := s.Tasks.Edit(ctx, id, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Updated %s\n", a.formatTask(t))
		return nil
	})
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	id, err := requireID("delete", args)
	if err != nil {
		return err
	}
	return a.withSession(ctx, func(s *accounts.Session) error {
		if err := s.Tasks.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "✓ Task deleted")
		return nil
	})
}

func (a *app) runClearCompleted(ctx context.Context) error {
	return a.withSession(ctx, func(s *accounts.Session) error {
		n, err := s.Tasks.ClearCompleted(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Cleared %d completed task(s)\n", n)
		return nil
	})
}

func (a *app) runClearAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear-all", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Confirm deleting every task")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return models.ValidationError("This deletes every task. Run again with -yes to confirm.")
	}
	return a.withSession(ctx, func(s *accounts.Session) error {
		if err := s.Tasks.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "✓ All tasks deleted")
		return nil
	})
}

func (a *app) runStats(ctx context.Context) error {
	return a.withSession(ctx, func(s *accounts.Session) error {
		r := analytics.Summarize(s.Tasks.Tasks(), a.clock())
		fmt.Fprintf(a.out, "Total:           %d\n", r.Total)
		fmt.Fprintf(a.out, "Completed:       %d\n", r.Completed)
		fmt.Fprintf(a.out, "Pending:         %d\n", r.Pending)
		fmt.Fprintf(a.out, "Completion rate: %d%%\n", r.CompletionRate)
		fmt.Fprintf(a.out, "Average per day: %d\n", r.AveragePerDay)
		fmt.Fprintf(a.out, "Current streak:  %d day(s)\n", r.Streak)
		fmt.Fprintln(a.out, "Priorities:")
		fmt.Fprintf(a.out, "  high   %3d  %5.1f%%\n", r.Priorities.High.Count, r.Priorities.High.Percent)
		fmt.Fprintf(a.out, "  medium %3d  %5.1f%%\n", r.Priorities.Medium.Count, r.Priorities.Medium.Percent)
		fmt.Fprintf(a.out, "  low    %3d  %5.1f%%\n", r.Priorities.Low.Count, r.Priorities.Low.Percent)
		return nil
	})
}

func (a *app) runReminders(ctx context.Context, args []string) error {
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}
	return a.withSession(ctx, func(s *accounts.Session) error {
		switch sub {
		case "on", "off":
			if err := s.SetRemindersEnabled(ctx, sub == "on"); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Reminders %s\n", sub)
			return nil
		case "status":
		default:
			return models.ValidationError("Usage: taskflow reminders on|off|status")
		}

		enabled, err := s.RemindersEnabled(ctx)
		if err != nil {
			return err
		}
		state := "off"
		if enabled {
			state = "on"
		}
		fmt.Fprintf(a.out, "Reminders: %s\n", state)

		for _, t := range s.Tasks.Tasks() {
			if t.EndDate == nil {
				continue
			}
			rec, err := s.Reminders.Record(ctx, t.ID)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("  %s  %-12s %s", t.ID, rec.State, t.Text)
			if rec.ScheduledFor != nil {
				line += "  (at " + a.formatTime(*rec.ScheduledFor) + ")"
			}
			if t.ReminderSent {
				line += "  sent"
			}
			fmt.Fprintln(a.out, line)
		}
		return nil
	})
}

func (a *app) runReminderSent(ctx context.Context, args []string) error {
	id, err := requireID("reminder-sent", args)
	if err != nil {
		return err
	}
	return a.withSession(ctx, func(s *accounts.Session) error {
		t, err := s.Reminders.MarkSent(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Reminder for %q marked as sent\n", t.Text)
		return nil
	})
}

func (a *app) runPing(ctx context.Context) error {
	if err := a.notify.Health(ctx); err != nil {
		return models.NotificationError("Notification service is not reachable.", err)
	}
	fmt.Fprintln(a.out, "✓ Notification service is running")
	return nil
}

func (a *app) runTheme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		t, err := accounts.LoadTheme(ctx, a.kv)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, t)
		return nil
	}
	t, err := accounts.ParseTheme(args[0])
	if err != nil {
		return err
	}
	if err := accounts.SaveTheme(ctx, a.kv, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Theme set to %s\n", t)
	return nil
}

func (a *app) formatTime(t time.Time) string {
	if a.loc != nil {
		t = t.In(a.loc)
	}
	return t.Format("Jan 2 15:04")
}

func (a *app) formatTask(t models.Task) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	s := fmt.Sprintf("%s %s  %-6s  %s", box, t.ID, t.Priority, t.Text)
	if t.EndDate != nil {
		s += "  (due " + a.formatTime(*t.EndDate) + ")"
	}
	return s
}
