package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
)

const sendTimeout = 30 * time.Second

type DispatcherConfig struct {
	AppURL   string
	Lead     time.Duration
	Location *time.Location
}

// Dispatcher sends reminders now or arms a timer for later.
// Timers live in memory only; a restart forgets them.
type Dispatcher struct {
	cfg    DispatcherConfig
	mailer Mailer
	pusher Pusher
	links  *Links
	now    func() time.Time

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithLine enables LINE delivery to linked accounts.
func WithLine(pusher Pusher, links *Links) DispatcherOption {
	return func(d *Dispatcher) {
		d.pusher = pusher
		d.links = links
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(cfg DispatcherConfig, mailer Mailer, opts ...DispatcherOption) *Dispatcher {
	if cfg.Lead <= 0 {
		cfg.Lead = models.DefaultReminderLead
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	d := &Dispatcher{
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
		timers: make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule arms a reminder for lead before the due date, or sends it right
// away in the background when that moment has passed.
func (d *Dispatcher) Schedule(req models.ReminderRequest) (*models.ScheduleResponse, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.DueDate) == "" {
		return nil, models.ValidationError("Email and due date are required")
	}
	due, err := models.ParseTimestamp(req.DueDate, d.cfg.Location)
	if err != nil {
		return nil, models.ValidationError("Invalid due date")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, models.NotificationError("Server is shutting down", nil)
	}

	now := d.now()
	at, immediate := FireTime(due, now, d.cfg.Lead)
	log := logger.With("email", req.Email, "due", due)

	if immediate {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(req)
		}()
		RemindersScheduled.WithLabelValues("immediate").Inc()
		log.Info("reminder due soon, sending now")
		return &models.ScheduleResponse{
			Success:      true,
			Message:      "Reminder sent immediately (due soon)",
			ScheduledFor: &at,
			Immediate:    true,
		}, nil
	}

	var timer *time.Timer
	timer = time.AfterFunc(at.Sub(now), func() {
		d.mu.Lock()
		if _, ok := d.timers[timer]; !ok {
			d.mu.Unlock()
			return
		}
		delete(d.timers, timer)
		d.wg.Add(1)
		d.mu.Unlock()
		RemindersPending.Dec()

		defer d.wg.Done()
		d.deliver(req)
	})
	d.timers[timer] = struct{}{}
	RemindersPending.Inc()
	RemindersScheduled.WithLabelValues("timer").Inc()
	log.Info("reminder scheduled", "at", at)

	return &models.ScheduleResponse{
		Success:      true,
		Message:      "Reminder scheduled successfully",
		ScheduledFor: &at,
	}, nil
}

// Send delivers a reminder now. Email failure is returned; LINE failure is only logged.
func (d *Dispatcher) Send(ctx context.Context, req models.ReminderRequest) error {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.TaskText) == "" {
		return models.ValidationError("Email and task text are required")
	}
	return d.send(ctx, req)
}

// send delivers without the task text check; scheduled reminders only
// require an email and a due date.
func (d *Dispatcher) send(ctx context.Context, req models.ReminderRequest) error {
	var due *time.Time
	if req.DueDate != "" {
		if t, err := models.ParseTimestamp(req.DueDate, d.cfg.Location); err == nil {
			due = &t
		}
	}

	email, err := RenderReminder(req.Email, req.UserName, req.TaskText, due, d.cfg.AppURL, d.cfg.Location)
	if err != nil {
		return models.NotificationError("Failed to send reminder email", fmt.Errorf("failed to render email: %w", err))
	}

	err = d.mailer.Send(ctx, email)
	observeDelivery("email", err)
	if err != nil {
		return models.NotificationError("Failed to send reminder email", err)
	}
	logger.Info("reminder email sent", "to", req.Email)

	d.pushLine(ctx, req, email.Subject, due)
	return nil
}

func (d *Dispatcher) pushLine(ctx context.Context, req models.ReminderRequest, subject string, due *time.Time) {
	if d.pusher == nil || d.links == nil {
		return
	}
	userID, ok, err := d.links.Lookup(ctx, req.Email)
	if err != nil {
		logger.Warn("could not look up LINE link", "email", req.Email, "error", err)
		return
	}
	if !ok {
		return
	}

	text := "⏰ " + subject
	if due != nil {
		text += "\nDue: " + formatDue(due, d.cfg.Location)
	}
	err = d.pusher.Push(ctx, userID, text)
	observeDelivery("line", err)
	if err != nil {
		logger.Warn("LINE reminder failed", "email", req.Email, "error", err)
	}
}

func (d *Dispatcher) deliver(req models.ReminderRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := d.send(ctx, req); err != nil {
		logger.Error("error sending scheduled reminder", "email", req.Email, "error", err)
	}
}

// Pending reports how many timers are armed.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Shutdown stops armed timers and waits for sends already in progress.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for t := range d.timers {
		if t.Stop() {
			RemindersPending.Dec()
		}
		delete(d.timers, t)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
