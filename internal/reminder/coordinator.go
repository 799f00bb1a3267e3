// Package reminder decides when a task's due time should be handed to the
// notification service and keeps the local record of what the service accepted.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

// RecordsKey holds every schedule record as a map of task id to record.
const RecordsKey = "taskflow_reminders"

// Notifier is the part of the notification service the coordinator needs.
type Notifier interface {
	ScheduleReminder(ctx context.Context, req models.ReminderRequest) (*models.ScheduleResponse, error)
}

// SentMarker flips Task.ReminderSent once delivery has been confirmed.
type SentMarker interface {
	MarkReminderSent(ctx context.Context, id string) (models.Task, error)
}

type Config struct {
	QueueSize      int
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:      64,
		RequestTimeout: 10 * time.Second,
	}
}

type request struct {
	account models.Account
	task    models.Task
}

// Coordinator queues reminder requests and sends them from a single
// background goroutine so task mutations never wait on the network.
type Coordinator struct {
	config   Config
	kv       services.KV
	notifier Notifier
	prefs    *Preferences
	marker   SentMarker
	now      func() time.Time

	queue  chan request
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	closed  bool

	recMu sync.Mutex
}

func NewCoordinator(cfg Config, kv services.KV, notifier Notifier, prefs *Preferences) *Coordinator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Coordinator{
		config:   cfg,
		kv:       kv,
		notifier: notifier,
		prefs:    prefs,
		now:      time.Now,
		queue:    make(chan request, cfg.QueueSize),
	}
}

// SetClock replaces the time source used for record timestamps.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// BindTasks wires the task store that MarkSent writes through.
func (c *Coordinator) BindTasks(m SentMarker) {
	c.marker = m
}

// Start launches the worker.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("coordinator is stopped")
	}
	if c.running {
		return fmt.Errorf("coordinator is already running")
	}
	c.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for req := range c.queue {
			// once Stop gives up, whatever is still queued is dropped
			if workerCtx.Err() != nil {
				logger.Warn("reminder request dropped at shutdown", "task", req.task.ID)
				continue
			}
			c.process(workerCtx, req)
		}
	}()
	return nil
}

// Stop refuses new work and waits until the queue is drained. When ctx
// expires first, the in-flight request is cancelled, the rest of the queue
// is dropped, and Stop returns once the worker has exited.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("timeout waiting for reminder queue to drain")
		if c.cancel != nil {
			c.cancel()
		}
		<-done
		return ctx.Err()
	}
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Schedule queues a reminder request for task. It never blocks; a full or
// stopped queue is logged and the task is left without a reminder.
func (c *Coordinator) Schedule(account models.Account, task models.Task) {
	if task.EndDate == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		logger.Warn("reminder coordinator stopped, dropping request", "task", task.ID)
		return
	}

	select {
	case c.queue <- request{account: account, task: task}:
	default:
		logger.Warn("reminder queue full, dropping request", "task", task.ID)
	}
}

func (c *Coordinator) process(ctx context.Context, r request) {
	log := logger.With("task", r.task.ID, "email", r.account.Email)

	enabled, err := c.prefs.Enabled(ctx, r.account.Email)
	if err != nil {
		log.Warn("could not read reminder preference, assuming enabled", "error", err)
	}
	if !enabled {
		log.Debug("reminders disabled, skipping")
		return
	}

	rec, err := c.Record(ctx, r.task.ID)
	if err != nil {
		log.Warn("could not read schedule record", "error", err)
	}
	if rec.State == models.ReminderRequested || rec.State == models.ReminderAcknowledged {
		log.Debug("reminder already requested")
		return
	}

	now := c.now()
	rec = models.ScheduleRecord{
		TaskID:      r.task.ID,
		State:       models.ReminderRequested,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := c.saveRecord(ctx, rec); err != nil {
		log.Warn("could not save schedule record", "error", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.notifier.ScheduleReminder(reqCtx, models.ReminderRequest{
		Email:    r.account.Email,
		TaskText: r.task.Text,
		DueDate:  r.task.EndDate.Format(time.RFC3339),
		UserName: r.account.Name,
	})
	if err == nil && (resp == nil || !resp.Success) {
		err = errors.New("request was not accepted")
	}

	rec.UpdatedAt = c.now()
	if err != nil {
		nerr := models.NotificationError("Could not schedule reminder.", err)
		log.Warn("reminder request failed", "error", nerr)
		rec.State = models.ReminderFailed
		rec.Error = err.Error()
	} else {
		rec.State = models.ReminderAcknowledged
		rec.ScheduledFor = resp.ScheduledFor
		log.Info("reminder scheduled", "immediate", resp.Immediate)
	}

	// The worker context may already be cancelled; the outcome is still recorded.
	if err := c.saveRecord(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("could not save schedule record", "error", err)
	}
}

// MarkSent records confirmed delivery of the due-time reminder on the task itself.
func (c *Coordinator) MarkSent(ctx context.Context, taskID string) (models.Task, error) {
	if c.marker == nil {
		return models.Task{}, errors.New("no task store bound")
	}
	return c.marker.MarkReminderSent(ctx, taskID)
}

// Record returns the schedule record for taskID, with state none when absent.
func (c *Coordinator) Record(ctx context.Context, taskID string) (models.ScheduleRecord, error) {
	c.recMu.Lock()
	defer c.recMu.Unlock()

	recs, err := c.loadRecords(ctx)
	if err != nil {
		return models.ScheduleRecord{TaskID: taskID, State: models.ReminderNone}, err
	}
	rec, ok := recs[taskID]
	if !ok {
		return models.ScheduleRecord{TaskID: taskID, State: models.ReminderNone}, nil
	}
	return rec, nil
}

func (c *Coordinator) saveRecord(ctx context.Context, rec models.ScheduleRecord) error {
	c.recMu.Lock()
	defer c.recMu.Unlock()

	recs, err := c.loadRecords(ctx)
	if err != nil {
		return err
	}
	recs[rec.TaskID] = rec

	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, RecordsKey, string(data)); err != nil {
		return models.PersistenceError("Could not save reminder record.", err)
	}
	return nil
}

func (c *Coordinator) loadRecords(ctx context.Context) (map[string]models.ScheduleRecord, error) {
	recs := map[string]models.ScheduleRecord{}
	raw, err := c.kv.Get(ctx, RecordsKey)
	if errors.Is(err, services.ErrKeyNotFound) {
		return recs, nil
	}
	if err != nil {
		return nil, models.PersistenceError("Could not load reminder records.", err)
	}
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, models.PersistenceError("Could not load reminder records.", err)
	}
	return recs, nil
}
