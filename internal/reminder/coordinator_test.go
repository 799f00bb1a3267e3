package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
	"github.com/ytakahashi/taskflow/internal/tasks"
)

type fakeNotifier struct {
	mu       sync.Mutex
	requests []models.ReminderRequest
	err      error
	reject   bool
}

func (f *fakeNotifier) ScheduleReminder(_ context.Context, req models.ReminderRequest) (*models.ScheduleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.reject {
		return &models.ScheduleResponse{Success: false, Message: "nope"}, nil
	}
	due, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		return nil, err
	}
	fire := due.Add(-models.DefaultReminderLead)
	return &models.ScheduleResponse{Success: true, Message: "Reminder scheduled", ScheduledFor: &fire}, nil
}

func (f *fakeNotifier) calls() []models.ReminderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ReminderRequest(nil), f.requests...)
}

var (
	alice = models.Account{Name: "Alice", Email: "alice@example.com"}
	t0    = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

// runCoordinator starts c, feeds it and stops it so every queued request
// has been processed before the assertions run.
func runCoordinator(t *testing.T, c *Coordinator, feed func()) {
	t.Helper()
	require.NoError(t, c.Start(context.Background()))
	feed()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func newCoordinator(kv services.KV, n Notifier) *Coordinator {
	c := NewCoordinator(DefaultConfig(), kv, n, NewPreferences(kv))
	c.SetClock(func() time.Time { return t0 })
	return c
}

func TestCoordinatorSchedulesCreatedTask(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := newCoordinator(kv, n)

	store := tasks.NewStore(kv, tasks.WithClock(func() time.Time { return t0 }), tasks.WithScheduler(c))
	c.BindTasks(store)
	_, err := store.LoadForAccount(context.Background(), alice)
	require.NoError(t, err)

	due := t0.Add(10 * time.Minute)
	var created models.Task
	runCoordinator(t, c, func() {
		created, err = store.Create(context.Background(), tasks.TaskInput{Text: "Buy milk", EndDate: &due})
		require.NoError(t, err)
	})

	calls := n.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice@example.com", calls[0].Email)
	assert.Equal(t, "Buy milk", calls[0].TaskText)
	assert.Equal(t, "Alice", calls[0].UserName)
	assert.Equal(t, due.Format(time.RFC3339), calls[0].DueDate)

	rec, err := c.Record(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderAcknowledged, rec.State)
	require.NotNil(t, rec.ScheduledFor)
	assert.True(t, rec.ScheduledFor.Equal(due.Add(-15*time.Minute)))

	// acknowledgment is not delivery
	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.False(t, got.ReminderSent)

	marked, err := c.MarkSent(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, marked.ReminderSent)
}

func TestCoordinatorSkipsTasksWithoutDueTime(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := newCoordinator(kv, n)

	runCoordinator(t, c, func() {
		c.Schedule(alice, models.Task{ID: "t1", Text: "Someday"})
	})
	assert.Empty(t, n.calls())
}

func TestCoordinatorRespectsDisabledPreference(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := newCoordinator(kv, n)
	require.NoError(t, c.prefs.SetEnabled(context.Background(), alice.Email, false))

	due := t0.Add(time.Hour)
	runCoordinator(t, c, func() {
		c.Schedule(alice, models.Task{ID: "t1", Text: "Call mom", EndDate: &due})
	})

	assert.Empty(t, n.calls())
	rec, err := c.Record(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ReminderNone, rec.State)
}

func TestCoordinatorRecordsFailure(t *testing.T) {
	tests := []struct {
		name     string
		notifier *fakeNotifier
	}{
		{name: "transport error", notifier: &fakeNotifier{err: errors.New("connection refused")}},
		{name: "rejected", notifier: &fakeNotifier{reject: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := services.NewMemoryKV()
			c := newCoordinator(kv, tt.notifier)

			due := t0.Add(time.Hour)
			runCoordinator(t, c, func() {
				c.Schedule(alice, models.Task{ID: "t1", Text: "Pay rent", EndDate: &due})
			})

			rec, err := c.Record(context.Background(), "t1")
			require.NoError(t, err)
			assert.Equal(t, models.ReminderFailed, rec.State)
			assert.NotEmpty(t, rec.Error)
			assert.Nil(t, rec.ScheduledFor)
		})
	}
}

func TestCoordinatorRetriesAfterFailureButNotAfterAcknowledgment(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := newCoordinator(kv, n)

	due := t0.Add(time.Hour)
	task := models.Task{ID: "t1", Text: "Pay rent", EndDate: &due}

	require.NoError(t, c.saveRecord(context.Background(), models.ScheduleRecord{TaskID: "t1", State: models.ReminderFailed}))

	runCoordinator(t, c, func() {
		c.Schedule(alice, task)
		c.Schedule(alice, task)
	})

	assert.Len(t, n.calls(), 1)
	rec, err := c.Record(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ReminderAcknowledged, rec.State)
}

func TestCoordinatorDropsAfterStop(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := newCoordinator(kv, n)
	runCoordinator(t, c, func() {})

	due := t0.Add(time.Hour)
	c.Schedule(alice, models.Task{ID: "t1", Text: "Late", EndDate: &due})
	assert.Empty(t, n.calls())
	assert.Error(t, c.Start(context.Background()))
}

func TestCoordinatorDropsWhenQueueFull(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &fakeNotifier{}
	c := NewCoordinator(Config{QueueSize: 1}, kv, n, NewPreferences(kv))

	due := t0.Add(time.Hour)
	// not started, so the single slot fills up
	c.Schedule(alice, models.Task{ID: "t1", Text: "One", EndDate: &due})
	c.Schedule(alice, models.Task{ID: "t2", Text: "Two", EndDate: &due})

	runCoordinator(t, c, func() {})
	calls := n.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "One", calls[0].TaskText)
}

// blockingNotifier holds every request until its context is cancelled.
type blockingNotifier struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (b *blockingNotifier) ScheduleReminder(ctx context.Context, _ models.ReminderRequest) (*models.ScheduleResponse, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCoordinatorStopTimeoutDropsQueuedRequests(t *testing.T) {
	kv := services.NewMemoryKV()
	n := &blockingNotifier{started: make(chan struct{}, 1)}
	c := NewCoordinator(Config{QueueSize: 8, RequestTimeout: time.Minute}, kv, n, NewPreferences(kv))
	c.SetClock(func() time.Time { return t0 })
	require.NoError(t, c.Start(context.Background()))

	due := t0.Add(time.Hour)
	for _, id := range []string{"t1", "t2", "t3"} {
		c.Schedule(alice, models.Task{ID: id, Text: id, EndDate: &due})
	}
	<-n.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Stop(ctx), context.DeadlineExceeded)

	// Stop returned after the worker exited without sending the queued requests
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Equal(t, 1, n.calls)

	for _, id := range []string{"t2", "t3"} {
		rec, err := c.Record(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.ReminderNone, rec.State)
	}
	rec, err := c.Record(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ReminderFailed, rec.State)
}

func TestMarkSentWithoutStore(t *testing.T) {
	c := newCoordinator(services.NewMemoryKV(), &fakeNotifier{})
	_, err := c.MarkSent(context.Background(), "t1")
	assert.Error(t, err)
}
