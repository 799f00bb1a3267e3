package main

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ytakahashi/taskflow/internal/accounts"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

type fakeService struct {
	mu       sync.Mutex
	requests []models.ReminderRequest
	down     bool
}

func (f *fakeService) ScheduleReminder(_ context.Context, req models.ReminderRequest) (*models.ScheduleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	at := time.Now()
	return &models.ScheduleResponse{Success: true, ScheduledFor: &at, Immediate: true}, nil
}

func (f *fakeService) Health(context.Context) error {
	if f.down {
		return errors.New("connection refused")
	}
	return nil
}

func newTestApp(t *testing.T) (*app, *bytes.Buffer, *fakeService) {
	t.Helper()
	kv := services.NewMemoryKV()
	svc := &fakeService{}
	dir := accounts.NewDirectory(kv, accounts.NewPasswordHasher(bcrypt.MinCost))
	out := &bytes.Buffer{}
	return &app{
		kv:       kv,
		accounts: accounts.NewManager(kv, dir, svc),
		notify:   svc,
		out:      out,
		loc:      time.UTC,
	}, out, svc
}

func (a *app) mustRun(t *testing.T, out *bytes.Buffer, args ...string) string {
	t.Helper()
	out.Reset()
	require.NoError(t, a.run(context.Background(), args[0], args[1:]))
	return out.String()
}

var idPattern = regexp.MustCompile(`\] (\S+) `)

func firstID(t *testing.T, s string) string {
	t.Helper()
	m := idPattern.FindStringSubmatch(s)
	require.NotNil(t, m, "no task id in %q", s)
	return m[1]
}

func TestCLIWorkflow(t *testing.T) {
	a, out, svc := newTestApp(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.run(ctx, "list", nil), models.ErrAuthentication)

	got := a.mustRun(t, out, "signup", "-name", "Alice", "-email", "alice@example.com", "-password", "secret1")
	assert.Contains(t, got, "Welcome, Alice")

	assert.Contains(t, a.mustRun(t, out, "whoami"), "Alice <alice@example.com>")

	due := time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339)
	got = a.mustRun(t, out, "add", "-priority", "medium", "-end", due, "Buy", "milk")
	assert.Contains(t, got, "medium")
	assert.Contains(t, got, "Buy milk")
	milk := firstID(t, got)

	require.Len(t, svc.requests, 1, "the session drains its reminder queue before the command returns")
	assert.Equal(t, "Buy milk", svc.requests[0].TaskText)

	a.mustRun(t, out, "add", "Walk dog")
	a.mustRun(t, out, "add", "-text", "Read book", "-priority", "high")

	assert.ErrorIs(t, a.run(ctx, "add", []string{"   "}), models.ErrValidation)
	assert.ErrorIs(t, a.run(ctx, "add", []string{"-priority", "urgent", "Panic"}), models.ErrValidation)
	assert.ErrorIs(t, a.run(ctx, "edit", []string{milk, "-priority", "urgent"}), models.ErrValidation)
	assert.NotContains(t, a.mustRun(t, out, "list"), "Panic")

	got = a.mustRun(t, out, "toggle", milk)
	assert.Contains(t, got, "[x]")

	got = a.mustRun(t, out, "list", "-filter", "completed")
	assert.Contains(t, got, "Buy milk")
	assert.NotContains(t, got, "Walk dog")
	assert.Contains(t, got, "3 total, 2 pending, 1 completed")

	got = a.mustRun(t, out, "edit", milk, "-text", "Buy oat milk")
	assert.Contains(t, got, "Buy oat milk")
	assert.Contains(t, got, "[x]", "editing keeps completion")

	got = a.mustRun(t, out, "stats")
	assert.Contains(t, got, "Completion rate: 33%")
	assert.Contains(t, got, "Current streak:  1 day(s)")

	got = a.mustRun(t, out, "reminders", "status")
	assert.Contains(t, got, "Reminders: on")
	assert.Contains(t, got, string(models.ReminderAcknowledged))

	got = a.mustRun(t, out, "reminder-sent", milk)
	assert.Contains(t, got, "marked as sent")

	assert.Contains(t, a.mustRun(t, out, "clear-completed"), "Cleared 1")
	assert.ErrorIs(t, a.run(ctx, "clear-completed", nil), models.ErrValidation)

	assert.ErrorIs(t, a.run(ctx, "clear-all", nil), models.ErrValidation)
	a.mustRun(t, out, "clear-all", "-yes")
	assert.Contains(t, a.mustRun(t, out, "list"), "0 total")

	assert.ErrorIs(t, a.run(ctx, "delete", []string{"missing"}), models.ErrNotFound)

	a.mustRun(t, out, "logout")
	assert.ErrorIs(t, a.run(ctx, "whoami", nil), models.ErrAuthentication)

	got = a.mustRun(t, out, "login", "-email", "ALICE@example.com", "-password", "secret1")
	assert.Contains(t, got, "0 tasks")
	assert.ErrorIs(t, a.run(ctx, "login", []string{"-email", "alice@example.com", "-password", "nope123"}), models.ErrAuthentication)
}

func TestCLIRemindersOff(t *testing.T) {
	a, out, svc := newTestApp(t)
	a.mustRun(t, out, "signup", "-name", "Bob", "-email", "bob@example.com", "-password", "secret1")
	a.mustRun(t, out, "reminders", "off")
	assert.Contains(t, a.mustRun(t, out, "reminders"), "Reminders: off")

	a.mustRun(t, out, "add", "-end", "2030-01-01T09:00", "Renew passport")
	assert.Empty(t, svc.requests)
}

func TestCLITheme(t *testing.T) {
	a, out, _ := newTestApp(t)
	assert.Equal(t, "dark\n", a.mustRun(t, out, "theme"))
	a.mustRun(t, out, "theme", "light")
	assert.Equal(t, "light\n", a.mustRun(t, out, "theme"))
	assert.ErrorIs(t, a.run(context.Background(), "theme", []string{"pink"}), models.ErrValidation)
}

func TestCLIPing(t *testing.T) {
	a, out, svc := newTestApp(t)
	assert.Contains(t, a.mustRun(t, out, "ping"), "running")
	svc.down = true
	assert.ErrorIs(t, a.run(context.Background(), "ping", nil), models.ErrNotification)
}

func TestCLIUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Error(t, a.run(context.Background(), "frobnicate", nil))
}
