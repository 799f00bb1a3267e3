package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/taskflow/internal/models"
)

func TestClientScheduleReminder(t *testing.T) {
	fire := time.Date(2026, 3, 10, 9, 45, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/schedule-reminder", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.ReminderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice@example.com", req.Email)
		assert.Equal(t, "Buy milk", req.TaskText)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.ScheduleResponse{Success: true, Message: "Reminder scheduled", ScheduledFor: &fire})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	resp, err := c.ScheduleReminder(context.Background(), models.ReminderRequest{
		Email:    "alice@example.com",
		TaskText: "Buy milk",
		DueDate:  "2026-03-10T10:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ScheduledFor)
	assert.True(t, resp.ScheduledFor.Equal(fire))
}

func TestClientSendReminder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send-reminder", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.SendResponse{Success: true, Message: "Reminder sent"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, srv.Client()).SendReminder(context.Background(), models.ReminderRequest{Email: "a@b.c", TaskText: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Reminder sent", resp.Message)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Email and due date are required"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ScheduleReminder(context.Background(), models.ReminderRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Email and due date are required")
}

func TestClientHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","message":"Server is running"}`))
	}))
	c := NewClient(srv.URL, nil)

	assert.NoError(t, c.Health(context.Background()))
	healthy.Store(false)
	assert.Error(t, c.Health(context.Background()))

	srv.Close()
	assert.Error(t, c.Health(context.Background()))
}
