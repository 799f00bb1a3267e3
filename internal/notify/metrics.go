package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_scheduled_total",
			Help: "Reminder requests accepted, by timer or immediate mode",
		},
		[]string{"mode"},
	)
	ReminderDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_deliveries_total",
			Help: "Reminder delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)
	RemindersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_pending",
			Help: "Reminders waiting for their fire time",
		},
	)
)

func init() {
	prometheus.MustRegister(RemindersScheduled)
	prometheus.MustRegister(ReminderDeliveries)
	prometheus.MustRegister(RemindersPending)
}

func observeDelivery(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ReminderDeliveries.WithLabelValues(channel, result).Inc()
}
