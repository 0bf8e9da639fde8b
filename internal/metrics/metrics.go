// Package metrics счётчики prometheus для операций синхронизации.
// Экспортируются через promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns количество запусков синхронизации по результату (ok/error).
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rostersync_sync_runs_total",
		Help: "Number of roster sync runs by result.",
	}, []string{"result"})

	// UsersPosted количество пользователей, отправленных на чат-платформу.
	UsersPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rostersync_users_posted_total",
		Help: "Number of users posted to the chat sync endpoint.",
	})

	// WebhookEvents количество webhook-событий по исходу (processed/ignored/rejected/error).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rostersync_webhook_events_total",
		Help: "Number of subscription webhook deliveries by outcome.",
	}, []string{"outcome"})
)
