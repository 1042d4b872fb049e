// Package metrics provides Prometheus metrics collection for the chatroom application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedUsers tracks the current number of live sessions in the room
	ConnectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatroom_connected_users",
		Help: "Current number of live sessions in the room",
	})

	// OpenLongPolls tracks the current number of parked long-poll requests
	OpenLongPolls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatroom_open_long_polls",
		Help: "Current number of long-poll requests held open",
	})

	// SessionsCreated tracks the total number of sessions created
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_sessions_created_total",
		Help: "Total number of sessions created",
	})

	// SessionsEnded tracks the total number of sessions destroyed
	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_sessions_ended_total",
		Help: "Total number of sessions destroyed",
	})

	// MessagesPosted tracks the total number of chat messages accepted
	MessagesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_messages_posted_total",
		Help: "Total number of chat messages accepted into history",
	})

	// EventsDelivered tracks the total number of events delivered to parked polls
	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_events_delivered_total",
		Help: "Total number of events delivered to parked long-polls",
	})

	// EventsDropped tracks events skipped because the target session was inactive
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_events_dropped_total",
		Help: "Total number of events dropped for sessions with no open long-poll",
	})

	// RequestErrors tracks the total number of request processing errors
	RequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_request_errors_total",
		Help: "Total number of request processing errors",
	})

	// HTTPRequestDuration tracks HTTP request duration by endpoint and method
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatroom_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method"})
)
