package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwipesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_relay_swipes_total",
		Help: "Likes recorded, duplicates excluded.",
	})

	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_relay_matches_total",
		Help: "Likes that completed a mutual match.",
	})

	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_relay_sessions_started_total",
		Help: "Chat sessions paired, by path.",
	}, []string{"path"})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_relay_sessions_ended_total",
		Help: "Chat sessions torn down, by reason.",
	}, []string{"reason"})

	ChatRequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_relay_chat_requests_total",
		Help: "Pending chat requests created.",
	})

	RelayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_relay_relay_messages_total",
		Help: "Relayed messages, by content kind and result.",
	}, []string{"kind", "result"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_relay_notifications_dropped_total",
		Help: "Best-effort notifications the transport failed to deliver.",
	})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_relay_redis_errors_total",
		Help: "Redis command failures, cache misses excluded.",
	}, []string{"command"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_relay_ws_connections",
		Help: "Open WebSocket connections.",
	})
)

// Session path and end-reason label values.
const (
	PathDirect          = "direct"
	PathImplicitConsent = "implicit_consent"
	PathAccepted        = "accepted"

	EndStop        = "stop"
	EndUnreachable = "unreachable"
	EndBan         = "ban"
)
