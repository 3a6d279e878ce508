package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todolist_auth_events_total",
		Help: "Sign-up, sign-in, sign-out and password change attempts by outcome",
	}, []string{"event", "outcome"})

	sessionResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todolist_session_resolutions_total",
		Help: "Session cookie resolutions by outcome",
	}, []string{"outcome"})

	todoMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todolist_todo_mutations_total",
		Help: "Todo, tag and subtask writes by operation",
	}, []string{"op"})

	blobCleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "todolist_blob_cleanup_failures_total",
		Help: "Attachment blobs that could not be removed while deleting a todo",
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
