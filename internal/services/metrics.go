package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_comments_created_total",
		Help: "Comments persisted, by origin and moderation verdict",
	}, []string{"origin", "blocked"})

	autoReplyScheduleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_auto_reply_schedule_errors_total",
		Help: "Auto-reply submissions the scheduler refused",
	}, []string{"reason"})
)

func verdict(blocked bool) string {
	if blocked {
		return "true"
	}
	return "false"
}
