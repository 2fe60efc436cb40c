package jira

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_tracker_remote_calls_total",
		Help: "Remote Jira calls by operation and outcome",
	}, []string{"op", "outcome"})

	remoteCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jira_tracker_remote_call_seconds",
		Help:    "Latency of remote Jira calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	commentsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_tracker_comments_posted_total",
		Help: "Comments posted by the batch dispatcher by outcome",
	}, []string{"outcome"})
)

func observeCall(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	remoteCalls.WithLabelValues(op, outcome).Inc()
	remoteCallLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
