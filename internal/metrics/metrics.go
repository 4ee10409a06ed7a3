// Package metrics 定义日报流水线的 Prometheus 指标，注册在默认 registry 上，由 /metrics 暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "daily_digest"

var (
	// FeedFetches 按源与结果（ok / error / parse_error）计数
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetches_total",
		Help:      "Feed downloads by source and outcome",
	}, []string{"source", "status"})

	ItemsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_collected_total",
		Help:      "Unique news items after cross-feed deduplication",
	})

	ClassificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_failures_total",
		Help:      "Classification calls that degraded to an empty bucket",
	}, []string{"reason"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Chat completion requests by provider and outcome",
	}, []string{"provider", "status"})

	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publishes_total",
		Help:      "Publish attempts by outcome",
	}, []string{"status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full digest run",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})
)
