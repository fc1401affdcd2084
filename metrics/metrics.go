// Package metrics 定义推荐服务的 Prometheus 指标，通过 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 推荐请求
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksim_recommend_requests_total",
			Help: "Total number of recommend calls",
		},
		[]string{"status"}, // "ok", "invalid_input", "error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracksim_recommend_duration_seconds",
			Help:    "Latency of recommend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pipeline 各阶段
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracksim_stage_duration_seconds",
			Help:    "Latency of pipeline nodes in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 3},
		},
		[]string{"node"},
	)

	StageCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracksim_stage_candidates",
			Help:    "Number of candidates leaving each pipeline node",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		},
		[]string{"node"},
	)

	FilterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksim_filter_rejections_total",
			Help: "Candidates rejected by post-filter rule",
		},
		[]string{"rule"},
	)

	// 富化
	EnrichResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksim_enrich_results_total",
			Help: "Enrichment outcomes",
		},
		[]string{"result"}, // "ok", "failed"
	)

	EnrichCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksim_enrich_cache_total",
			Help: "Enrichment cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// 曲库索引
	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracksim_index_size",
			Help: "Number of tracks in the catalog index",
		},
	)

	IndexDim = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracksim_index_dim",
			Help: "Feature vector dimensionality of the catalog index",
		},
	)

	// 外部依赖熔断状态：0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracksim_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksim_history_writes_total",
			Help: "Recommendation history writes",
		},
		[]string{"result"},
	)
)

// RecordRecommend 记录一次推荐调用。
func RecordRecommend(status string, duration time.Duration) {
	RecommendRequests.WithLabelValues(status).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordStage 记录一个 Pipeline 节点的耗时与输出候选数。
func RecordStage(node string, out int, duration time.Duration) {
	StageDuration.WithLabelValues(node).Observe(duration.Seconds())
	StageCandidates.WithLabelValues(node).Observe(float64(out))
}

// RecordFilterRejection 记录一次过滤拒绝。
func RecordFilterRejection(rule string) {
	FilterRejections.WithLabelValues(rule).Inc()
}

// RecordEnrich 记录一次富化结果。
func RecordEnrich(ok bool) {
	if ok {
		EnrichResults.WithLabelValues("ok").Inc()
		return
	}
	EnrichResults.WithLabelValues("failed").Inc()
}

// RecordEnrichCache 记录一次富化缓存查询。
func RecordEnrichCache(hit bool) {
	if hit {
		EnrichCache.WithLabelValues("hit").Inc()
		return
	}
	EnrichCache.WithLabelValues("miss").Inc()
}

// SetIndexShape 更新索引规模。
func SetIndexShape(size, dim int) {
	IndexSize.Set(float64(size))
	IndexDim.Set(float64(dim))
}

// SetBreakerState 更新熔断器状态，state 取 "closed"、"half-open"、"open"。
func SetBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	BreakerState.WithLabelValues(name).Set(v)
}

// RecordHistoryWrite 记录一次历史写入。
func RecordHistoryWrite(err error) {
	if err != nil {
		HistoryWrites.WithLabelValues("failed").Inc()
		return
	}
	HistoryWrites.WithLabelValues("ok").Inc()
}
