package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 进程内指标（私有 registry，不注册到默认全局）：
// - admatch_op_total{comp,stage,result}
// - admatch_error_total{comp,code}
// - admatch_op_duration_ms{comp,stage}
// - admatch_cache_total{cache,result}
var (
	registry = prometheus.NewRegistry()

	opTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "admatch_op_total",
		Help: "Pipeline stage operations by result",
	}, []string{"comp", "stage", "result"})

	errorTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "admatch_error_total",
		Help: "Classified errors by component",
	}, []string{"comp", "code"})

	opDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admatch_op_duration_ms",
		Help:    "Stage duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"comp", "stage"})

	cacheTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "admatch_cache_total",
		Help: "Memo cache lookups by result",
	}, []string{"cache", "result"})
)

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { opTotal.WithLabelValues(comp, stage, result).Inc() }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { errorTotal.WithLabelValues(comp, code).Inc() }

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// IncCache 记录缓存查询（result=hit|miss）。
func IncCache(cache, result string) { cacheTotal.WithLabelValues(cache, result).Inc() }

// Gatherer 暴露私有 registry（测试与导出用）。
func Gatherer() prometheus.Gatherer { return registry }

// WriteTextfile 以 node_exporter textfile 格式原子写出当前指标。
func WriteTextfile(path string) error { return prometheus.WriteToTextfile(path, registry) }
