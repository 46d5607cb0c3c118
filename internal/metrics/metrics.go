// Package metrics 提供合成流程的 Prometheus 指标。
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// engineExecutionsTotal 记录引擎子进程调用次数。
	// status: success, failed, timeout, launch_error
	engineExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "htsengine_command_executions_total",
			Help: "Total number of hts_engine subprocess executions",
		},
		[]string{"status"},
	)

	// engineDuration 记录引擎子进程耗时。
	engineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "htsengine_command_duration_seconds",
			Help:    "Duration of hts_engine subprocess executions in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// synthesisFailuresTotal 按错误类型记录合成失败次数。
	synthesisFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synthesis_failures_total",
			Help: "Total number of failed synthesis calls by error kind",
		},
		[]string{"kind"},
	)

	// synthesisPhonesTotal 记录成功对齐的音素总数。
	synthesisPhonesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synthesis_phones_total",
			Help: "Total number of phones realigned from engine durations",
		},
	)

	// tempCleanupFailuresTotal 记录临时文件删除失败次数。
	tempCleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synthesis_temp_cleanup_failures_total",
			Help: "Total number of ephemeral file sets that could not be fully removed",
		},
	)
)

func init() {
	prometheus.MustRegister(engineExecutionsTotal)
	prometheus.MustRegister(engineDuration)
	prometheus.MustRegister(synthesisFailuresTotal)
	prometheus.MustRegister(synthesisPhonesTotal)
	prometheus.MustRegister(tempCleanupFailuresTotal)
}

// RecordEngineRun 记录一次引擎调用及其耗时。
func RecordEngineRun(status string, seconds float64) {
	engineExecutionsTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		engineDuration.Observe(seconds)
	}
}

// RecordFailure 记录一次合成失败。
func RecordFailure(kind string) {
	synthesisFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordPhones 记录成功对齐的音素数。
func RecordPhones(n int) {
	synthesisPhonesTotal.Add(float64(n))
}

// RecordCleanupFailure 记录一次临时文件清理失败。
func RecordCleanupFailure() {
	tempCleanupFailuresTotal.Inc()
}

// WriteTextfile 把默认注册表中的全部指标写入文件（node_exporter textfile 格式）。
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("写入指标文件失败: %w", err)
	}
	return nil
}
