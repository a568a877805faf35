// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义诊断层关键指标（报告、传输、上下文仓库、中继等），
// 便于在各模块复用并保持标签一致。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 封装诊断层运行时指标集合。
// 所有字段均为 Prometheus 指标类型，通过辅助方法更新指标值。
//
// 指标分类:
//   - 报告指标: 跟踪报告的产生、抑制、降级
//   - 传输指标: 监控投递错误与队列积压
//   - 上下文指标: 监控存活的诊断上下文数量（泄漏检测）
//   - 中继指标: 监控中继服务的接收、归档与溢出
type Metrics struct {
	// ========== 报告相关指标 ==========

	// ReportsTotal 产生的报告总数计数器
	// 标签: service, level
	ReportsTotal *prometheus.CounterVec

	// ReportsSuppressed 被抑制的报告计数器
	// 标签: service, reason (expected_policy/disabled)
	ReportsSuppressed *prometheus.CounterVec

	// ReportsDegraded 降级报告计数器（富化失败后仅携带基础字段）
	// 标签: service
	ReportsDegraded *prometheus.CounterVec

	// EnrichFailures 切面富化失败计数器
	// 标签: facet
	EnrichFailures *prometheus.CounterVec

	// ========== 传输相关指标 ==========

	// TransportErrors 投递错误计数器
	// 标签: transport (http/nats/async)
	TransportErrors *prometheus.CounterVec

	// TransportQueuePending 异步传输队列中待投递的报告数
	TransportQueuePending prometheus.Gauge

	// ========== 上下文仓库相关指标 ==========

	// LiveContexts 当前存活的诊断上下文条目数
	LiveContexts prometheus.Gauge

	// ========== 中继相关指标 ==========

	// RelayReceived 中继接收的报告信封计数器
	// 标签: source (http/nats)
	RelayReceived *prometheus.CounterVec

	// RelayArchived 成功归档的报告计数器
	RelayArchived prometheus.Counter

	// RelaySpooled 归档失败转入溢出暂存的报告计数器
	RelaySpooled prometheus.Counter

	// RelayReaped 保留期清理删除的报告计数器
	RelayReaped prometheus.Counter
}

// NewMetrics 创建并注册一组 Prometheus 指标。
// namespace 用于作为所有指标名前缀，便于在同一 Prometheus 中区分不同应用。
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ReportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Total number of failure reports produced",
			},
			[]string{"service", "level"},
		),
		ReportsSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_suppressed_total",
				Help:      "Total number of reports suppressed before transport",
			},
			[]string{"service", "reason"},
		),
		ReportsDegraded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_degraded_total",
				Help:      "Total number of degraded reports sent without full enrichment",
			},
			[]string{"service"},
		),
		EnrichFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrich_failures_total",
				Help:      "Total number of facet enrichment failures",
			},
			[]string{"facet"},
		),
		TransportErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_errors_total",
				Help:      "Total number of report delivery errors",
			},
			[]string{"transport"},
		),
		TransportQueuePending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_queue_pending",
				Help:      "Reports waiting in the async transport queue",
			},
		),
		LiveContexts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_contexts",
				Help:      "Diagnostic contexts currently held in the store",
			},
		),
		RelayReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_received_total",
				Help:      "Report envelopes received by the relay",
			},
			[]string{"source"},
		),
		RelayArchived: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_archived_total",
				Help:      "Reports archived to persistent storage",
			},
		),
		RelaySpooled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_spooled_total",
				Help:      "Reports diverted to the overflow spool",
			},
		),
		RelayReaped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_reaped_total",
				Help:      "Reports deleted by the retention sweeper",
			},
		),
	}
}

// RecordReport 记录一次报告产生。
func (m *Metrics) RecordReport(service string, level string) {
	m.ReportsTotal.WithLabelValues(service, level).Inc()
}

// RecordSuppressed 记录一次报告抑制。
func (m *Metrics) RecordSuppressed(service string, reason string) {
	m.ReportsSuppressed.WithLabelValues(service, reason).Inc()
}

// RecordDegraded 记录一次降级报告。
func (m *Metrics) RecordDegraded(service string) {
	m.ReportsDegraded.WithLabelValues(service).Inc()
}

// RecordEnrichFailure 记录一次切面富化失败。
func (m *Metrics) RecordEnrichFailure(facet string) {
	m.EnrichFailures.WithLabelValues(facet).Inc()
}

// RecordTransportError 记录一次投递错误。
func (m *Metrics) RecordTransportError(transport string) {
	m.TransportErrors.WithLabelValues(transport).Inc()
}
