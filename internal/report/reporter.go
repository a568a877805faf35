// Package report 提供诊断报告的组装与派发。
// Reporter 将一个失败的工作单元累积的全部诊断上下文合并为一份
// 不可变报告，交给注入的传输客户端投递。
//
// 该组件的铁律是：自身的任何内部故障都不得传播回宿主运行时。
// 组装失败时退化为只含基础字段的降级报告；连投递都无法尝试时
// 记录本地日志，绝不向调用方抛出。
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/faultline/internal/classify"
	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/store"
	"github.com/oriys/faultline/internal/telemetry"
	"github.com/oriys/faultline/internal/transport"
	"github.com/sirupsen/logrus"
)

// Reporter 组装并派发失败报告。
// 传输客户端是全部并发工作单元共享的单一资源，每次 Report 调用
// 构建一份自包含的报告对象，不通过客户端状态做任何切面传递。
type Reporter struct {
	contexts  *store.ContextStore
	transport transport.Transport
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	// reportExpected 控制预期错误是否上报（默认 true）
	reportExpected bool
}

// New 创建报告派发器。
// m 可以为 nil（禁用指标）。
func New(contexts *store.ContextStore, t transport.Transport, reportExpected bool, m *metrics.Metrics, logger *logrus.Logger) *Reporter {
	return &Reporter{
		contexts:       contexts,
		transport:      t,
		metrics:        m,
		logger:         logger,
		reportExpected: reportExpected,
	}
}

// Report 对一个失败的工作单元组装并派发报告。
//
// 执行顺序:
//  1. 分类错误；预期错误且策略禁止上报时抑制，不产生传输调用
//  2. 计算严重级别（预期 WARNING，非预期 ERROR）
//  3. 按确定性格式渲染消息与 logger 标识
//  4. 读取该工作单元累积的诊断上下文并快照
//  5. 构建不可变报告，同步交给传输客户端
//
// 投递错误是传输自身的关切，本方法不重试；抑制返回
// ErrReportSuppressed，其余情况返回 nil。
func (r *Reporter) Report(ctx context.Context, key domain.UnitKey, wc *domain.WorkerContext, cause error) error {
	expected := classify.IsExpected(wc.EntryPoint, cause)
	if expected && !r.reportExpected {
		// 策略抑制不是错误条件，仅留本地痕迹
		r.logger.WithFields(logrus.Fields{
			"call_id": wc.CallID,
			"error":   cause.Error(),
		}).Debug("Expected error suppressed by policy")
		if r.metrics != nil {
			r.metrics.RecordSuppressed(wc.ServiceName, "expected_policy")
		}
		return domain.ErrReportSuppressed
	}

	level := domain.SeverityError
	if expected {
		level = domain.SeverityWarning
	}

	rep := r.assemble(ctx, key, wc, cause, level)
	if r.metrics != nil {
		r.metrics.RecordReport(wc.ServiceName, string(rep.Level))
	}

	if err := r.transport.Send(ctx, rep); err != nil {
		// 投递失败只对本地诊断可见
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": rep.EventID,
			"call_id":  wc.CallID,
		}).Error("Failed to hand report to transport")
		if r.metrics != nil {
			r.metrics.RecordTransportError("client")
		}
	}
	return nil
}

// assemble 构建报告。
// 上下文缺失或组装过程 panic 时退化为只含消息/来源/级别的降级报告。
func (r *Reporter) assemble(ctx context.Context, key domain.UnitKey, wc *domain.WorkerContext, cause error, level domain.Severity) (rep *domain.Report) {
	base := &domain.Report{
		EventID:     uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Message:     domain.FormatMessage(wc.CallID, cause),
		Logger:      domain.LoggerName(wc.ServiceName, wc.Method()),
		Level:       level,
		ServiceName: wc.ServiceName,
		Request:     map[string]any{},
		User:        map[string]any{},
		Tags:        map[string]any{},
		Extra:       map[string]any{},
		Exception:   domain.NewExceptionRecord(cause),
	}
	rep = base

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"call_id": wc.CallID,
				"panic":   rec,
			}).Error("Report assembly failed, sending degraded report")
			if r.metrics != nil {
				r.metrics.RecordDegraded(wc.ServiceName)
			}
			rep = base
		}
	}()

	dctx, err := r.contexts.Get(key)
	if err != nil {
		// 缺失上下文属于内部缺陷，降级而非失败
		r.logger.WithField("call_id", wc.CallID).Warn("Diagnostic context missing, sending degraded report")
		if r.metrics != nil {
			r.metrics.RecordDegraded(wc.ServiceName)
		}
		return base
	}

	request, user, tags, extra, crumbs := dctx.Snapshot()
	if traceID := telemetry.TraceIDFromContext(ctx); traceID != "" {
		tags["trace_id"] = traceID
	}

	base.Request = request
	base.User = user
	base.Tags = tags
	base.Extra = extra
	base.Breadcrumbs = crumbs
	return base
}
