// Package relay 提供故障报告中继服务的核心逻辑。
// 中继服务从 HTTP 和 NATS 两条通道接收崩溃报告信封，归档到 PostgreSQL，
// 归档失败时转入 Redis 溢出暂存队列，并向实时追踪的 WebSocket 客户端广播。
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/storage"
)

// Relay 是中继服务的核心结构体，封装归档、暂存与广播的依赖。
//
// 字段说明：
//   - store: PostgreSQL 存储，用于报告归档与查询
//   - spool: Redis 存储，归档失败时的溢出暂存队列
//   - hub: WebSocket 实时追踪中心，可以为 nil
//   - metrics: Prometheus 指标收集器
//   - logger: 日志记录器
type Relay struct {
	store   *storage.PostgresStore
	spool   *storage.RedisStore
	hub     *TailHub
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// New 创建并返回一个新的 Relay 实例。
func New(store *storage.PostgresStore, spool *storage.RedisStore, hub *TailHub, m *metrics.Metrics, logger *logrus.Logger) *Relay {
	return &Relay{
		store:   store,
		spool:   spool,
		hub:     hub,
		metrics: m,
		logger:  logger,
	}
}

// Ingest 接收一个报告信封并尝试归档。
// source 标识信封的来源通道（"http" 或 "nats"），仅用于指标维度。
//
// 归档失败时信封转入溢出暂存队列，由后台排空循环稍后重试；
// 只有暂存也失败时才向调用方返回错误。
// 无论归档结果如何，信封都会广播给实时追踪客户端。
func (r *Relay) Ingest(ctx context.Context, rep *domain.Report, source string) error {
	if rep.EventID == "" {
		return domain.ErrInvalidEnvelope
	}

	r.metrics.RelayReceived.WithLabelValues(source).Inc()

	if r.hub != nil {
		r.hub.Broadcast(rep)
	}

	if err := r.store.ArchiveReport(ctx, rep); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": rep.EventID,
			"service":  rep.ServiceName,
		}).Warn("Failed to archive report, spooling")

		if spoolErr := r.spool.PushSpool(ctx, rep); spoolErr != nil {
			r.logger.WithError(spoolErr).WithField("event_id", rep.EventID).Error("Failed to spool report")
			return spoolErr
		}
		r.metrics.RelaySpooled.Inc()
		return nil
	}

	r.metrics.RelayArchived.Inc()
	return nil
}

// DrainSpool 启动溢出暂存队列的后台排空循环。
// 每个 interval 周期尝试把暂存的信封重新归档，归档仍失败时
// 信封放回队列尾部等待下一轮。ctx 取消时循环退出。
func (r *Relay) DrainSpool(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 排空一轮暂存队列，直到队列为空或归档再次失败。
func (r *Relay) drainOnce(ctx context.Context) {
	for {
		rep, err := r.spool.PopSpool(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidEnvelope) {
				r.logger.WithError(err).Warn("Failed to pop spooled report")
				return
			}
			// 损坏的信封无法恢复，丢弃并继续排空
			r.logger.WithError(err).Warn("Dropping corrupt spooled report")
			continue
		}
		if rep == nil {
			return
		}

		if err := r.store.ArchiveReport(ctx, rep); err != nil {
			// 归档依然失败，放回队列等待下一轮
			if spoolErr := r.spool.PushSpool(ctx, rep); spoolErr != nil {
				r.logger.WithError(spoolErr).WithField("event_id", rep.EventID).Error("Failed to re-spool report")
			}
			return
		}
		r.metrics.RelayArchived.Inc()
		r.logger.WithField("event_id", rep.EventID).Debug("Spooled report archived")
	}
}
