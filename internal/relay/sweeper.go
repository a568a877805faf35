package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/storage"
)

// Sweeper 按配置的 cron 计划清理超过保留期的归档报告。
type Sweeper struct {
	store    *storage.PostgresStore
	cron     *cron.Cron
	schedule string
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewSweeper 创建保留期清理器。
// schedule 使用秒级 cron 表达式（如 "0 0 * * * *" 表示每小时整点）。
func NewSweeper(store *storage.PostgresStore, schedule string, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		cron:     cron.New(cron.WithSeconds()), // 支持秒级
		schedule: schedule,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
	}
}

// Start 注册清理任务并启动调度器。
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.SweepOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"ttl":      s.ttl.String(),
	}).Info("Retention sweeper started")
	return nil
}

// Stop 停止调度器，等待正在执行的清理任务完成。
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepOnce 执行一轮清理，删除创建时间早于保留期的报告。
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.ttl)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Retention sweep failed")
		return
	}
	if deleted > 0 {
		s.metrics.RelayReaped.Add(float64(deleted))
		s.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Retention sweep completed")
	}
}
