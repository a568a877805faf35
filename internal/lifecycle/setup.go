package lifecycle

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/config"
	"github.com/oriys/faultline/internal/enrich"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/report"
	"github.com/oriys/faultline/internal/store"
	"github.com/oriys/faultline/internal/transport"
)

// FromConfig 根据上报配置组装完整的诊断管道并返回生命周期适配器。
//
// 端点为空时返回禁用的适配器：所有钩子退化为无操作，不建立任何连接。
// NatsURL 设置时报告经 JetStream 发布，否则按 DSN 直接 HTTP 提交；
// 启用异步投递时真实传输被有界队列装饰器包装。
//
// 返回的 closer 负责在进程退出时排空队列并关闭底层连接，
// 禁用时为无操作但总是非 nil。
func FromConfig(cfg *config.ReportingConfig, m *metrics.Metrics, logger *logrus.Logger) (*Adapter, func() error, error) {
	contexts := store.New()

	enricher, err := enrich.New(cfg.UserMatchPatterns, cfg.TagMatchPatterns)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid match patterns: %w", err)
	}

	if cfg.Endpoint == "" && cfg.NatsURL == "" {
		logger.Info("Reporting endpoint not configured, diagnostics disabled")
		reporter := report.New(contexts, &transport.Discard{}, cfg.ReportExpectedOrDefault(), m, logger)
		adapter := New(contexts, enricher, reporter, m, logger, true)
		return adapter, func() error { return nil }, nil
	}

	var tr transport.Transport
	if cfg.NatsURL != "" {
		tr, err = transport.NewNATSTransport(cfg.NatsURL, logger)
	} else {
		tr, err = transport.NewHTTPTransport(cfg.Endpoint, transport.HTTPOptions{
			Timeout:   cfg.ClientOptions.Timeout,
			UserAgent: cfg.ClientOptions.UserAgent,
		}, logger)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build transport: %w", err)
	}

	if cfg.Async.AsyncEnabledOrDefault() {
		tr = transport.NewAsyncTransport(tr, transport.AsyncOptions{
			QueueSize: cfg.Async.QueueSize,
			Workers:   cfg.Async.Workers,
		}, logger)
	}

	reporter := report.New(contexts, tr, cfg.ReportExpectedOrDefault(), m, logger)
	adapter := New(contexts, enricher, reporter, m, logger, false)
	return adapter, tr.Close, nil
}

// Enricher 返回适配器使用的富化器，供模式热更新使用。
func (a *Adapter) Enricher() *enrich.Enricher {
	return a.enricher
}

// WatchPatterns 监视配置文件并把重新加载的 user/tags 匹配模式
// 热替换进适配器的富化器。宿主服务在配置可能被滚动更新时调用。
func (a *Adapter) WatchPatterns(path string, logger *logrus.Logger) (*enrich.PatternWatcher, error) {
	return enrich.WatchPatterns(path, a.enricher, ConfigPatternSource, logger)
}

// ConfigPatternSource 从标准配置文件读取匹配模式列表。
func ConfigPatternSource(path string) ([]string, []string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Reporting.UserMatchPatterns, cfg.Reporting.TagMatchPatterns, nil
}
