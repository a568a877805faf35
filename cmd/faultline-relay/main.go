// Package main 是故障报告中继服务的入口点。
// 中继服务接收各业务服务上报的崩溃报告信封，归档到 PostgreSQL，
// 并提供查询接口、实时追踪和保留期清理。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/auth"
	"github.com/oriys/faultline/internal/config"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/relay"
	"github.com/oriys/faultline/internal/storage"
	"github.com/oriys/faultline/internal/telemetry"
)

func main() {
	// 解析命令行参数，获取配置文件路径
	configPath := flag.String("config", "/etc/faultline/config.yaml", "Path to config file")
	flag.Parse()

	// 设置日志记录器
	// 使用 JSON 格式输出日志，便于日志收集和分析
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// 加载配置文件
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	// 根据配置设置日志级别
	if cfg.Logging.Level == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.WithField("listen", cfg.Relay.Listen).Info("Starting Faultline Relay")

	// 初始化遥测系统 (OpenTelemetry)
	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		telCfg := telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRate:  cfg.Telemetry.SampleRate,
			Environment: cfg.Telemetry.Environment,
		}
		var err error
		tel, err = telemetry.New(context.Background(), telCfg)
		if err != nil {
			// 遥测初始化失败不影响主服务运行，仅记录警告
			logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		} else {
			defer tel.Shutdown(context.Background())
			// 将遥测钩子添加到日志记录器，自动关联日志和追踪
			logger.AddHook(telemetry.NewLogrusHook())
			logger.WithFields(logrus.Fields{
				"endpoint":    cfg.Telemetry.Endpoint,
				"sample_rate": cfg.Telemetry.SampleRate,
			}).Info("Telemetry initialized")
		}
	}

	// 初始化 PostgreSQL 归档存储
	pgStore, err := storage.NewPostgresStore(cfg.Storage.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer pgStore.Close()

	// 初始化 Redis 溢出暂存
	redisStore, err := storage.NewRedisStore(cfg.Storage.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisStore.Close()

	// 初始化 Prometheus 指标收集器
	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = "faultline"
	}
	m := metrics.NewMetrics(namespace)

	// 初始化实时追踪中心和中继核心
	hub := relay.NewTailHub(logger)
	defer hub.Close()

	rl := relay.New(pgStore, redisStore, hub, m, logger)

	// 后台上下文，控制消费与排空协程的生命周期
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// 启动溢出暂存排空循环
	go rl.DrainSpool(bgCtx, 30*time.Second)

	// 配置了 NATS 时，同时消费 JetStream 报告流
	if cfg.Relay.NatsURL != "" {
		consumer, err := relay.NewConsumer(cfg.Relay.NatsURL, rl, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to NATS")
		}
		defer consumer.Close()

		if err := consumer.Subscribe(bgCtx); err != nil {
			logger.WithError(err).Fatal("Failed to subscribe to report stream")
		}
		logger.WithField("nats_url", cfg.Relay.NatsURL).Info("Consuming report stream")
	}

	// 启动保留期清理器
	sweeper := relay.NewSweeper(pgStore, cfg.Relay.Retention.Schedule, cfg.Relay.Retention.TTL, m, logger)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start retention sweeper")
	}
	defer sweeper.Stop()

	// 组装认证组件
	var authMw *auth.Middleware
	var keyring *auth.Keyring
	if cfg.Relay.Auth.Enabled {
		keyring = auth.NewKeyring(cfg.Relay.Auth.APIKeys)
		var jwtMgr *auth.JWTManager
		if cfg.Relay.Auth.JWTSecret != "" {
			jwtMgr = auth.NewJWTManager(cfg.Relay.Auth.JWTSecret, 24*time.Hour)
		}
		authMw = auth.NewMiddleware(jwtMgr, cfg.Relay.Auth.APIKeyHeader, keyring, true)
	}

	// 配置 HTTP 路由器
	handler := relay.NewHandler(rl, pgStore, keyring, logger)
	router := relay.NewRouter(&relay.RouterConfig{
		Handler:        handler,
		AuthMiddleware: authMw,
		Hub:            hub,
	})

	// 独立的指标服务，与业务端口分离
	var metricsServer *http.Server
	if cfg.Metrics.Enabled && cfg.Relay.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Relay.MetricsPort),
			Handler: mux,
		}
		go func() {
			logger.WithField("port", cfg.Relay.MetricsPort).Info("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	server := &http.Server{
		Addr:    cfg.Relay.Listen,
		Handler: router,
	}

	go func() {
		logger.WithField("addr", cfg.Relay.Listen).Info("Relay server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Relay server failed")
		}
	}()

	// 等待终止信号，执行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down relay")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown failed")
		}
	}

	logger.Info("Relay stopped")
}
