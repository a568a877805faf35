// Package config 提供了工作单元诊断层的配置管理功能。
// 该包负责从 YAML 配置文件加载配置，并支持通过环境变量覆盖敏感配置项（如密钥）。
// 配置包含了上报客户端、中继服务、存储、日志、指标和遥测等多个方面的设置。
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是应用程序的主配置结构体，包含所有子系统的配置。
// 该结构体通过 YAML 标签与配置文件进行映射。
type Config struct {
	// Reporting 上报客户端配置，包括端点 DSN 与切面匹配模式
	Reporting ReportingConfig `yaml:"reporting"`
	// Relay 中继服务配置，包括监听端口、认证与保留策略
	Relay RelayConfig `yaml:"relay"`
	// Storage 存储配置，包括 PostgreSQL 归档库和 Redis 溢出暂存
	Storage StorageConfig `yaml:"storage"`
	// Logging 日志配置，包括日志级别和格式
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ReportingConfig 上报客户端配置结构体。
// 对应诊断核心在进程启动时一次性接收的全部选项。
type ReportingConfig struct {
	// Endpoint 上报端点 DSN，如 "https://key@faultline.example.com/42"
	// 为空时禁用客户端：报告总是被抑制，其余钩子退化为无操作
	Endpoint string `yaml:"endpoint"`
	// ClientOptions 透传给传输客户端构造函数的选项
	ClientOptions ClientOptions `yaml:"client_options"`
	// ReportExpected 是否上报预期错误
	// 默认值：true
	ReportExpected *bool `yaml:"report_expected"`
	// UserMatchPatterns user 切面的有序键匹配模式列表
	// 默认值：匹配包含 user、email 或 session 的键
	UserMatchPatterns []string `yaml:"user_match_patterns"`
	// TagMatchPatterns tags 切面的有序键匹配模式列表
	// 默认值：匹配以关联 ID 风格后缀结尾的键
	TagMatchPatterns []string `yaml:"tag_match_patterns"`
	// NatsURL 可选的 NATS 投递地址，设置后报告经 JetStream 发布
	// 而非直接 HTTP 提交
	NatsURL string `yaml:"nats_url"`
	// Async 异步投递队列配置
	Async AsyncConfig `yaml:"async"`
}

// ClientOptions 传输客户端的构造选项。
type ClientOptions struct {
	// Timeout 单次投递超时时间
	// 默认值：10 秒
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent 覆盖默认 User-Agent
	UserAgent string `yaml:"user_agent"`
}

// AsyncConfig 异步投递队列配置结构体。
type AsyncConfig struct {
	// Enabled 是否启用异步投递（报告先入队，后台协程投递）
	// 默认值：true
	Enabled *bool `yaml:"enabled"`
	// QueueSize 待投递队列容量
	// 默认值：1000
	QueueSize int `yaml:"queue_size"`
	// Workers 投递协程数量
	// 默认值：2
	Workers int `yaml:"workers"`
}

// RelayConfig 中继服务配置结构体。
type RelayConfig struct {
	// Listen 中继 HTTP 服务监听地址
	// 默认值：:8090
	Listen string `yaml:"listen"`
	// MetricsPort 指标服务端口，用于 Prometheus 指标暴露
	// 默认值：9090
	MetricsPort int `yaml:"metrics_port"`
	// NatsURL 可选的 NATS 订阅地址，设置后中继同时消费 JetStream 报告流
	NatsURL string `yaml:"nats_url"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：30 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Auth 中继认证配置
	Auth AuthConfig `yaml:"auth"`
	// Retention 归档保留策略
	Retention RetentionConfig `yaml:"retention"`
}

// AuthConfig 中继认证配置结构体。
type AuthConfig struct {
	// Enabled 是否启用认证
	Enabled bool `yaml:"enabled"`
	// APIKeyHeader API Key 请求头名称
	// 默认值：X-API-Key
	APIKeyHeader string `yaml:"api_key_header"`
	// APIKeys 允许的 API Key 列表
	APIKeys []string `yaml:"api_keys"`
	// JWTSecret JWT 签名密钥，可通过环境变量 FAULTLINE_AUTH_JWT_SECRET 或
	// FAULTLINE_AUTH_JWT_SECRET_FILE（文件路径）覆盖
	JWTSecret string `yaml:"jwt_secret"`
}

// RetentionConfig 归档保留策略配置结构体。
type RetentionConfig struct {
	// TTL 报告在归档库中的保留时长
	// 默认值：168 小时（7 天）
	TTL time.Duration `yaml:"ttl"`
	// Schedule 清理任务的 cron 表达式（支持秒级）
	// 默认值："0 0 * * * *"（每小时整点）
	Schedule string `yaml:"schedule"`
}

// StorageConfig 存储配置结构体。
// 包含各种数据存储后端的配置。
type StorageConfig struct {
	// Postgres PostgreSQL 归档库配置
	Postgres PostgresConfig `yaml:"postgres"`
	// Redis Redis 溢出暂存配置
	Redis RedisConfig `yaml:"redis"`
}

// PostgresConfig PostgreSQL 数据库配置结构体。
type PostgresConfig struct {
	// Host 数据库主机地址
	Host string `yaml:"host"`
	// Port 数据库端口号
	Port int `yaml:"port"`
	// Database 数据库名称
	Database string `yaml:"database"`
	// User 数据库用户名
	User string `yaml:"user"`
	// Password 数据库密码，可通过环境变量 FAULTLINE_POSTGRES_PASSWORD 或
	// FAULTLINE_POSTGRES_PASSWORD_FILE（文件路径）覆盖
	Password string `yaml:"password"`
	// MaxConnections 最大连接数
	MaxConnections int `yaml:"max_connections"`
}

// RedisConfig Redis 配置结构体。
type RedisConfig struct {
	// Address Redis 服务器地址，格式为 "host:port"
	Address string `yaml:"address"`
	// Password Redis 密码，可通过环境变量 FAULTLINE_REDIS_PASSWORD 或
	// FAULTLINE_REDIS_PASSWORD_FILE（文件路径）覆盖
	Password string `yaml:"password"`
	// DB Redis 数据库编号（0-15）
	DB int `yaml:"db"`
}

// LoggingConfig 日志配置结构体。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	// 默认值：faultline
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig 遥测配置结构体。
// 定义了分布式追踪的相关设置，支持 OpenTelemetry 协议。
type TelemetryConfig struct {
	// Enabled 是否启用遥测
	Enabled bool `yaml:"enabled"`
	// Endpoint OTLP 端点地址（如 "tempo:4317"）
	Endpoint string `yaml:"endpoint"`
	// ServiceName 服务名称，用于追踪标识
	// 默认值：faultline-relay
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，范围 0.0 到 1.0
	// 默认值：0.1（10% 采样）
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 环境标识（如 production、staging、development）
	// 默认值：development
	Environment string `yaml:"environment"`
}

// Load 从指定路径加载配置文件。
// 该函数会读取 YAML 配置文件，应用默认值，并处理环境变量覆盖。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// ReportExpectedOrDefault 返回预期错误上报策略，未设置时为 true。
func (c *ReportingConfig) ReportExpectedOrDefault() bool {
	if c.ReportExpected == nil {
		return true
	}
	return *c.ReportExpected
}

// AsyncEnabledOrDefault 返回异步投递开关，未设置时为 true。
func (c *AsyncConfig) AsyncEnabledOrDefault() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// applyEnvOverrides 应用环境变量覆盖。
// 敏感配置项支持通过 *_FILE（推荐，适用于 Docker Secrets）
// 或直接环境变量设置，_FILE 方式优先级更高。
func (c *Config) applyEnvOverrides() {
	if v := readEnvOrFile("FAULTLINE_POSTGRES_PASSWORD", "FAULTLINE_POSTGRES_PASSWORD_FILE"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := readEnvOrFile("FAULTLINE_REDIS_PASSWORD", "FAULTLINE_REDIS_PASSWORD_FILE"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := readEnvOrFile("FAULTLINE_AUTH_JWT_SECRET", "FAULTLINE_AUTH_JWT_SECRET_FILE"); v != "" {
		c.Relay.Auth.JWTSecret = v
	}
	if v := readEnvOrFile("FAULTLINE_ENDPOINT", "FAULTLINE_ENDPOINT_FILE"); v != "" {
		c.Reporting.Endpoint = v
	}
}

// readEnvOrFile 从环境变量或文件读取配置值。
// 优先从 fileKey 指定的文件路径读取，文件不存在或读取失败时
// 回退到 envKey 指定的环境变量。
func readEnvOrFile(envKey, fileKey string) string {
	if filePath := strings.TrimSpace(os.Getenv(fileKey)); filePath != "" {
		if b, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return ""
}

// applyDefaults 应用默认配置值。
// 该方法为未设置的配置项填充合理的默认值，确保应用可以正常运行。
func (c *Config) applyDefaults() {
	// 单次投递超时默认为 10 秒
	if c.Reporting.ClientOptions.Timeout == 0 {
		c.Reporting.ClientOptions.Timeout = 10 * time.Second
	}
	// 异步队列容量默认为 1000
	if c.Reporting.Async.QueueSize == 0 {
		c.Reporting.Async.QueueSize = 1000
	}
	// 投递协程数默认为 2
	if c.Reporting.Async.Workers == 0 {
		c.Reporting.Async.Workers = 2
	}
	// 中继监听地址默认为 :8090
	if c.Relay.Listen == "" {
		c.Relay.Listen = ":8090"
	}
	// 指标端口默认为 9090
	if c.Relay.MetricsPort == 0 {
		c.Relay.MetricsPort = 9090
	}
	// 优雅关闭超时默认为 30 秒
	if c.Relay.ShutdownTimeout == 0 {
		c.Relay.ShutdownTimeout = 30 * time.Second
	}
	// API Key 请求头默认为 X-API-Key
	if c.Relay.Auth.APIKeyHeader == "" {
		c.Relay.Auth.APIKeyHeader = "X-API-Key"
	}
	// 归档保留时长默认为 7 天
	if c.Relay.Retention.TTL == 0 {
		c.Relay.Retention.TTL = 168 * time.Hour
	}
	// 清理任务默认每小时整点执行
	if c.Relay.Retention.Schedule == "" {
		c.Relay.Retention.Schedule = "0 0 * * * *"
	}
	// 指标命名空间默认为 faultline
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "faultline"
	}
	// 遥测服务名称默认为 faultline-relay
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "faultline-relay"
	}
	// OTLP 端点默认为 tempo:4317
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "tempo:4317"
	}
	// 采样率默认为 10%
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	// 环境标识默认为 development
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
