package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// authHeader 是携带 DSN 密钥的请求头。
const authHeader = "X-Faultline-Key"

// HTTPOptions 是 HTTP 传输的构造选项。
// 对应配置中的 client_options 透传映射。
type HTTPOptions struct {
	// Timeout 是单次投递的超时时间，默认 10 秒
	Timeout time.Duration
	// UserAgent 覆盖默认 User-Agent
	UserAgent string
}

// HTTPTransport 通过 HTTP 将报告以 JSON 信封提交到 DSN 指向的端点。
// 底层客户端带有追踪插桩，出站请求自动携带追踪上下文。
type HTTPTransport struct {
	dsn    *DSN
	client *http.Client
	agent  string
	logger *logrus.Logger
}

// NewHTTPTransport 创建 HTTP 传输客户端。
func NewHTTPTransport(dsn string, opts HTTPOptions, logger *logrus.Logger) (*HTTPTransport, error) {
	parsed, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	agent := opts.UserAgent
	if agent == "" {
		agent = "faultline-go/1.0"
	}
	return &HTTPTransport{
		dsn: parsed,
		client: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.HTTPClientTransport(nil),
		},
		agent:  agent,
		logger: logger,
	}, nil
}

// Send 提交一份报告。
// 非 2xx 响应视为投递失败返回错误，由调用方决定是否记录；
// 本方法不重试。
func (t *HTTPTransport) Send(ctx context.Context, report *domain.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.dsn.IngestURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.agent)
	req.Header.Set(authHeader, t.dsn.Key)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report rejected by endpoint: status %d", resp.StatusCode)
	}

	t.logger.WithFields(logrus.Fields{
		"event_id": report.EventID,
		"logger":   report.Logger,
		"level":    report.Level,
	}).Debug("Report delivered")
	return nil
}

// Close 无持久连接，仅关闭空闲连接池。
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
