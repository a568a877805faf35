package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oriys/faultline/internal/domain"
	"github.com/sirupsen/logrus"
)

// 报告流常量定义
const (
	// StreamName 是报告流的 JetStream Stream 名称
	StreamName = "FAULTLINE_REPORTS"
	// SubjectPrefix 是报告 subject 前缀，完整 subject 为
	// faultline.reports.{service_name}
	SubjectPrefix = "faultline.reports"
)

// NATSTransport 将报告发布到 JetStream，由中继服务异步消费。
// 适用于不希望在工作单元路径上直接对外发起 HTTP 调用的部署。
type NATSTransport struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger
}

// NewNATSTransport 连接 NATS 并初始化报告流。
// Stream 不存在则创建，已存在但配置不同则尝试更新。
func NewNATSTransport(natsURL string, logger *logrus.Logger) (*NATSTransport, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour * 7, // 保留 7 天
	}
	if _, err := js.AddStream(&cfg); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		js.UpdateStream(&cfg)
	}

	return &NATSTransport{
		conn:   nc,
		js:     js,
		logger: logger,
	}, nil
}

// Send 将报告发布到该服务对应的 subject。
func (t *NATSTransport) Send(ctx context.Context, report *domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	subject := SubjectPrefix + "." + report.ServiceName
	if _, err := t.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"event_id": report.EventID,
		"level":    report.Level,
	}).Debug("Report published")
	return nil
}

// Close 关闭底层 NATS 连接。
func (t *NATSTransport) Close() error {
	t.conn.Close()
	return nil
}
