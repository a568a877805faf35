package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
)

// 中继消费端与客户端 NATS 传输共享的流配置
const (
	streamName    = "FAULTLINE_REPORTS"
	streamSubject = "faultline.reports.>"
	durableName   = "faultline-relay"
)

// Consumer 封装 NATS/JetStream 连接，消费客户端投递的报告信封。
type Consumer struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	relay  *Relay
	logger *logrus.Logger
}

// NewConsumer 连接到 NATS 并初始化所需的 JetStream Stream。
// Stream 与客户端的 NATS 传输共用，不存在则创建，存在则尝试更新配置。
func NewConsumer(natsURL string, relay *Relay, logger *logrus.Logger) (*Consumer, error) {
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
		Name:     streamName,
		Subjects: []string{streamSubject},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour * 7, // 保留 7 天
	}
	if _, err := js.AddStream(&cfg); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		// 失败时尝试更新（例如 Stream 已存在但配置不同）
		js.UpdateStream(&cfg)
	}

	return &Consumer{
		conn:   nc,
		js:     js,
		relay:  relay,
		logger: logger,
	}, nil
}

// Close 关闭底层 NATS 连接。
func (c *Consumer) Close() error {
	c.conn.Close()
	return nil
}

// Subscribe 订阅报告信封主题并逐条交给中继核心归档。
// 解码失败或归档失败的消息会被 Nak，等待 JetStream 重投递。
// ctx 取消时将自动取消订阅。
func (c *Consumer) Subscribe(ctx context.Context) error {
	sub, err := c.js.Subscribe(streamSubject, func(msg *nats.Msg) {
		var rep domain.Report
		if err := json.Unmarshal(msg.Data, &rep); err != nil {
			c.logger.WithError(err).WithField("subject", msg.Subject).Error("Failed to unmarshal report envelope")
			// 损坏的信封重投递也无法修复，直接确认丢弃
			msg.Ack()
			return
		}

		if err := c.relay.Ingest(ctx, &rep, "nats"); err != nil {
			c.logger.WithError(err).WithField("event_id", rep.EventID).Error("Failed to ingest report")
			msg.Nak()
			return
		}

		msg.Ack()
	}, nats.Durable(durableName), nats.ManualAck())

	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}
