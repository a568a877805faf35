package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/enrich"
	"github.com/oriys/faultline/internal/lifecycle"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/report"
	"github.com/oriys/faultline/internal/store"
	"github.com/oriys/faultline/internal/transport"
)

var (
	sendTestEndpoint string // 中继接入端点 DSN
	sendTestService  string // 合成报告的服务名
)

// sendTestCmd 执行端到端连通性自检。
// 它在本地组装一条完整的诊断流水线，跑一个注定失败的合成工作单元，
// 并把产生的报告经 HTTP 传输投递到中继，用于验证端点配置正确。
var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Send a synthetic failure report to verify connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendTestEndpoint == "" {
			return fmt.Errorf("--endpoint is required: %w", domain.ErrReportingDisabled)
		}

		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)

		tr, err := transport.NewHTTPTransport(sendTestEndpoint, transport.HTTPOptions{
			Timeout: 15 * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		defer tr.Close()

		enricher, err := enrich.New(nil, nil)
		if err != nil {
			return err
		}

		m := metrics.NewMetrics("faultline_cli")
		contexts := store.New()
		reporter := report.New(contexts, &captureTransport{inner: tr}, true, m, logger)
		adapter := lifecycle.New(contexts, enricher, reporter, m, logger, false)

		// 跑一个注定失败的合成工作单元
		callID := uuid.New().String()
		wc := &domain.WorkerContext{
			ServiceName: sendTestService,
			EntryPoint:  &domain.EntryPoint{MethodName: "send_test"},
			CallID:      callID,
			ContextData: map[string]string{
				"user_id": "faultline-cli",
			},
		}

		adapter.OnEntry(wc, wc)
		adapter.OnCompletion(context.Background(), wc, nil, errors.New("synthetic failure from faultline send-test"))
		adapter.OnTeardown(wc)

		if lastSendErr != nil {
			return fmt.Errorf("delivery failed: %w", lastSendErr)
		}
		fmt.Printf("Synthetic report delivered (call_id %s)\n", callID)
		return nil
	},
}

// lastSendErr 记录最近一次投递结果，报告器本身从不向调用方传播投递错误。
var lastSendErr error

// captureTransport 包装真实传输并捕获投递结果，供自检命令判断成败。
type captureTransport struct {
	inner transport.Transport
}

func (c *captureTransport) Send(ctx context.Context, rep *domain.Report) error {
	lastSendErr = c.inner.Send(ctx, rep)
	return lastSendErr
}

func (c *captureTransport) Close() error {
	return c.inner.Close()
}

func init() {
	sendTestCmd.Flags().StringVarP(&sendTestEndpoint, "endpoint", "e", "", "中继接入端点（如 https://key@relay.example.com/1）")
	sendTestCmd.Flags().StringVar(&sendTestService, "service", "faultline-cli", "合成报告的服务名")
	rootCmd.AddCommand(sendTestCmd)
}
