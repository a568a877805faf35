// Package transport 提供诊断报告的投递客户端。
// 传输客户端是诊断核心注入的唯一出口：每次调用投递一份自包含的
// 报告对象，客户端自身不持有任何单次请求的切面状态，因此可以被
// 任意数量的并发工作单元安全共享。
// 投递失败只对本地诊断可见，永远不会作为异常回传给业务代码路径。
package transport

import (
	"context"

	"github.com/oriys/faultline/internal/domain"
)

// Transport 是报告投递客户端接口。
// Send 可能是慢速阻塞调用（远端不可达时尤甚），调用方不得在持锁
// 状态下调用。实现必须容忍并发 Send。
type Transport interface {
	// Send 投递一份报告
	Send(ctx context.Context, report *domain.Report) error
	// Close 释放底层连接资源
	Close() error
}

// Discard 是丢弃一切报告的空传输，用于禁用上报的场景与测试。
type Discard struct{}

// Send 丢弃报告并立即返回成功。
func (Discard) Send(ctx context.Context, report *domain.Report) error { return nil }

// Close 无操作。
func (Discard) Close() error { return nil }
