// Package domain 定义了工作单元诊断层的核心领域模型。
package domain

import "errors"

// 领域错误定义
// 这些错误用于在诊断层的不同组件之间传递失败原因。

var (
	// ========== 诊断上下文相关错误 ==========

	// ErrUnknownFacet 表示合并目标不是四个命名切面之一
	ErrUnknownFacet = errors.New("unknown diagnostic facet")
	// ErrContextNotFound 表示工作单元的诊断上下文不存在
	ErrContextNotFound = errors.New("diagnostic context not found")

	// ========== 报告相关错误 ==========

	// ErrReportingDisabled 表示未配置上报端点，客户端处于禁用状态
	ErrReportingDisabled = errors.New("reporting disabled: no endpoint configured")
	// ErrReportSuppressed 表示预期错误按策略被抑制，未产生传输调用
	ErrReportSuppressed = errors.New("report suppressed")

	// ========== 传输相关错误 ==========

	// ErrInvalidDSN 表示上报端点 DSN 格式无效
	ErrInvalidDSN = errors.New("invalid reporting DSN")
	// ErrTransportClosed 表示传输客户端已关闭
	ErrTransportClosed = errors.New("transport closed")
	// ErrQueueFull 表示异步传输队列已满，报告被丢弃
	ErrQueueFull = errors.New("transport queue is full")

	// ========== 中继服务相关错误 ==========

	// ErrReportNotFound 表示请求的报告记录不存在
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidEnvelope 表示报告信封负载无法解析
	ErrInvalidEnvelope = errors.New("invalid report envelope")
	// ErrUnauthorized 表示中继请求未通过认证
	ErrUnauthorized = errors.New("unauthorized")
)
