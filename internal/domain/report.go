package domain

import (
	"fmt"
	"time"
)

// Severity 表示报告的严重级别。
type Severity string

// 严重级别常量定义
const (
	// SeverityWarning 表示预期错误产生的报告
	SeverityWarning Severity = "warning"
	// SeverityError 表示非预期错误（缺陷）产生的报告
	SeverityError Severity = "error"
)

// ExceptionRecord 是错误的可序列化记录。
// 仅包含渲染错误所需的结构化数据，不嵌入任何存活资源。
type ExceptionRecord struct {
	// Type 是错误的运行时类型名
	Type string `json:"type"`
	// Message 是错误消息文本
	Message string `json:"message"`
}

// NewExceptionRecord 从错误值构建异常记录。
func NewExceptionRecord(err error) ExceptionRecord {
	if err == nil {
		return ExceptionRecord{}
	}
	return ExceptionRecord{
		Type:    ErrorTypeName(err),
		Message: err.Error(),
	}
}

// Report 是发送给传输客户端的最终不可变结构。
// 每个被接受的失败恰好产生一份报告，合并了该工作单元累积的全部诊断上下文。
type Report struct {
	// EventID 是报告的唯一标识
	EventID string `json:"event_id"`
	// Timestamp 是报告组装时间
	Timestamp time.Time `json:"timestamp"`
	// Message 是确定性格式的人类可读消息
	// 格式: "Unhandled exception in call {call_id}: {Type} {message}"
	Message string `json:"message"`
	// Logger 是报告来源标识，格式 "{service}.{entrypoint}"
	Logger string `json:"logger"`
	// Level 是严重级别（warning 或 error）
	Level Severity `json:"level"`
	// ServiceName 是所属服务名称
	ServiceName string `json:"service_name"`
	// Request 是入站请求快照切面
	Request map[string]any `json:"request"`
	// User 是调用方身份切面
	User map[string]any `json:"user"`
	// Tags 是路由与标签切面
	Tags map[string]any `json:"tags"`
	// Extra 是自由格式附加数据切面
	Extra map[string]any `json:"extra"`
	// Breadcrumbs 是按时间有序的面包屑轨迹
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
	// Exception 是触发报告的异常记录
	Exception ExceptionRecord `json:"exception"`
}

// FormatMessage 按确定性格式渲染报告消息。
// 格式与字段顺序是对外契约的一部分，测试依赖其精确形状。
func FormatMessage(callID string, err error) string {
	return fmt.Sprintf("Unhandled exception in call %s: %s %s",
		callID, ErrorTypeName(err), errMessage(err))
}

// LoggerName 按 "{service}.{entrypoint}" 组合报告来源标识。
func LoggerName(serviceName, methodName string) string {
	return serviceName + "." + methodName
}

// errMessage 返回错误消息，nil 错误返回空字符串。
func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
