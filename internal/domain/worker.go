package domain

import "net/http"

// UnitKey 是工作单元的唯一标识键。
// 该键用于在上下文仓库中索引隔离的诊断上下文，
// 必须可比较（可作 map 键），且在并发执行的调用间互不相同。
// 通常直接使用 *WorkerContext 指针或调用 ID 字符串。
type UnitKey = any

// WorkerContext 是运行时在工作单元进入时提供的只读调用快照。
// 它描述了一次入口点调用的全部静态信息：入口点描述符、调用参数、
// 关联 ID、调用方透传的上下文数据以及所属服务。
// 诊断层不修改该结构，仅从中派生诊断切面。
type WorkerContext struct {
	// ServiceName 是所属服务的名称
	ServiceName string `json:"service_name"`
	// EntryPoint 是被调用的入口点描述符
	EntryPoint *EntryPoint `json:"entry_point"`
	// CallID 是本次调用的关联 ID，全局唯一
	CallID string `json:"call_id"`
	// ParentCallID 是直接父调用的关联 ID，顶层调用为空
	ParentCallID string `json:"parent_call_id,omitempty"`
	// ContextData 是调用方透传的键值数据包
	// user/tags/extra 切面均从该数据包提取
	ContextData map[string]string `json:"context_data,omitempty"`
	// Args 是入口点的命名调用参数
	Args map[string]any `json:"args,omitempty"`
	// Request 是触发本次调用的 HTTP 请求，仅 HTTP 入口点存在
	Request *http.Request `json:"-"`
}

// Method 返回入口点方法名，入口点缺失时返回空字符串。
func (w *WorkerContext) Method() string {
	if w == nil || w.EntryPoint == nil {
		return ""
	}
	return w.EntryPoint.MethodName
}
