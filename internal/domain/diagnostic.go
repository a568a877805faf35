package domain

import "time"

// Facet 表示诊断上下文中的一个命名切面类别。
type Facet string

// 切面类别常量定义
const (
	// FacetRequest 是入站请求快照切面
	FacetRequest Facet = "request"
	// FacetUser 是调用方身份切面
	FacetUser Facet = "user"
	// FacetTags 是路由与标签切面
	FacetTags Facet = "tags"
	// FacetExtra 是自由格式附加数据切面
	FacetExtra Facet = "extra"
)

// Breadcrumb 表示工作单元执行期间记录的一条带时间戳的诊断事件。
// 面包屑按发生顺序追加，最终随报告一并上送，用于还原失败前的因果轨迹。
type Breadcrumb struct {
	// Timestamp 是事件发生时间
	Timestamp time.Time `json:"timestamp"`
	// Category 是事件分类，如 "db"、"rpc"、"cache"
	Category string `json:"category,omitempty"`
	// Message 是事件描述
	Message string `json:"message"`
	// Data 是事件附带的自由格式负载
	Data map[string]any `json:"data,omitempty"`
}

// DiagnosticContext 是每个工作单元独享的可变诊断累加器。
// 包含四个命名切面（request/user/tags/extra）和一条有序只追加的面包屑序列。
//
// 合并语义：切面更新与既有切面做浅层键并集，同切面内同名新键覆盖旧键，
// 切面之间永不互相覆盖。
//
// 单个上下文的写入由生命周期适配器顺序化，因此结构体本身不加锁；
// 并发安全由上下文仓库在 map 层面保证。
type DiagnosticContext struct {
	// Request 是入站请求快照切面
	Request map[string]any `json:"request"`
	// User 是调用方身份切面
	User map[string]any `json:"user"`
	// Tags 是路由与标签切面
	Tags map[string]any `json:"tags"`
	// Extra 是自由格式附加数据切面
	Extra map[string]any `json:"extra"`
	// Breadcrumbs 是按时间有序的面包屑序列
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
}

// NewDiagnosticContext 创建一个空的诊断上下文。
// 所有切面初始化为空 map，面包屑序列为空。
func NewDiagnosticContext() *DiagnosticContext {
	return &DiagnosticContext{
		Request: make(map[string]any),
		User:    make(map[string]any),
		Tags:    make(map[string]any),
		Extra:   make(map[string]any),
	}
}

// facet 按名称返回切面 map，未知名称返回 nil。
func (d *DiagnosticContext) facet(name Facet) map[string]any {
	switch name {
	case FacetRequest:
		return d.Request
	case FacetUser:
		return d.User
	case FacetTags:
		return d.Tags
	case FacetExtra:
		return d.Extra
	default:
		return nil
	}
}

// Merge 将给定键值按浅层并集规则合并进命名切面。
// 同名键以最近一次合并的值为准（last-write-wins）。
// 未知切面名返回 ErrUnknownFacet，nil 或空的更新为无操作。
func (d *DiagnosticContext) Merge(name Facet, values map[string]any) error {
	target := d.facet(name)
	if target == nil {
		return ErrUnknownFacet
	}
	for k, v := range values {
		target[k] = v
	}
	return nil
}

// AddBreadcrumb 追加一条面包屑。
// 未设置时间戳的条目自动填充当前时间。
func (d *DiagnosticContext) AddBreadcrumb(b Breadcrumb) {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	d.Breadcrumbs = append(d.Breadcrumbs, b)
}

// Snapshot 返回各切面与面包屑序列的浅拷贝。
// 报告组装时使用，保证后续对上下文的修改不会污染已构建的报告。
func (d *DiagnosticContext) Snapshot() (request, user, tags, extra map[string]any, crumbs []Breadcrumb) {
	request = copyFacet(d.Request)
	user = copyFacet(d.User)
	tags = copyFacet(d.Tags)
	extra = copyFacet(d.Extra)
	crumbs = make([]Breadcrumb, len(d.Breadcrumbs))
	copy(crumbs, d.Breadcrumbs)
	return request, user, tags, extra, crumbs
}

// copyFacet 返回切面 map 的浅拷贝，nil 输入返回空 map。
func copyFacet(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
