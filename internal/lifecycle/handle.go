package lifecycle

import (
	"github.com/oriys/faultline/internal/domain"
)

// Handle 是暴露给运行中工作单元的诊断上下文门面。
// 业务代码可在完成之前通过它补充自己的标签、附加数据与面包屑。
// 所有写入都经由上下文仓库寻址到本工作单元的隔离条目。
// 工作单元拆除后的写入被丢弃，不会重新创建已移除的条目。
type Handle struct {
	adapter *Adapter
	key     domain.UnitKey
}

// Handle 返回指定工作单元的诊断门面。
func (a *Adapter) Handle(key domain.UnitKey) *Handle {
	return &Handle{adapter: a, key: key}
}

// SetTag 向本工作单元的 tags 切面写入一个键值。
func (h *Handle) SetTag(key string, value any) {
	h.merge(domain.FacetTags, map[string]any{key: value})
}

// SetExtra 向本工作单元的 extra 切面写入一个键值。
func (h *Handle) SetExtra(key string, value any) {
	h.merge(domain.FacetExtra, map[string]any{key: value})
}

// AddBreadcrumb 记录一条面包屑事件。
func (h *Handle) AddBreadcrumb(category, message string, data map[string]any) {
	a := h.adapter
	if a.disabled {
		return
	}
	if !a.alive(h.key) {
		a.logger.WithField("key", h.key).Warn("Breadcrumb after teardown, dropped")
		return
	}
	a.contexts.AppendBreadcrumb(h.key, domain.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
	})
}

// merge 在工作单元仍存活时合并一个切面键值，否则丢弃并记录。
func (h *Handle) merge(facet domain.Facet, values map[string]any) {
	a := h.adapter
	if a.disabled {
		return
	}
	if !a.alive(h.key) {
		a.logger.WithField("facet", string(facet)).Warn("Handle write after teardown, dropped")
		return
	}
	if err := a.contexts.Merge(h.key, facet, values); err != nil {
		a.logger.WithError(err).WithField("facet", string(facet)).Warn("Handle merge rejected")
	}
}
