package enrich

import (
	"sync/atomic"

	"github.com/oriys/faultline/internal/domain"
)

// Enricher 持有失败后切面提取所需的可热替换匹配模式。
// user/tags 模式列表通过原子指针持有，可在运行期被配置热更新
// 整体替换，替换对并发执行的提取调用立即可见且无撕裂。
type Enricher struct {
	user atomic.Pointer[Matchers]
	tags atomic.Pointer[Matchers]
}

// New 创建切面提取器。
// 空的模式列表回退到默认模式。
func New(userExprs, tagExprs []string) (*Enricher, error) {
	e := &Enricher{}
	if err := e.SetPatterns(userExprs, tagExprs); err != nil {
		return nil, err
	}
	return e, nil
}

// SetPatterns 整体替换 user/tags 匹配模式。
// 任一列表编译失败时不做任何替换，既有模式保持生效。
func (e *Enricher) SetPatterns(userExprs, tagExprs []string) error {
	if len(userExprs) == 0 {
		userExprs = DefaultUserPatterns
	}
	if len(tagExprs) == 0 {
		tagExprs = DefaultTagPatterns
	}
	user, err := CompileMatchers(userExprs)
	if err != nil {
		return err
	}
	tags, err := CompileMatchers(tagExprs)
	if err != nil {
		return err
	}
	e.user.Store(user)
	e.tags.Store(tags)
	return nil
}

// UserFacet 从上下文数据包提取调用方身份切面。
// 键名命中 user 模式的键值对原样复制，仅在观察到失败后调用。
func (e *Enricher) UserFacet(wc *domain.WorkerContext) map[string]any {
	facet := make(map[string]any)
	if wc == nil {
		return facet
	}
	matchers := e.user.Load()
	for k, v := range wc.ContextData {
		if matchers.Match(k) {
			facet[k] = v
		}
	}
	return facet
}

// TagsFacet 构建路由与标签切面。
// 固定包含 call_id、parent_call_id、service_name、method_name，
// 另将上下文数据包中键名命中 tags 模式的键值对并入。
// 顶层调用的 parent_call_id 为 nil。
func (e *Enricher) TagsFacet(wc *domain.WorkerContext) map[string]any {
	facet := make(map[string]any)
	if wc == nil {
		return facet
	}
	var parent any
	if wc.ParentCallID != "" {
		parent = wc.ParentCallID
	}
	facet["call_id"] = wc.CallID
	facet["parent_call_id"] = parent
	facet["service_name"] = wc.ServiceName
	facet["method_name"] = wc.Method()

	matchers := e.tags.Load()
	for k, v := range wc.ContextData {
		if matchers.Match(k) {
			facet[k] = v
		}
	}
	return facet
}

// ExtraFacet 构建自由格式附加数据切面。
// 上下文数据包被原样整体复制，另附渲染后的错误文本（键 "exc"）。
func (e *Enricher) ExtraFacet(wc *domain.WorkerContext, err error) map[string]any {
	facet := make(map[string]any)
	if wc != nil {
		for k, v := range wc.ContextData {
			facet[k] = v
		}
	}
	if err != nil {
		facet["exc"] = err.Error()
	}
	return facet
}
