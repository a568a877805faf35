// Package store 提供按工作单元键隔离的诊断上下文仓库。
// 仓库是诊断层中唯一被并发访问的共享可变状态：
// 不同工作单元通过各自的键读写互不阻塞的上下文条目，
// 同一工作单元的操作由生命周期适配器顺序化。
package store

import (
	"sync"

	"github.com/oriys/faultline/internal/domain"
)

// ContextStore 是并发安全的诊断上下文仓库。
// 以工作单元键索引，每个存活的工作单元恰好对应一个上下文条目，
// 条目在首次访问时惰性创建，在拆除阶段移除，不会跨调用泄漏。
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[domain.UnitKey]*domain.DiagnosticContext
}

// New 创建一个空的上下文仓库。
func New() *ContextStore {
	return &ContextStore{
		contexts: make(map[domain.UnitKey]*domain.DiagnosticContext),
	}
}

// GetOrCreate 返回键对应的诊断上下文，不存在时创建空上下文。
// 同一键在其生命周期内重复调用是幂等的，返回同一实例。
func (s *ContextStore) GetOrCreate(key domain.UnitKey) *domain.DiagnosticContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.contexts[key]; ok {
		return ctx
	}
	ctx := domain.NewDiagnosticContext()
	s.contexts[key] = ctx
	return ctx
}

// Get 返回键对应的诊断上下文，不存在时返回 ErrContextNotFound。
func (s *ContextStore) Get(key domain.UnitKey) (*domain.DiagnosticContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[key]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	return ctx, nil
}

// Merge 将键值按浅层并集规则合并进指定上下文的命名切面。
// 上下文不存在时先创建。未知切面名返回 ErrUnknownFacet。
func (s *ContextStore) Merge(key domain.UnitKey, facet domain.Facet, values map[string]any) error {
	return s.GetOrCreate(key).Merge(facet, values)
}

// AppendBreadcrumb 向指定上下文追加一条面包屑。
// 上下文不存在时先创建。
func (s *ContextStore) AppendBreadcrumb(key domain.UnitKey, b domain.Breadcrumb) {
	s.GetOrCreate(key).AddBreadcrumb(b)
}

// Discard 移除键对应的上下文条目。
// 键不存在时为无操作，可安全重复调用。
func (s *ContextStore) Discard(key domain.UnitKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, key)
}

// Len 返回当前存活的上下文条目数。
// 用于指标上报与泄漏检测。
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
