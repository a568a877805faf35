// Package lifecycle 提供宿主运行时生命周期钩子到诊断管道的适配。
// 宿主运行时在每个工作单元前后调用 OnEntry / OnCompletion / OnTeardown，
// 适配器据此驱动切面富化、上下文仓库与报告派发。
//
// 每个工作单元经历线性状态机 ENTERED → COMPLETED → TORN_DOWN。
// 任何富化或上报阶段抛出的内部故障都被就地吸收：拆除阶段始终执行，
// 业务调用方看到的结果与错误永远不会被本层改变。
package lifecycle

import (
	"context"
	"sync"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/enrich"
	"github.com/oriys/faultline/internal/metrics"
	"github.com/oriys/faultline/internal/report"
	"github.com/oriys/faultline/internal/store"
	"github.com/sirupsen/logrus"
)

// State 表示工作单元在适配器中的生命周期状态。
type State int

// 生命周期状态常量定义
const (
	// StateEntered 表示工作单元已进入，request 切面已采集
	StateEntered State = iota
	// StateCompleted 表示工作单元已完成（成功或失败均含）
	StateCompleted
	// StateTornDown 表示工作单元已拆除，上下文已丢弃
	StateTornDown
)

// unit 记录一个存活工作单元的调用快照与状态。
type unit struct {
	wc    *domain.WorkerContext
	state State
}

// Adapter 是运行时生命周期钩子的诊断适配器。
// 单个 Adapter 实例被任意数量并发执行的工作单元共享。
type Adapter struct {
	contexts *store.ContextStore
	enricher *enrich.Enricher
	reporter *report.Reporter
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	// disabled 为 true 时所有钩子退化为无操作（未配置上报端点）
	disabled bool

	mu    sync.Mutex
	units map[domain.UnitKey]*unit
}

// New 创建生命周期适配器。
// disabled 为 true 时适配器不采集任何上下文、不产生任何报告。
func New(contexts *store.ContextStore, enricher *enrich.Enricher, reporter *report.Reporter, m *metrics.Metrics, logger *logrus.Logger, disabled bool) *Adapter {
	return &Adapter{
		contexts: contexts,
		enricher: enricher,
		reporter: reporter,
		metrics:  m,
		logger:   logger,
		disabled: disabled,
		units:    make(map[domain.UnitKey]*unit),
	}
}

// OnEntry 在工作单元进入时调用。
// 惰性创建诊断上下文并采集 request 切面（此时结果尚未可知，
// 成败都会被捕获）。
func (a *Adapter) OnEntry(key domain.UnitKey, wc *domain.WorkerContext) {
	if a.disabled {
		return
	}

	a.mu.Lock()
	a.units[key] = &unit{wc: wc, state: StateEntered}
	a.mu.Unlock()

	a.contexts.GetOrCreate(key)
	a.safeMerge(key, domain.FacetRequest, func() map[string]any {
		return enrich.RequestFacet(wc)
	})
	a.updateLiveContexts()
}

// OnCompletion 在工作单元完成时调用。
// 无错误时不做任何进一步处理；有错误时按固定顺序运行
// user/tags/extra 富化（确定性合并优先级），然后派发报告。
// 任一阶段的内部故障都不会阻止后续拆除，也不会传播给运行时。
func (a *Adapter) OnCompletion(ctx context.Context, key domain.UnitKey, result any, cause error) {
	if a.disabled {
		return
	}

	a.mu.Lock()
	u, ok := a.units[key]
	if ok {
		u.state = StateCompleted
	}
	a.mu.Unlock()

	if cause == nil {
		return
	}
	if !ok {
		// 进入阶段缺失属于内部缺陷，记录后尽力而为
		a.logger.WithField("key", key).Warn("Completion without entry, skipping report")
		return
	}

	a.safeMerge(key, domain.FacetUser, func() map[string]any {
		return a.enricher.UserFacet(u.wc)
	})
	a.safeMerge(key, domain.FacetTags, func() map[string]any {
		return a.enricher.TagsFacet(u.wc)
	})
	a.safeMerge(key, domain.FacetExtra, func() map[string]any {
		return a.enricher.ExtraFacet(u.wc, cause)
	})

	a.safeReport(ctx, key, u.wc, cause)
}

// OnTeardown 在工作单元拆除时调用。
// 无论完成阶段成功、失败或适配器自身出错，都必须恰好调用一次；
// 上下文条目在此被丢弃，不会跨调用泄漏。
func (a *Adapter) OnTeardown(key domain.UnitKey) {
	if a.disabled {
		return
	}

	a.contexts.Discard(key)

	a.mu.Lock()
	if u, ok := a.units[key]; ok {
		u.state = StateTornDown
	}
	delete(a.units, key)
	a.mu.Unlock()

	a.updateLiveContexts()
}

// safeMerge 运行一个切面提取器并合并结果，吸收一切 panic。
// 失败的提取器只让自己的切面留空，不中断管道。
func (a *Adapter) safeMerge(key domain.UnitKey, facet domain.Facet, extract func() map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.WithFields(logrus.Fields{
				"facet": string(facet),
				"panic": rec,
			}).Warn("Facet enrichment failed")
			if a.metrics != nil {
				a.metrics.RecordEnrichFailure(string(facet))
			}
		}
	}()

	if err := a.contexts.Merge(key, facet, extract()); err != nil {
		a.logger.WithError(err).WithField("facet", string(facet)).Warn("Facet merge rejected")
		if a.metrics != nil {
			a.metrics.RecordEnrichFailure(string(facet))
		}
	}
}

// safeReport 派发报告，吸收一切 panic。
func (a *Adapter) safeReport(ctx context.Context, key domain.UnitKey, wc *domain.WorkerContext, cause error) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.WithFields(logrus.Fields{
				"call_id": wc.CallID,
				"panic":   rec,
			}).Error("Reporter panicked, report lost")
		}
	}()
	a.reporter.Report(ctx, key, wc, cause)
}

// alive 报告键对应的工作单元是否处于进入与拆除之间的存活区间。
func (a *Adapter) alive(key domain.UnitKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.units[key]
	return ok
}

// updateLiveContexts 上报当前存活的上下文条目数。
func (a *Adapter) updateLiveContexts() {
	if a.metrics != nil {
		a.metrics.LiveContexts.Set(float64(a.contexts.Len()))
	}
}
