package lifecycle

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/enrich"
	"github.com/oriys/faultline/internal/report"
	"github.com/oriys/faultline/internal/store"
)

// spyTransport 记录派发的报告。
type spyTransport struct {
	mu   sync.Mutex
	sent []*domain.Report
}

func (s *spyTransport) Send(ctx context.Context, rep *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, rep)
	return nil
}

func (s *spyTransport) Close() error { return nil }

func (s *spyTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testAdapter(t *testing.T, disabled bool) (*Adapter, *store.ContextStore, *spyTransport) {
	t.Helper()
	contexts := store.New()
	enricher, err := enrich.New(nil, nil)
	if err != nil {
		t.Fatalf("enrich.New failed: %v", err)
	}
	spy := &spyTransport{}
	reporter := report.New(contexts, spy, true, nil, quietLogger())
	return New(contexts, enricher, reporter, nil, quietLogger(), disabled), contexts, spy
}

func testWorkerContext() *domain.WorkerContext {
	return &domain.WorkerContext{
		ServiceName: "orders",
		EntryPoint:  &domain.EntryPoint{MethodName: "create_order"},
		CallID:      "call-1",
		ContextData: map[string]string{
			"user_id": "u-9",
			"call_id": "call-1",
		},
	}
}

func TestLifecycleFailurePath(t *testing.T) {
	a, contexts, spy := testAdapter(t, false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	if contexts.Len() != 1 {
		t.Fatal("entry must create the diagnostic context")
	}

	a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))

	if len(spy.sent) != 1 {
		t.Fatalf("sent %d reports, want 1", len(spy.sent))
	}
	rep := spy.sent[0]
	if rep.User["user_id"] != "u-9" {
		t.Error("user facet missing from report")
	}
	if rep.Tags["call_id"] != "call-1" || rep.Tags["service_name"] != "orders" {
		t.Errorf("tags facet wrong: %v", rep.Tags)
	}
	if rep.Extra["exc"] != "boom" {
		t.Errorf("extra facet wrong: %v", rep.Extra)
	}

	a.OnTeardown(wc)
	if contexts.Len() != 0 {
		t.Error("teardown must discard the context")
	}
}

func TestLifecycleSuccessPath(t *testing.T) {
	a, contexts, spy := testAdapter(t, false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	a.OnCompletion(context.Background(), wc, "result", nil)
	a.OnTeardown(wc)

	if len(spy.sent) != 0 {
		t.Error("successful units must never produce a report")
	}
	if contexts.Len() != 0 {
		t.Error("teardown must always discard, success included")
	}
}

func TestLifecycleHTTPRequestFacet(t *testing.T) {
	a, _, spy := testAdapter(t, false)

	req := httptest.NewRequest("GET", "http://svc.test/orders/1", nil)
	wc := testWorkerContext()
	wc.EntryPoint.HTTP = true
	wc.Request = req

	a.OnEntry(wc, wc)
	a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))

	if len(spy.sent) != 1 {
		t.Fatal("want one report")
	}
	if spy.sent[0].Request["method"] != "GET" {
		t.Errorf("request facet not captured at entry: %v", spy.sent[0].Request)
	}
}

func TestLifecycleHandle(t *testing.T) {
	a, _, spy := testAdapter(t, false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	h := a.Handle(wc)
	h.SetTag("region", "eu")
	h.SetExtra("attempt", 3)
	h.AddBreadcrumb("db", "query issued", map[string]any{"table": "orders"})

	a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))

	rep := spy.sent[0]
	if rep.Tags["region"] != "eu" {
		t.Error("caller tag missing from report")
	}
	if rep.Extra["attempt"] != 3 {
		t.Error("caller extra missing from report")
	}
	found := false
	for _, b := range rep.Breadcrumbs {
		if b.Category == "db" && strings.Contains(b.Message, "query") {
			found = true
		}
	}
	if !found {
		t.Error("caller breadcrumb missing from report")
	}
}

func TestLifecycleTeardownWithoutCompletion(t *testing.T) {
	a, contexts, spy := testAdapter(t, false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	a.OnTeardown(wc)

	if contexts.Len() != 0 {
		t.Error("teardown must discard even when completion never ran")
	}
	if len(spy.sent) != 0 {
		t.Error("no completion means no report")
	}
}

func TestLifecycleCompletionWithoutEntry(t *testing.T) {
	a, contexts, spy := testAdapter(t, false)
	wc := testWorkerContext()

	// 进入阶段缺失属于内部缺陷，适配器必须吞掉而非波及运行时
	a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))
	a.OnTeardown(wc)

	if len(spy.sent) != 0 {
		t.Error("completion without entry must not report")
	}
	if contexts.Len() != 0 {
		t.Error("teardown must still leave the store clean")
	}
}

func TestLifecycleDisabled(t *testing.T) {
	a, contexts, spy := testAdapter(t, true)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	h := a.Handle(wc)
	h.SetTag("region", "eu")
	h.AddBreadcrumb("db", "query", nil)
	a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))
	a.OnTeardown(wc)

	if contexts.Len() != 0 {
		t.Error("disabled adapter must not accumulate contexts")
	}
	if len(spy.sent) != 0 {
		t.Error("disabled adapter must not report")
	}
}

func TestLifecycleConcurrentUnits(t *testing.T) {
	a, contexts, spy := testAdapter(t, false)

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			wc := testWorkerContext()
			wc.CallID = wc.CallID + "-" + string(rune('a'+i))
			a.OnEntry(wc, wc)
			if i%2 == 0 {
				a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))
			} else {
				a.OnCompletion(context.Background(), wc, "ok", nil)
			}
			a.OnTeardown(wc)
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	if contexts.Len() != 0 {
		t.Errorf("live contexts = %d after all teardowns, want 0", contexts.Len())
	}
	if spy.count() != 10 {
		t.Errorf("sent %d reports, want 10 (one per failing unit)", spy.count())
	}
}

// panicTransport 在派发时崩溃。
type panicTransport struct{}

func (panicTransport) Send(context.Context, *domain.Report) error { panic("transport down") }
func (panicTransport) Close() error                               { return nil }

func TestLifecycleInternalPanicsAbsorbed(t *testing.T) {
	contexts := store.New()
	// enricher 为 nil，完成阶段的切面提取会空指针崩溃；
	// 传输在派发时崩溃，报告阶段同样出错
	reporter := report.New(contexts, panicTransport{}, true, nil, quietLogger())
	a := New(contexts, nil, reporter, nil, quietLogger(), false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.Fatalf("completion must not propagate internal panics, got %v", rec)
			}
		}()
		a.OnCompletion(context.Background(), wc, nil, errors.New("boom"))
	}()

	a.OnTeardown(wc)
	if contexts.Len() != 0 {
		t.Errorf("teardown must discard the context, %d live entries", contexts.Len())
	}
}

func TestLifecycleHandleAfterTeardown(t *testing.T) {
	a, contexts, _ := testAdapter(t, false)
	wc := testWorkerContext()

	a.OnEntry(wc, wc)
	h := a.Handle(wc)
	a.OnTeardown(wc)

	h.SetTag("late", "v")
	h.SetExtra("late", "v")
	h.AddBreadcrumb("db", "late write", nil)

	if contexts.Len() != 0 {
		t.Errorf("writes after teardown must not recreate the context, %d live entries", contexts.Len())
	}
}
