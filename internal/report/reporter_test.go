package report

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/store"
)

// spyTransport 记录交给它的报告，可按需注入投递错误。
type spyTransport struct {
	sent    []*domain.Report
	sendErr error
}

func (s *spyTransport) Send(ctx context.Context, rep *domain.Report) error {
	s.sent = append(s.sent, rep)
	return s.sendErr
}

func (s *spyTransport) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testWorkerContext(expected ...error) *domain.WorkerContext {
	return &domain.WorkerContext{
		ServiceName: "orders",
		EntryPoint:  &domain.EntryPoint{MethodName: "create_order", Expected: expected},
		CallID:      "call-7",
	}
}

func TestReportBuildsEnvelope(t *testing.T) {
	contexts := store.New()
	spy := &spyTransport{}
	r := New(contexts, spy, true, nil, quietLogger())

	wc := testWorkerContext()
	contexts.Merge(wc, domain.FacetTags, map[string]any{"call_id": "call-7"})
	contexts.Merge(wc, domain.FacetUser, map[string]any{"user_id": "u1"})
	contexts.AppendBreadcrumb(wc, domain.Breadcrumb{Message: "step"})

	cause := errors.New("db timeout")
	if err := r.Report(context.Background(), wc, wc, cause); err != nil {
		t.Fatalf("Report returned %v", err)
	}

	if len(spy.sent) != 1 {
		t.Fatalf("sent %d reports, want exactly 1", len(spy.sent))
	}
	rep := spy.sent[0]

	if rep.EventID == "" {
		t.Error("report must carry an event id")
	}
	if rep.Message != "Unhandled exception in call call-7: errorString db timeout" {
		t.Errorf("message = %q", rep.Message)
	}
	if rep.Logger != "orders.create_order" {
		t.Errorf("logger = %q", rep.Logger)
	}
	if rep.Level != domain.SeverityError {
		t.Errorf("level = %v, unexpected errors map to ERROR", rep.Level)
	}
	if rep.User["user_id"] != "u1" || rep.Tags["call_id"] != "call-7" {
		t.Error("accumulated facets missing from report")
	}
	if len(rep.Breadcrumbs) != 1 {
		t.Errorf("breadcrumbs = %d, want 1", len(rep.Breadcrumbs))
	}
	if rep.Exception.Message != "db timeout" {
		t.Errorf("exception message = %q", rep.Exception.Message)
	}
}

func TestReportExpectedWarningLevel(t *testing.T) {
	notFound := errors.New("not found")
	contexts := store.New()
	spy := &spyTransport{}
	r := New(contexts, spy, true, nil, quietLogger())

	wc := testWorkerContext(notFound)
	contexts.GetOrCreate(wc)

	if err := r.Report(context.Background(), wc, wc, notFound); err != nil {
		t.Fatalf("Report returned %v", err)
	}
	if len(spy.sent) != 1 {
		t.Fatalf("expected errors report when policy allows, sent %d", len(spy.sent))
	}
	if spy.sent[0].Level != domain.SeverityWarning {
		t.Errorf("level = %v, expected errors map to WARNING", spy.sent[0].Level)
	}
}

func TestReportSuppressedByPolicy(t *testing.T) {
	notFound := errors.New("not found")
	contexts := store.New()
	spy := &spyTransport{}
	r := New(contexts, spy, false, nil, quietLogger())

	wc := testWorkerContext(notFound)
	contexts.GetOrCreate(wc)

	err := r.Report(context.Background(), wc, wc, notFound)
	if !errors.Is(err, domain.ErrReportSuppressed) {
		t.Errorf("Report = %v, want ErrReportSuppressed", err)
	}
	if len(spy.sent) != 0 {
		t.Error("suppressed reports must never reach the transport")
	}

	// 非预期错误不受策略影响
	if err := r.Report(context.Background(), wc, wc, errors.New("crash")); err != nil {
		t.Fatalf("Report returned %v", err)
	}
	if len(spy.sent) != 1 {
		t.Error("unexpected errors must still be reported under report_expected=false")
	}
}

func TestReportDegradedOnMissingContext(t *testing.T) {
	contexts := store.New()
	spy := &spyTransport{}
	r := New(contexts, spy, true, nil, quietLogger())

	wc := testWorkerContext()
	// 故意不创建上下文
	if err := r.Report(context.Background(), "missing-key", wc, errors.New("boom")); err != nil {
		t.Fatalf("Report returned %v", err)
	}

	if len(spy.sent) != 1 {
		t.Fatal("degraded path must still produce a report")
	}
	rep := spy.sent[0]
	if len(rep.Tags) != 0 || len(rep.User) != 0 {
		t.Error("degraded report must carry empty facets")
	}
	if !strings.Contains(rep.Message, "call-7") {
		t.Error("degraded report must keep the deterministic message")
	}
}

func TestReportTransportErrorNotPropagated(t *testing.T) {
	contexts := store.New()
	spy := &spyTransport{sendErr: errors.New("connection refused")}
	r := New(contexts, spy, true, nil, quietLogger())

	wc := testWorkerContext()
	contexts.GetOrCreate(wc)

	if err := r.Report(context.Background(), wc, wc, errors.New("boom")); err != nil {
		t.Errorf("delivery failures must stay local, got %v", err)
	}
}
