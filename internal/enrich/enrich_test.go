package enrich

import (
	"errors"
	"testing"

	"github.com/oriys/faultline/internal/domain"
)

func testWorkerContext() *domain.WorkerContext {
	return &domain.WorkerContext{
		ServiceName: "orders",
		EntryPoint:  &domain.EntryPoint{MethodName: "create_order"},
		CallID:      "call-123",
		ContextData: map[string]string{
			"user_id":    "u-42",
			"user_email": "a@b.example",
			"session":    "s-9",
			"locale":     "en",
			"call_id":    "call-123",
		},
	}
}

func TestUserFacetDefaults(t *testing.T) {
	e, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	facet := e.UserFacet(testWorkerContext())

	for _, key := range []string{"user_id", "user_email", "session"} {
		if _, ok := facet[key]; !ok {
			t.Errorf("user facet missing %q", key)
		}
	}
	if _, ok := facet["locale"]; ok {
		t.Error("locale must not match default user patterns")
	}
	if _, ok := facet["call_id"]; ok {
		t.Error("call_id must not match default user patterns")
	}
}

func TestTagsFacetShape(t *testing.T) {
	e, _ := New(nil, nil)
	wc := testWorkerContext()

	facet := e.TagsFacet(wc)

	if facet["call_id"] != "call-123" {
		t.Errorf("call_id = %v", facet["call_id"])
	}
	if facet["parent_call_id"] != nil {
		t.Errorf("top-level call must carry nil parent_call_id, got %v", facet["parent_call_id"])
	}
	if facet["service_name"] != "orders" || facet["method_name"] != "create_order" {
		t.Errorf("routing tags wrong: %v", facet)
	}
	// user_id 以 _id 结尾但不以 call_id 结尾，默认模式下不进 tags
	if _, ok := facet["user_id"]; ok {
		t.Error("user_id must not leak into tags under default patterns")
	}
}

func TestTagsFacetParentCallID(t *testing.T) {
	e, _ := New(nil, nil)
	wc := testWorkerContext()
	wc.ParentCallID = "parent-9"

	facet := e.TagsFacet(wc)
	if facet["parent_call_id"] != "parent-9" {
		t.Errorf("parent_call_id = %v", facet["parent_call_id"])
	}
}

func TestExtraFacet(t *testing.T) {
	e, _ := New(nil, nil)
	wc := testWorkerContext()
	cause := errors.New("payment declined")

	facet := e.ExtraFacet(wc, cause)

	// 上下文数据包原样整体复制
	for k, v := range wc.ContextData {
		if facet[k] != v {
			t.Errorf("extra[%q] = %v, want %v", k, facet[k], v)
		}
	}
	if facet["exc"] != "payment declined" {
		t.Errorf("exc = %v", facet["exc"])
	}
}

func TestCustomPatterns(t *testing.T) {
	e, err := New([]string{"^account_"}, []string{"^region$"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	wc := &domain.WorkerContext{
		ServiceName: "svc",
		EntryPoint:  &domain.EntryPoint{MethodName: "m"},
		CallID:      "c1",
		ContextData: map[string]string{
			"account_name": "acme",
			"user_id":      "u1",
			"region":       "eu-west",
		},
	}

	user := e.UserFacet(wc)
	if _, ok := user["account_name"]; !ok {
		t.Error("custom user pattern did not match")
	}
	if _, ok := user["user_id"]; ok {
		t.Error("default patterns must be replaced, not appended")
	}

	tags := e.TagsFacet(wc)
	if tags["region"] != "eu-west" {
		t.Error("custom tag pattern did not match")
	}
}

func TestSetPatternsAllOrNothing(t *testing.T) {
	e, _ := New([]string{"^good$"}, nil)
	if err := e.SetPatterns([]string{"[invalid"}, nil); err == nil {
		t.Fatal("SetPatterns must fail on an invalid pattern")
	}

	// 失败的替换不得影响既有模式
	wc := &domain.WorkerContext{
		ContextData: map[string]string{"good": "v"},
	}
	if _, ok := e.UserFacet(wc)["good"]; !ok {
		t.Error("previous patterns must stay in effect after a failed swap")
	}
}

func TestFacetsNilContext(t *testing.T) {
	e, _ := New(nil, nil)
	if len(e.UserFacet(nil)) != 0 {
		t.Error("nil context must yield empty user facet")
	}
	if len(e.TagsFacet(nil)) != 0 {
		t.Error("nil context must yield empty tags facet")
	}
	facet := e.ExtraFacet(nil, errors.New("x"))
	if facet["exc"] != "x" || len(facet) != 1 {
		t.Errorf("extra facet for nil context = %v", facet)
	}
}

func TestMatchersFirstMatchWins(t *testing.T) {
	m, err := CompileMatchers([]string{"^a", "b$"})
	if err != nil {
		t.Fatalf("CompileMatchers failed: %v", err)
	}
	if !m.Match("abc") || !m.Match("zzb") {
		t.Error("expected matches missed")
	}
	if m.Match("zzz") {
		t.Error("unexpected match")
	}
	var nilM *Matchers
	if nilM.Match("anything") {
		t.Error("nil matchers must match nothing")
	}
}
