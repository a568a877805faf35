package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type validationError struct {
	field string
}

func (e *validationError) Error() string {
	return "invalid field: " + e.field
}

func TestIsExpected(t *testing.T) {
	sentinel := errors.New("not found")
	ep := &EntryPoint{
		MethodName: "get_user",
		Expected:   []error{sentinel},
		ExpectedMatch: []ErrorMatcher{
			func(err error) bool {
				var ve *validationError
				return errors.As(err, &ve)
			},
		},
	}

	tests := []struct {
		name string
		ep   *EntryPoint
		err  error
		want bool
	}{
		{"sentinel direct", ep, sentinel, true},
		{"sentinel wrapped", ep, fmt.Errorf("lookup: %w", sentinel), true},
		{"matcher hit", ep, &validationError{field: "email"}, true},
		{"unrelated error", ep, errors.New("boom"), false},
		{"nil error", ep, nil, false},
		{"nil entrypoint", nil, sentinel, false},
		{"empty expected set", &EntryPoint{MethodName: "m"}, sentinel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.IsExpected(tt.err); got != tt.want {
				t.Errorf("IsExpected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorTypeName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"stdlib error", errors.New("boom"), "errorString"},
		{"pointer type dereferenced", &validationError{field: "x"}, "validationError"},
		{"wrapped error keeps outer type", fmt.Errorf("ctx: %w", errors.New("inner")), "wrapError"},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeName(tt.err); got != tt.want {
				t.Errorf("ErrorTypeName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatMessage(t *testing.T) {
	err := errors.New("connection refused")
	got := FormatMessage("abc-123", err)
	want := "Unhandled exception in call abc-123: errorString connection refused"
	if got != want {
		t.Errorf("FormatMessage() = %q, want %q", got, want)
	}
}

func TestLoggerName(t *testing.T) {
	if got := LoggerName("orders", "create_order"); got != "orders.create_order" {
		t.Errorf("LoggerName() = %q", got)
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	d := NewDiagnosticContext()

	if err := d.Merge(FacetTags, map[string]any{"call_id": "a", "region": "eu"}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := d.Merge(FacetTags, map[string]any{"call_id": "b"}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if d.Tags["call_id"] != "b" {
		t.Errorf("call_id = %v, want b (last write wins)", d.Tags["call_id"])
	}
	if d.Tags["region"] != "eu" {
		t.Errorf("region = %v, untouched keys must survive", d.Tags["region"])
	}
}

func TestMergeFacetsIsolated(t *testing.T) {
	d := NewDiagnosticContext()
	d.Merge(FacetUser, map[string]any{"k": "user-val"})
	d.Merge(FacetExtra, map[string]any{"k": "extra-val"})

	if d.User["k"] != "user-val" || d.Extra["k"] != "extra-val" {
		t.Error("facets must never overwrite each other")
	}
}

func TestMergeUnknownFacet(t *testing.T) {
	d := NewDiagnosticContext()
	if err := d.Merge("bogus", map[string]any{"k": "v"}); !errors.Is(err, ErrUnknownFacet) {
		t.Errorf("Merge unknown facet = %v, want ErrUnknownFacet", err)
	}
}

func TestAddBreadcrumbTimestamp(t *testing.T) {
	d := NewDiagnosticContext()
	d.AddBreadcrumb(Breadcrumb{Message: "first"})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.AddBreadcrumb(Breadcrumb{Message: "second", Timestamp: fixed})

	if len(d.Breadcrumbs) != 2 {
		t.Fatalf("breadcrumb count = %d, want 2", len(d.Breadcrumbs))
	}
	if d.Breadcrumbs[0].Timestamp.IsZero() {
		t.Error("missing timestamp must be auto-filled")
	}
	if !d.Breadcrumbs[1].Timestamp.Equal(fixed) {
		t.Error("explicit timestamp must be preserved")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	d := NewDiagnosticContext()
	d.Merge(FacetTags, map[string]any{"call_id": "a"})
	d.AddBreadcrumb(Breadcrumb{Message: "before"})

	_, _, tags, _, crumbs := d.Snapshot()

	d.Merge(FacetTags, map[string]any{"call_id": "mutated"})
	d.AddBreadcrumb(Breadcrumb{Message: "after"})

	if tags["call_id"] != "a" {
		t.Error("snapshot must not observe later merges")
	}
	if len(crumbs) != 1 {
		t.Errorf("snapshot crumbs = %d, want 1", len(crumbs))
	}
}

func TestWorkerContextMethod(t *testing.T) {
	wc := &WorkerContext{EntryPoint: &EntryPoint{MethodName: "pay"}}
	if wc.Method() != "pay" {
		t.Errorf("Method() = %q", wc.Method())
	}
	empty := &WorkerContext{}
	if empty.Method() != "" {
		t.Error("missing entrypoint must yield empty method name")
	}
	var nilCtx *WorkerContext
	if nilCtx.Method() != "" {
		t.Error("nil context must yield empty method name")
	}
}
