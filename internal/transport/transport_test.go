package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestHTTPTransportSend(t *testing.T) {
	var gotKey, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Faultline-Key")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dsn := strings.Replace(server.URL, "http://", "http://secret@", 1) + "/7"
	tr, err := NewHTTPTransport(dsn, HTTPOptions{}, quietLogger())
	if err != nil {
		t.Fatalf("NewHTTPTransport failed: %v", err)
	}
	defer tr.Close()

	rep := &domain.Report{EventID: "ev-1", Message: "boom", ServiceName: "orders"}
	if err := tr.Send(context.Background(), rep); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("key header = %q", gotKey)
	}
	if gotPath != "/api/7/store/" {
		t.Errorf("ingest path = %q", gotPath)
	}
	if !strings.Contains(string(gotBody), `"event_id":"ev-1"`) {
		t.Errorf("body = %s", gotBody)
	}
}

func TestHTTPTransportRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dsn := strings.Replace(server.URL, "http://", "http://k@", 1) + "/1"
	tr, _ := NewHTTPTransport(dsn, HTTPOptions{}, quietLogger())
	defer tr.Close()

	if err := tr.Send(context.Background(), &domain.Report{EventID: "e"}); err == nil {
		t.Error("non-2xx responses must surface as delivery errors")
	}
}

// blockingTransport 在收到放行信号前阻塞投递，用于制造队列堆积。
type blockingTransport struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []*domain.Report
}

func (b *blockingTransport) Send(ctx context.Context, rep *domain.Report) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, rep)
	return nil
}

func (b *blockingTransport) Close() error { return nil }

func (b *blockingTransport) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func TestAsyncTransportQueueFull(t *testing.T) {
	inner := &blockingTransport{release: make(chan struct{})}
	tr := NewAsyncTransport(inner, AsyncOptions{QueueSize: 2, Workers: 1}, quietLogger())

	// 让投递协程取走首份报告并阻塞，随后填满队列
	if err := tr.Send(context.Background(), &domain.Report{EventID: "a"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for tr.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := tr.Send(context.Background(), &domain.Report{EventID: "b"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := tr.Send(context.Background(), &domain.Report{EventID: "c"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := tr.Send(context.Background(), &domain.Report{EventID: "d"}); !errors.Is(err, domain.ErrQueueFull) {
		t.Errorf("Send on full queue = %v, want ErrQueueFull", err)
	}

	close(inner.release)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if inner.count() != 3 {
		t.Errorf("delivered %d reports, want 3", inner.count())
	}
}

func TestAsyncTransportCloseDrains(t *testing.T) {
	inner := &blockingTransport{release: make(chan struct{})}
	close(inner.release)
	tr := NewAsyncTransport(inner, AsyncOptions{QueueSize: 10, Workers: 2}, quietLogger())

	for i := 0; i < 5; i++ {
		if err := tr.Send(context.Background(), &domain.Report{EventID: "e"}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if inner.count() != 5 {
		t.Errorf("delivered %d reports after Close, want 5", inner.count())
	}

	if err := tr.Send(context.Background(), &domain.Report{EventID: "late"}); !errors.Is(err, domain.ErrTransportClosed) {
		t.Errorf("Send after Close = %v, want ErrTransportClosed", err)
	}
	// 重复关闭必须安全
	if err := tr.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestDiscardTransport(t *testing.T) {
	d := &Discard{}
	if err := d.Send(context.Background(), &domain.Report{EventID: "x"}); err != nil {
		t.Errorf("Discard.Send = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Discard.Close = %v", err)
	}
}
