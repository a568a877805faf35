package transport

import (
	"context"
	"sync"
	"time"

	"github.com/oriys/faultline/internal/domain"
	"github.com/sirupsen/logrus"
)

// AsyncOptions 是异步传输的调优参数。
type AsyncOptions struct {
	// QueueSize 是待投递队列容量，默认 1000
	QueueSize int
	// Workers 是投递协程数量，默认 2
	Workers int
	// SendTimeout 是单份报告的投递超时，默认 15 秒
	SendTimeout time.Duration
}

// AsyncTransport 是任意传输的缓冲装饰器。
// 报告进入有界队列后由后台协程投递，Send 调用立即返回，慢速或
// 不可达的远端只拖慢上报吞吐，不拖慢工作单元本身。
// 队列满时报告被丢弃并记录日志（返回 ErrQueueFull），不阻塞调用方。
type AsyncTransport struct {
	inner  Transport
	queue  chan *domain.Report
	logger *logrus.Logger

	sendTimeout time.Duration
	wg          sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncTransport 包装 inner 并启动投递协程池。
func NewAsyncTransport(inner Transport, opts AsyncOptions, logger *logrus.Logger) *AsyncTransport {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}

	t := &AsyncTransport{
		inner:       inner,
		queue:       make(chan *domain.Report, opts.QueueSize),
		logger:      logger,
		sendTimeout: opts.SendTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		t.wg.Add(1)
		go t.run(i)
	}
	return t
}

// run 是投递协程主循环，队列关闭后排空剩余报告并退出。
func (t *AsyncTransport) run(id int) {
	defer t.wg.Done()

	for report := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), t.sendTimeout)
		err := t.inner.Send(ctx, report)
		cancel()
		if err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"worker_id": id,
				"event_id":  report.EventID,
			}).Warn("Failed to deliver report")
		}
	}
}

// Send 将报告放入投递队列并立即返回。
// 队列已满返回 ErrQueueFull，传输已关闭返回 ErrTransportClosed。
func (t *AsyncTransport) Send(ctx context.Context, report *domain.Report) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return domain.ErrTransportClosed
	}

	select {
	case t.queue <- report:
		return nil
	default:
		t.logger.WithField("event_id", report.EventID).Warn("Report queue full, dropping report")
		return domain.ErrQueueFull
	}
}

// Close 停止接收新报告，排空队列后关闭内层传输。
func (t *AsyncTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	t.wg.Wait()
	return t.inner.Close()
}

// Pending 返回队列中待投递的报告数，用于指标上报。
func (t *AsyncTransport) Pending() int {
	return len(t.queue)
}
