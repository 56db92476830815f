// Package dispatch runs notification deliveries off the request path.
// Messages are queued on a buffered channel and sent by a fixed pool of
// workers, so neither slow SMTP servers nor traffic spikes can pile up
// unbounded goroutines.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/signup-notifier/internal/metrics"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 100
)

var (
	// ErrQueueFull is returned by Schedule when every queue slot is taken.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrClosed is returned by Schedule after Shutdown or Close, or once
	// Config.Context is canceled.
	ErrClosed = errors.New("dispatch scheduler is closed")
)

// Scheduler accepts messages for asynchronous delivery.
type Scheduler interface {
	// Schedule enqueues msg and returns its task ID. It never blocks and never
	// waits on the network; delivery failures are only logged.
	Schedule(msg notification.OutboundMessage) (string, error)

	// Shutdown stops accepting messages and waits for queued and in-flight
	// deliveries. When ctx ends first, in-flight sends are canceled and the
	// remaining queue is dropped; Shutdown still waits for every Sender to
	// return, so a Sender that ignores its context delays it past ctx.
	Shutdown(ctx context.Context) error

	// Close is Shutdown without a deadline.
	Close()

	// Stats returns counters since startup.
	Stats() Stats
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Scheduled int64 `json:"scheduled"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Config holds the scheduler configuration.
type Config struct {
	Sender    notification.Sender
	Logger    *slog.Logger
	Workers   int
	QueueSize int
	// Timeout bounds each delivery attempt. Defaults to notification.DefaultTimeout.
	Timeout time.Duration
	// Context is the parent of every delivery. Canceling it aborts all
	// in-flight and queued sends and makes Schedule return ErrClosed.
	// Defaults to context.Background().
	Context context.Context
	// OnOutcome is optional. It is called from the worker after each attempt.
	OnOutcome func(notification.DispatchOutcome)
}

type task struct {
	id       string
	msg      notification.OutboundMessage
	enqueued time.Time
}

// pool is the default Scheduler implementation.
type pool struct {
	ch        chan task
	sender    notification.Sender
	logger    *slog.Logger
	tracer    trace.Tracer
	timeout   time.Duration
	onOutcome func(notification.DispatchOutcome)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	scheduled atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New creates a Scheduler and starts its workers.
// Workers <= 0 uses 4, QueueSize <= 0 uses 100.
func New(cfg Config) (Scheduler, error) {
	if cfg.Sender == nil {
		return nil, errors.New("dispatch: sender is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = notification.DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	p := &pool{
		ch:        make(chan task, queueSize),
		sender:    cfg.Sender,
		logger:    logger,
		tracer:    otel.Tracer("github.com/shaharia-lab/signup-notifier/internal/dispatch"),
		timeout:   timeout,
		onOutcome: cfg.OnOutcome,
		ctx:       ctx,
		cancel:    cancel,
	}
	p.startWorkers(workers)

	logger.Info("dispatch scheduler started",
		slog.String("sender", cfg.Sender.Name()),
		slog.Int("workers", workers),
		slog.Int("queue_size", queueSize),
		slog.Duration("timeout", timeout),
	)
	return p, nil
}

func (p *pool) startWorkers(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.ch {
				metrics.DispatchQueueDepth.Dec()
				if p.ctx.Err() != nil {
					p.reject("canceled")
					p.logger.Warn("dispatch canceled, dropping notification", slog.String("task_id", t.id))
					continue
				}
				p.run(t)
			}
		}()
	}
}

// Schedule enqueues a message. If the buffer is full the message is rejected.
func (p *pool) Schedule(msg notification.OutboundMessage) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.reject("closed")
		return "", ErrClosed
	}
	if p.ctx.Err() != nil {
		p.reject("canceled")
		return "", ErrClosed
	}

	t := task{id: uuid.NewString(), msg: msg, enqueued: time.Now()}
	select {
	case p.ch <- t:
		p.scheduled.Add(1)
		metrics.DispatchQueueDepth.Inc()
		p.logger.Debug("notification scheduled", slog.String("task_id", t.id), slog.String("to", msg.To()))
		return t.id, nil
	default:
		p.reject("queue_full")
		p.logger.Warn("dispatch queue full, dropping notification", slog.String("to", msg.To()))
		return "", ErrQueueFull
	}
}

func (p *pool) reject(reason string) {
	p.rejected.Add(1)
	metrics.DispatchRejected.WithLabelValues(reason).Inc()
}

// run performs one delivery attempt with its own timeout.
func (p *pool) run(t task) {
	metrics.DispatchInFlight.Inc()
	defer metrics.DispatchInFlight.Dec()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "notification.dispatch",
		trace.WithAttributes(
			attribute.String("notification.task_id", t.id),
			attribute.String("notification.sender", p.sender.Name()),
			attribute.Int64("notification.queue_wait_ms", time.Since(t.enqueued).Milliseconds()),
		),
	)
	defer span.End()

	outcome := p.deliver(ctx, t)

	result := "success"
	if outcome.Success {
		p.succeeded.Add(1)
		span.SetStatus(codes.Ok, "")
	} else {
		result = "failure"
		p.failed.Add(1)
		metrics.DispatchFailures.Inc()
		span.SetStatus(codes.Error, outcome.ErrorDetail)
	}
	metrics.DispatchTotal.WithLabelValues(outcome.Sender, result).Inc()
	metrics.DispatchDuration.WithLabelValues(outcome.Sender).Observe(outcome.Duration.Seconds())

	if p.onOutcome != nil {
		p.onOutcome(outcome)
	}
}

// deliver recovers from a panicking sender so one bad message cannot take a
// worker down with it.
func (p *pool) deliver(ctx context.Context, t task) (outcome notification.DispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch: sender panicked", slog.String("task_id", t.id), slog.Any("panic", r))
			outcome = notification.DispatchOutcome{
				TaskID:      t.id,
				Sender:      p.sender.Name(),
				ErrorDetail: fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return notification.Deliver(ctx, p.sender, t.msg, t.id, p.logger)
}

// Shutdown closes the queue and waits for the workers to drain it. At the
// deadline it cancels in-flight sends and waits for them to return.
func (p *pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("dispatch shutdown: %w", ctx.Err())
	}
}

// Close drains the queue and waits for all workers to finish.
func (p *pool) Close() {
	_ = p.Shutdown(context.Background())
}

func (p *pool) Stats() Stats {
	return Stats{
		Scheduled: p.scheduled.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
