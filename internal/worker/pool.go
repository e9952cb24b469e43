package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

// Pool runs fire-and-forget tasks (persistence, notifications) on a bounded
// queue. Submission never blocks the caller: when the queue is full the task
// is dropped and counted, which keeps the detection path latency-safe under
// load.
type Pool struct {
	config PoolConfig
	logger *zap.Logger
	tasks  chan task
	wg     sync.WaitGroup

	closeOnce sync.Once
}

type task struct {
	name string
	fn   func(context.Context)
}

// NewPool creates and starts a pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}

	p := &Pool{
		config: cfg,
		logger: cfg.Logger,
		tasks:  make(chan task, cfg.QueueSize),
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Submit enqueues a task without blocking. Returns false when the queue is
// full and the task was dropped.
func (p *Pool) Submit(name string, fn func(context.Context)) bool {
	select {
	case p.tasks <- task{name: name, fn: fn}:
		TasksSubmittedTotal.WithLabelValues(name).Inc()
		return true
	default:
		p.logger.Warn("worker-queue-full-dropping-task", zap.String("task", name))
		TasksDroppedTotal.WithLabelValues(name).Inc()
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for t := range p.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.TaskTimeout)
		t.fn(ctx)
		cancel()
	}
}

// Close stops accepting tasks and waits for queued work to drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
