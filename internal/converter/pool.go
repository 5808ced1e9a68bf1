package converter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/harliandi/go-convert/pkg/targetsize"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolStopped is returned for submissions after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Task is one encode to run on a worker
type Task func() (*targetsize.Result, error)

// Job represents a queued encode
type Job struct {
	Run    Task
	Result chan<- Result
}

// Result represents the outcome of an encode job
type Result struct {
	Value *targetsize.Result
	Err   error
}

// WorkerPool bounds the number of encodes running at once. Each encode
// holds a decoded image and a sink, so this caps memory for large uploads.
type WorkerPool struct {
	jobs    chan Job
	workers int
	active  atomic.Int32
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	stopped bool
	logger  *logrus.Logger
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int, logger *logrus.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WorkerPool{
		jobs:    make(chan Job, workers*2), // Buffered channel
		workers: workers,
		logger:  logger,
	}
}

// Start starts the worker pool goroutines
func (p *WorkerPool) Start() {
	p.once.Do(func() {
		p.logger.WithField("workers", p.workers).Info("Starting worker pool")
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker processes jobs from the job channel
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.active.Add(1)
		p.updateMetrics()

		var result Result
		result.Value, result.Err = p.run(id, job.Run)

		p.active.Add(-1)
		p.updateMetrics()

		// Send result (non-blocking in case receiver is gone)
		select {
		case job.Result <- result:
		default:
			p.logger.WithField("worker", id).Warn("Result channel full or closed")
		}
	}
}

func (p *WorkerPool) run(id int, task Task) (res *targetsize.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{"worker": id, "panic": r}).Error("Encode panicked")
			res, err = nil, errors.New("encode panicked")
		}
	}()
	return task()
}

// Submit submits a job to the worker pool with context cancellation support.
// Returns ErrPoolBusy if the worker pool queue is full.
func (p *WorkerPool) Submit(ctx context.Context, task Task) (*targetsize.Result, error) {
	p.Start()

	resultChan := make(chan Result, 1)
	job := Job{
		Run:    task,
		Result: resultChan,
	}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	case p.jobs <- job:
		p.mu.RUnlock()
		p.updateMetrics()
	default:
		p.mu.RUnlock()
		metrics.RecordPoolRejected()
		return nil, ErrPoolBusy
	}

	// The encode itself is not interruptible; cancellation only stops the wait.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.Value, result.Err
	}
}

// SubmitWithRetry submits a job to the worker pool with retry on busy
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, task Task, maxRetries int) (*targetsize.Result, error) {
	var lastErr error = ErrPoolBusy
	for i := 0; i < maxRetries; i++ {
		result, err := p.Submit(ctx, task)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrPoolBusy) {
			return nil, err
		}
		lastErr = err

		// Linear backoff
		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop gracefully shuts down the worker pool
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Stats returns the number of running and queued jobs
func (p *WorkerPool) Stats() (active, queued int) {
	return int(p.active.Load()), len(p.jobs)
}

func (p *WorkerPool) updateMetrics() {
	active, queued := p.Stats()
	metrics.UpdateWorkerPoolMetrics(queued, active)
}
