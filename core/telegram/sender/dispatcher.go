// Package sender runs outbound Bot API calls on background workers with
// retries, keeping the calls of one chat in order.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
	// done receives the outcome of synchronous jobs.
	done chan error
}

// Dispatcher executes outbound calls asynchronously. Jobs are sharded by
// the chat id carried in their context so replies to one chat never
// overtake each other.
type Dispatcher struct {
	opts   Options
	queues []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts the workers; zero options get defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 15 * time.Second
	}

	d := &Dispatcher{opts: opts, queues: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

func (d *Dispatcher) shard(ctx context.Context) chan job {
	id := logger.ChatIDFrom(ctx)
	if id < 0 {
		id = -id
	}
	return d.queues[id%int64(len(d.queues))]
}

func (d *Dispatcher) submit(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(j.ctx) <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue schedules run on the worker of the chat in ctx. run must be safe
// to repeat when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return d.submit(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Do runs the call behind the jobs already queued for the chat and waits
// for the outcome. Broadcasts use it to tally recipients. When the queue
// is full or closed the call runs on the caller's goroutine.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run, done: make(chan error, 1)}
	if err := d.submit(j); err != nil {
		return d.execute(j)
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(q <-chan job) {
	defer d.wg.Done()
	for j := range q {
		err := d.execute(j)
		if j.done != nil {
			j.done <- err
		}
	}
}

func (d *Dispatcher) execute(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	var err error
	attempt := 1
	for ; ; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, "tg.sender", "send.ok", d.attrs(j, attempt, start)...)
			return nil
		}
		wait, retry := retryAfter(err)
		if !retry || attempt > d.opts.MaxRetries {
			break
		}
		if wait == 0 {
			wait = d.opts.RetryBackoff * time.Duration(attempt)
		}
		if !sleep(ctx, wait) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	d.errs.Add(1)
	attrs := append(d.attrs(j, attempt, start),
		slog.String("err", redact(err)),
		slog.String("err_kind", kind(err)),
	)
	level := slog.LevelError
	if Unreachable(err) {
		level = slog.LevelWarn
	}
	logger.LogEvent(j.ctx, logger.Component("tg.sender"), level, "send.fail", attrs...)
	return err
}

func (d *Dispatcher) attrs(j job, attempt int, start time.Time) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if id := logger.ChatIDFrom(j.ctx); id != 0 {
		attrs = append(attrs, slog.Int64("chat_id", id))
	}
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempts", attempt))
	}
	return append(attrs, slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
