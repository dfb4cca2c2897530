package stream

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WorkerStatus mirrors the teacher's queue.WorkerStatus vocabulary.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a point-in-time snapshot of one worker, as returned by
// Worker.Health and Pool.Health.
type WorkerHealth struct {
	ID                string
	Status            WorkerStatus
	MessagesProcessed int64
	LastActivity       time.Time
}

// Handler processes one stream message. Returning nil acks the message;
// returning an error leaves it pending for redelivery, up to Config.MaxRetries.
type Handler func(ctx context.Context, msg Message) error

// Config tunes a consumer Worker, named per spec.md §6's
// STREAM_BATCH_SIZE/STREAM_BLOCK_TIME/STREAM_MAX_RETRIES/STREAM_CONSUMER_COUNT.
type Config struct {
	StreamKey      string
	Group          string
	Consumer       string
	BatchSize      int64
	BlockTime      time.Duration
	MaxConcurrent  int
	MaxRetries     int64
	PollJitter     time.Duration
	ClaimMinIdle   time.Duration
	DLQStreamKey   string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BlockTime <= 0 {
		c.BlockTime = 5 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = time.Minute
	}
	return c
}

// Worker polls one Redis stream via a consumer group and dispatches
// messages to Handler with bounded concurrency. Shutdown shape (stopCh,
// sync.Once, WaitGroup) is grounded on the teacher's pkg/queue/worker.go.
type Worker struct {
	client  *redis.Client
	cfg     Config
	handler Handler
	log     *slog.Logger

	sem      chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.RWMutex
	status   WorkerStatus
	processed int64
	lastActivity time.Time
}

// NewWorker builds a Worker. Callers must call EnsureGroup for cfg.StreamKey
// and cfg.Group before Start.
func NewWorker(client *redis.Client, cfg Config, handler Handler, log *slog.Logger) *Worker {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		client:       client,
		cfg:          cfg,
		handler:      handler,
		log:          log.With("stream", cfg.StreamKey, "group", cfg.Group, "consumer", cfg.Consumer),
		sem:          make(chan struct{}, cfg.MaxConcurrent),
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for in-flight handlers to drain.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports a point-in-time snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{ID: w.cfg.Consumer, Status: w.status, MessagesProcessed: w.processed, LastActivity: w.lastActivity}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.log.Info("stream worker started")

	for {
		select {
		case <-w.stopCh:
			w.log.Info("stream worker shutting down")
			return
		case <-ctx.Done():
			return
		default:
			n, err := w.pollAndDispatch(ctx)
			if err != nil {
				w.log.Warn("poll failed", "error", err)
				w.sleep(time.Second)
				continue
			}
			if n == 0 {
				w.sleep(w.pollInterval())
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollInterval() time.Duration {
	if w.cfg.PollJitter <= 0 {
		return 100 * time.Millisecond
	}
	base := 100 * time.Millisecond
	offset := time.Duration(rand.Int64N(int64(2 * w.cfg.PollJitter)))
	return base - w.cfg.PollJitter + offset
}

// pollAndDispatch reclaims up to BatchSize pending entries idle for at least
// ClaimMinIdle, then reads up to BatchSize new entries, and dispatches each
// to handler with bounded concurrency, returning the number of entries read.
func (w *Worker) pollAndDispatch(ctx context.Context) (int, error) {
	claimed, _, err := w.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream: w.cfg.StreamKey, Group: w.cfg.Group, Consumer: w.cfg.Consumer,
		MinIdle: w.cfg.ClaimMinIdle, Start: "0", Count: w.cfg.BatchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	res, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.cfg.Group,
		Consumer: w.cfg.Consumer,
		Streams:  []string{w.cfg.StreamKey, ">"},
		Count:    w.cfg.BatchSize,
		Block:    w.cfg.BlockTime,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	res = append([]redis.XStream{{Stream: w.cfg.StreamKey, Messages: claimed}}, res...)

	var n int
	var wg sync.WaitGroup
	for _, stream := range res {
		for _, entry := range stream.Messages {
			msg, err := decodeEntry(entry)
			if err != nil {
				w.log.Warn("decode failed, acking poison message", "id", entry.ID, "error", err)
				w.ack(ctx, entry.ID)
				continue
			}
			n++
			w.sem <- struct{}{}
			wg.Add(1)
			go func(m Message) {
				defer wg.Done()
				defer func() { <-w.sem }()
				w.process(ctx, m)
			}(msg)
		}
	}
	wg.Wait()
	return n, nil
}

func (w *Worker) process(ctx context.Context, msg Message) {
	w.setStatus(WorkerStatusWorking)
	defer w.setStatus(WorkerStatusIdle)

	err := w.handler(ctx, msg)
	if err == nil {
		w.ack(ctx, msg.ID)
		w.mu.Lock()
		w.processed++
		w.mu.Unlock()
		return
	}

	w.log.Warn("handler failed", "event_id", msg.EventID, "error", err)

	deliveries, claimErr := w.deliveryCount(ctx, msg.ID)
	if claimErr != nil {
		w.log.Warn("could not read delivery count", "id", msg.ID, "error", claimErr)
		return
	}
	if deliveries < w.cfg.MaxRetries {
		// Leave pending; a later poll's XAUTOCLAIM redelivers it once it has
		// been idle for ClaimMinIdle.
		return
	}

	if w.cfg.DLQStreamKey != "" {
		if dlqErr := w.client.XAdd(ctx, &redis.XAddArgs{
			Stream: w.cfg.DLQStreamKey,
			Values: map[string]any{
				"event_id":        msg.EventID,
				"payload":         string(msg.Payload),
				"error":           err.Error(),
				"retry_count":     deliveries,
				"original_stream": w.cfg.StreamKey,
				"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
			},
		}).Err(); dlqErr != nil {
			w.log.Error("failed to publish to DLQ", "event_id", msg.EventID, "error", dlqErr)
			return
		}
	}
	w.ack(ctx, msg.ID)
}

func (w *Worker) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := w.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: w.cfg.StreamKey,
		Group:  w.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.client.XAck(ctx, w.cfg.StreamKey, w.cfg.Group, id).Err(); err != nil {
		w.log.Warn("ack failed", "id", id, "error", err)
	}
}

func (w *Worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

// Pool runs a fixed number of Workers against the same stream/group, each
// with a distinct consumer name (spec.md §6: "the consumer name carries the
// process identifier"), implementing STREAM_CONSUMER_COUNT.
type Pool struct {
	workers []*Worker
}

// NewPool builds count Workers named "<cfg.Consumer>-<i>".
func NewPool(client *redis.Client, cfg Config, count int, handler Handler, log *slog.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	base := cfg.Consumer
	workers := make([]*Worker, count)
	for i := 0; i < count; i++ {
		wc := cfg
		wc.Consumer = consumerName(base, i)
		workers[i] = NewWorker(client, wc, handler, log)
	}
	return &Pool{workers: workers}
}

func consumerName(base string, i int) string {
	if base == "" {
		base = "consumer"
	}
	return base + "-" + strconv.Itoa(i)
}

// Start starts every worker in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		w.Start(ctx)
	}
}

// Stop stops every worker in the pool, waiting for each to drain.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Health reports a snapshot for every worker in the pool.
func (p *Pool) Health() []WorkerHealth {
	out := make([]WorkerHealth, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.Health()
	}
	return out
}
