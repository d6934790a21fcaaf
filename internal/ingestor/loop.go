// Package ingestor implements the ingestor loop: fetch, enqueue, and the
// in-memory fallback buffer that absorbs durable-queue outages (§4.3, §4.4).
package ingestor

import (
	"context"
	"sync"
	"time"

	"github.com/kengreim/vnas-stats/internal/feed"
	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/metrics"
	"github.com/kengreim/vnas-stats/internal/queue"
)

// Config holds the ingestor loop's tunables (§4.4, §6).
type Config struct {
	TickInterval time.Duration
}

// Health is the subset of process state the /health endpoint reports for
// the ingestor binary (§6 Process surface).
type Health struct {
	mu               sync.RWMutex
	lastAttemptedAt  time.Time
	lastSuccessfulAt time.Time
	lastError        error
	bufferLen        int
}

func (h *Health) recordAttempt(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastAttemptedAt = t
}

func (h *Health) recordSuccess(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSuccessfulAt = t
	h.lastError = nil
}

func (h *Health) recordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = err
}

func (h *Health) recordBufferLen(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bufferLen = n
}

// Snapshot returns a consistent read of all health fields at once.
func (h *Health) Snapshot() (lastAttemptedAt, lastSuccessfulAt time.Time, bufferLen int, lastError error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastAttemptedAt, h.lastSuccessfulAt, h.bufferLen, h.lastError
}

// Loop is the ingestor's long-lived task.
type Loop struct {
	client   *feed.Client
	q        *queue.Queue
	fallback *queue.FallbackBuffer
	cfg      Config
	health   Health
	metrics  *metrics.IngestorMetrics
}

// New builds an ingestor Loop over client and q.
func New(client *feed.Client, q *queue.Queue, cfg Config) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 15 * time.Second
	}
	return &Loop{
		client:   client,
		q:        q,
		fallback: queue.NewFallbackBuffer(),
		cfg:      cfg,
		metrics:  metrics.NewIngestorMetrics(),
	}
}

// Health exposes the loop's health state for the HTTP health handler.
func (l *Loop) Health() *Health { return &l.health }

// Run executes the tick cycle until ctx is cancelled (§4.4). The first
// iteration skips the initial sleep so the process starts ingesting
// immediately.
func (l *Loop) Run(ctx context.Context) error {
	first := true
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		first = false

		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.tick(ctx)
	}
}

// tick runs one cycle: drain fallback, fetch, enqueue (§4.4 steps 2-5).
func (l *Loop) tick(ctx context.Context) {
	tickStart := time.Now()
	defer l.warnIfTickRanLong(tickStart)

	l.drainFallback(ctx)

	now := time.Now().UTC()
	l.health.recordAttempt(now)

	raw, updatedAt, err := l.client.FetchSnapshot(ctx)
	if err != nil {
		l.metrics.ObserveFetch(false)
		l.health.recordError(err)
		logger.Warn("snapshot fetch failed", logger.Err(err))
		return
	}
	l.metrics.ObserveFetch(true)

	if _, err := l.q.Enqueue(ctx, raw, updatedAt); err != nil {
		l.metrics.ObserveEnqueue(true)
		l.health.recordError(err)
		logger.Warn("live enqueue failed, buffering snapshot", logger.Err(err), logger.UpdatedAt(updatedAt))
		l.fallback.Append(queue.FallbackItem{Payload: raw, UpdatedAt: updatedAt})
		l.health.recordBufferLen(l.fallback.Len())
		l.metrics.RecordFallbackDepth(l.fallback.Len())
		return
	}

	l.metrics.ObserveEnqueue(false)
	l.health.recordSuccess(updatedAt)
	l.health.recordBufferLen(l.fallback.Len())
	l.metrics.RecordFallbackDepth(l.fallback.Len())
	logger.Info("enqueued snapshot", logger.UpdatedAt(updatedAt))
}

// warnIfTickRanLong logs when one tick's fetch+enqueue work approaches the
// configured tick interval, since a tick that regularly runs long will
// eventually fall behind the upstream feed's publish cadence.
func (l *Loop) warnIfTickRanLong(tickStart time.Time) {
	elapsed := time.Since(tickStart)
	threshold := (l.cfg.TickInterval * 9) / 10
	if elapsed > threshold {
		logger.Warn("ingestor tick approached the tick interval",
			"elapsed", elapsed.String(), "tick_interval", l.cfg.TickInterval.String())
	}
}

// drainFallback attempts to drain the buffer head-to-tail before every new
// fetch, so a resolved outage catches up before new data piles on top
// (§4.3).
func (l *Loop) drainFallback(ctx context.Context) {
	if l.fallback.Len() == 0 {
		return
	}

	err := l.fallback.Drain(func(item queue.FallbackItem) error {
		_, enqueueErr := l.q.Enqueue(ctx, item.Payload, item.UpdatedAt)
		return enqueueErr
	})
	if err != nil {
		logger.Warn("fallback drain halted", logger.Err(err), logger.BufferLen(l.fallback.Len()))
	}
	l.health.recordBufferLen(l.fallback.Len())
	l.metrics.RecordFallbackDepth(l.fallback.Len())
}
