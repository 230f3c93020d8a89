package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

const (
	eventBufferSize    = 100
	eventBatchSize     = 10
	eventFlushInterval = time.Second
	eventWriteTimeout  = 5 * time.Second
)

// EventRecorder appends to the sign-in audit trail without blocking the caller.
type EventRecorder interface {
	Record(ctx context.Context, event model.AuthEvent)
	Close()
}

type eventRecorder struct {
	repo   repository.AuthEventRepository
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan model.AuthEvent
	done   chan struct{}

	batchSize     int
	flushInterval time.Duration
}

// NewEventRecorder starts the background writer. Close flushes pending events.
func NewEventRecorder(repo repository.AuthEventRepository, logger *slog.Logger) EventRecorder {
	return newEventRecorder(repo, logger, eventBufferSize, eventBatchSize, eventFlushInterval)
}

func newEventRecorder(repo repository.AuthEventRepository, logger *slog.Logger, buffer, batchSize int, flushInterval time.Duration) *eventRecorder {
	r := &eventRecorder{
		repo:          repo,
		logger:        logger.With(logging.Component("event_recorder")),
		events:        make(chan model.AuthEvent, buffer),
		done:          make(chan struct{}),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}

	// Start async writer
	go r.worker()

	return r
}

// Record queues event. When the queue is full the event is written synchronously.
func (r *eventRecorder) Record(ctx context.Context, event model.AuthEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.events <- event:
	default:
		if err := r.repo.Create(context.WithoutCancel(ctx), &event); err != nil {
			r.logger.WarnContext(ctx, "auth event dropped", slog.String("kind", string(event.Kind)), logging.Error(err))
		}
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (r *eventRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	<-r.done
}

func (r *eventRecorder) worker() {
	defer close(r.done)

	batch := make([]model.AuthEvent, 0, r.batchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-r.events:
			if !ok {
				// Channel closed, flush remaining events
				r.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *eventRecorder) flush(batch []model.AuthEvent) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()
	if err := r.repo.CreateBatch(ctx, batch); err != nil {
		r.logger.Warn("auth events dropped", slog.Int("count", len(batch)), logging.Error(err))
	}
}
