package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrailConfig tunes the asynchronous trail.
type TrailConfig struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultTrailConfig returns production defaults.
func DefaultTrailConfig() *TrailConfig {
	return &TrailConfig{
		Workers:   2,
		QueueSize: 1024,
	}
}

// Trail buffers events and writes them to its sink in the background.
// Recording never blocks the evaluation path: when the queue is full
// the event is dropped and the caller told.
type Trail struct {
	logger *zap.Logger
	sink   Sink
	config *TrailConfig

	queue   chan *Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewTrail builds a trail writing to the given sink.
func NewTrail(logger *zap.Logger, sink Sink, config *TrailConfig) (*Trail, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if config == nil {
		config = DefaultTrailConfig()
	}
	if config.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive")
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive")
	}

	return &Trail{
		logger: logger,
		sink:   sink,
		config: config,
		queue:  make(chan *Event, config.QueueSize),
	}, nil
}

// Start launches the background writers.
func (t *Trail) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("audit trail already started")
	}
	t.running = true

	for i := 0; i < t.config.Workers; i++ {
		t.wg.Add(1)
		go t.worker(ctx)
	}
	t.logger.Info("audit trail started",
		zap.Int("workers", t.config.Workers),
		zap.Int("queue_size", t.config.QueueSize))
	return nil
}

// Stop drains the queue and waits for the writers to finish.
func (t *Trail) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false
	close(t.queue)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.logger.Info("audit trail stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit trail shutdown interrupted: %w", ctx.Err())
	}
}

// Record enqueues an event. The event gets an ID and timestamp when
// missing. Returns an error when the trail is stopped or the queue is
// full; the caller decides whether that is fatal.
func (t *Trail) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.running {
		return fmt.Errorf("audit trail is not running")
	}
	select {
	case t.queue <- event:
		return nil
	default:
		t.logger.Warn("audit queue full, dropping event",
			zap.String("event_id", event.ID.String()),
			zap.String("user_id", event.UserID.String()))
		return fmt.Errorf("audit queue full")
	}
}

func (t *Trail) worker(ctx context.Context) {
	defer t.wg.Done()
	for event := range t.queue {
		if err := t.sink.Write(ctx, event); err != nil {
			t.logger.Error("failed to write audit event",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}
}
