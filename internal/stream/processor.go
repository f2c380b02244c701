// Package stream consumes proposed transactions from a Kafka topic,
// evaluates them, and publishes the decisions to another topic.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/evaluation"
	"github.com/openclear/guardrail/pkg/models"
)

// Config holds the topics and consumer settings for the processor.
type Config struct {
	Brokers       []string `yaml:"brokers" json:"brokers"`
	RequestTopic  string   `yaml:"request_topic" json:"request_topic"`
	DecisionTopic string   `yaml:"decision_topic" json:"decision_topic"`
	GroupID       string   `yaml:"group_id" json:"group_id"`
	Workers       int      `yaml:"workers" json:"workers"`
}

// Processor reads proposed transactions, runs the evaluation pipeline,
// and writes decisions back to Kafka.
type Processor struct {
	logger *zap.Logger
	orch   *evaluation.Orchestrator
	config *Config
	reader *kafka.Reader
	writer *kafka.Writer

	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewProcessor builds the consumer and producer for the configured
// topics. Nothing is dialed until Start.
func NewProcessor(logger *zap.Logger, orch *evaluation.Orchestrator, config *Config) (*Processor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.RequestTopic == "" || config.DecisionTopic == "" {
		return nil, fmt.Errorf("request and decision topics are required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("consumer group id is required")
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		Topic:   config.RequestTopic,
		GroupID: config.GroupID,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	})

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.DecisionTopic,
		Balancer:     &kafka.CRC32Balancer{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}

	return &Processor{
		logger: logger,
		orch:   orch,
		config: config,
		reader: reader,
		writer: writer,
	}, nil
}

// Start launches the consumer loops.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("processor already started")
	}
	p.running = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.consume(ctx)
	}
	p.logger.Info("stream processor started",
		zap.String("request_topic", p.config.RequestTopic),
		zap.String("decision_topic", p.config.DecisionTopic),
		zap.String("group_id", p.config.GroupID),
		zap.Int("workers", p.config.Workers))
	return nil
}

// Stop closes the reader, waits for in-flight work, and flushes the
// producer.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false

	if err := p.reader.Close(); err != nil {
		p.logger.Error("failed to close reader", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stream shutdown interrupted: %w", ctx.Err())
	}

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	p.logger.Info("stream processor stopped")
	return nil
}

func (p *Processor) consume(ctx context.Context) {
	defer p.wg.Done()
	for {
		msg, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			p.logger.Error("failed to read message", zap.Error(err))
			continue
		}

		decision, err := p.Process(ctx, msg.Value)
		if err != nil {
			p.logger.Error("failed to evaluate message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset))
			continue
		}
		p.publish(ctx, decision)
	}
}

// Process evaluates one raw request payload.
func (p *Processor) Process(ctx context.Context, payload []byte) (*evaluation.Decision, error) {
	var proposed models.ProposedTransaction
	if err := json.Unmarshal(payload, &proposed); err != nil {
		return nil, fmt.Errorf("failed to decode proposed transaction: %w", err)
	}
	return p.orch.Evaluate(ctx, proposed)
}

func (p *Processor) publish(ctx context.Context, decision *evaluation.Decision) {
	data, err := json.Marshal(decision)
	if err != nil {
		p.logger.Error("failed to encode decision", zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(decision.UserID.String()),
		Value: data,
		Time:  decision.EvaluatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish decision",
			zap.Error(err),
			zap.String("decision_id", decision.ID.String()))
	}
}
