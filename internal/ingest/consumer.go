// Package ingest feeds new identity-verification submissions from the upstream Kafka topic
// into the collection. Every ingested document starts out pending.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"userdeck/internal/metrics"
	"userdeck/internal/store"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type submissionInserter interface {
	InsertSubmissions(ctx context.Context, items []store.NewSubmission) ([]string, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// DeadLetterTopic receives messages whose insert failed MaxAttempts times. Without it
	// the consumer retries a failing insert indefinitely.
	DeadLetterTopic string
	MaxAttempts     int
}

const maxRetryDelay = time.Minute

type Consumer struct {
	reader      messageReader
	deadLetter  messageWriter
	store       submissionInserter
	logger      *zap.Logger
	metrics     *metrics.Metrics
	retryDelay  time.Duration
	maxAttempts int
}

func NewConsumer(cfg Config, inserter submissionInserter, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	logger.Info("kafka consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)
	consumer := newConsumer(reader, inserter, logger, m)
	if cfg.MaxAttempts > 0 {
		consumer.maxAttempts = cfg.MaxAttempts
	}
	if cfg.DeadLetterTopic != "" {
		consumer.deadLetter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DeadLetterTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		}
		logger.Info("kafka dead-letter topic enabled",
			zap.String("topic", cfg.DeadLetterTopic),
			zap.Int("max_attempts", consumer.maxAttempts),
		)
	}
	return consumer
}

func newConsumer(reader messageReader, inserter submissionInserter, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		reader:      reader,
		store:       inserter,
		logger:      logger,
		metrics:     m,
		retryDelay:  2 * time.Second,
		maxAttempts: 5,
	}
}

// Run consumes until ctx is cancelled. A message is committed once its submissions are
// stored, or straight away when it cannot be decoded.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka consumer", zap.Error(err))
		}
		if c.deadLetter != nil {
			if err := c.deadLetter.Close(); err != nil {
				c.logger.Error("failed to close dead-letter producer", zap.Error(err))
			}
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}
		c.logger.Debug("consumed kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("value_size", len(msg.Value)),
		)

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit kafka message: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	items, err := decodeSubmissions(msg.Value)
	if err != nil {
		c.metrics.IngestedMessages.WithLabelValues("malformed").Inc()
		c.logger.Warn("skipping malformed submission message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		ids, err := c.store.InsertSubmissions(ctx, items)
		if err == nil {
			c.metrics.IngestedMessages.WithLabelValues("stored").Inc()
			c.logger.Info("ingested submissions", zap.Strings("ids", ids), zap.Int64("offset", msg.Offset))
			return nil
		}
		c.metrics.IngestedMessages.WithLabelValues("retry").Inc()
		c.logger.Error("store ingested submissions",
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if c.deadLetter != nil && attempt >= c.maxAttempts {
			dlqErr := c.park(ctx, msg, err)
			if dlqErr == nil {
				return nil
			}
			c.logger.Error("dead-letter write failed, retrying insert", zap.Int64("offset", msg.Offset), zap.Error(dlqErr))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// park forwards msg to the dead-letter topic with the failure attached as headers.
func (c *Consumer) park(ctx context.Context, msg kafka.Message, cause error) error {
	parked := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "x-userdeck-error", Value: []byte(cause.Error())},
			kafka.Header{Key: "x-userdeck-source", Value: []byte(fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset))},
		),
	}
	if err := c.deadLetter.WriteMessages(ctx, parked); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	c.metrics.IngestedMessages.WithLabelValues("dead_lettered").Inc()
	c.logger.Warn("submission message dead-lettered",
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Error(cause),
	)
	return nil
}

// decodeSubmissions accepts one submission object or an array of them.
func decodeSubmissions(value []byte) ([]store.NewSubmission, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, errors.New("empty message")
	}

	var items []store.NewSubmission
	if value[0] == '[' {
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, fmt.Errorf("decode submissions: %w", err)
		}
	} else {
		var item store.NewSubmission
		if err := json.Unmarshal(value, &item); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		items = []store.NewSubmission{item}
	}
	if len(items) == 0 {
		return nil, errors.New("no submissions in message")
	}

	for i := range items {
		if strings.TrimSpace(items[i].Name) == "" {
			return nil, fmt.Errorf("submission %d has no name", i)
		}
		items[i].Status = "pending"
	}
	return items, nil
}
