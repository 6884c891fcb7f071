// Package events publishes finished analyses to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Source values of an AnalysisEvent.
const (
	SourceImage = "image"
	SourceBatch = "batch"
	SourceWS    = "websocket"
)

// AnalysisEvent is the message emitted for each analysed image.
type AnalysisEvent struct {
	RequestID string                `json:"requestId"`
	Index     int                   `json:"index"`
	Source    string                `json:"source"`
	Filename  string                `json:"filename,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
	Analysis  quality.OnionAnalysis `json:"analysis"`
}

// Publisher emits analysis events.
type Publisher interface {
	Publish(ctx context.Context, events ...AnalysisEvent) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...AnalysisEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by request ID
// so that the records of one batch land on the same partition in order.
type KafkaPublisher struct {
	w   messageWriter
	log *slog.Logger
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaPublisher{w: w, log: log.With(slog.String("component", "kafka-publisher"))}
}

// Publish encodes and writes events in one call.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...AnalysisEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := Encode(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d analysis events: %w", len(msgs), err)
	}
	p.log.Debug("published analysis events", "count", len(msgs))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Encode turns an event into a Kafka message.
func Encode(ev AnalysisEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode analysis event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(ev.Source)},
			{Key: "grade", Value: []byte(ev.Analysis.QualityGrade)},
		},
	}, nil
}

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []AnalysisEvent
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, events ...AnalysisEvent) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *RecordingPublisher) Events() []AnalysisEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AnalysisEvent(nil), r.events...)
}
