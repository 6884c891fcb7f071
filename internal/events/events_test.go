package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent(index int) AnalysisEvent {
	return AnalysisEvent{
		RequestID: "req-1",
		Index:     index,
		Source:    SourceBatch,
		Filename:  "onion.jpg",
		Timestamp: time.Date(2026, time.October, 3, 8, 0, 0, 0, time.UTC),
		Analysis:  quality.FailedAnalysis(errors.New("unreadable")),
	}
}

func TestEncode(t *testing.T) {
	msg, err := Encode(sampleEvent(2))
	require.NoError(t, err)

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.Equal(t, []kafka.Header{
		{Key: "source", Value: []byte("batch")},
		{Key: "grade", Value: []byte("F")},
	}, msg.Headers)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "req-1", decoded["requestId"])
	assert.InDelta(t, 2, decoded["index"], 0)
	analysis, ok := decoded["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "critical", analysis["status"])
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, nil)

	require.NoError(t, p.Publish(context.Background()))
	assert.Empty(t, w.msgs)

	require.NoError(t, p.Publish(context.Background(), sampleEvent(0), sampleEvent(1)))
	assert.Len(t, w.msgs, 2)

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), sampleEvent(2))
	require.ErrorContains(t, err, "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "onion-analyses", nil)
	kw, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "onion-analyses", kw.Topic)
	require.NoError(t, p.Close())
}

func TestRecordingAndNopPublishers(t *testing.T) {
	var nop Publisher = NopPublisher{}
	require.NoError(t, nop.Publish(context.Background(), sampleEvent(0)))
	require.NoError(t, nop.Close())

	r := &RecordingPublisher{}
	require.NoError(t, r.Publish(context.Background(), sampleEvent(0), sampleEvent(1)))
	assert.Len(t, r.Events(), 2)

	r.Err = errors.New("fail")
	require.Error(t, r.Publish(context.Background(), sampleEvent(2)))
	assert.Len(t, r.Events(), 2)
}
