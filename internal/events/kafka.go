// Package events publishes pipeline stage completions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Stages reported by the pipeline.
const (
	StageRawStored = "raw_stored"
	StageProcessed = "processed"
)

// Event describes one completed stage.
type Event struct {
	Stage     string    `json:"stage"`
	File      string    `json:"file"`
	Location  string    `json:"location,omitempty"`
	Items     int       `json:"items"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events keyed by file name, so all events for one file
// land on the same partition.
type Publisher struct {
	w   messageWriter
	now func() time.Time
}

// NewPublisher creates a Publisher for topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  1,
	})
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

// Publish sends ev. A zero Timestamp is set to the current time.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.File),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(ev.Stage)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", ev.Stage, ev.File, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
