package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &stubWriter{}
	p := newPublisher(w)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	err := p.Publish(context.Background(), Event{Stage: StageRawStored, File: "search_results_AI_ab12.json", Items: 3})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "search_results_AI_ab12.json", string(msg.Key))
	require.Equal(t, "stage", msg.Headers[0].Key)
	require.Equal(t, StageRawStored, string(msg.Headers[0].Value))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	require.Equal(t, 3, ev.Items)
	require.Equal(t, 2024, ev.Timestamp.Year())

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestPublishError(t *testing.T) {
	p := newPublisher(&stubWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), Event{Stage: StageProcessed, File: "processed_a.json"})
	require.ErrorContains(t, err, "broker down")
	require.ErrorContains(t, err, "processed_a.json")
}
