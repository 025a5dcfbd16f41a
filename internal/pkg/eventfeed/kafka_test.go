package eventfeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/incident"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishStatusChange(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Topic: DefaultTopic})
	priority := 2
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	err := p.PublishStatusChange(context.Background(), incident.StatusChange{
		IncidentID:    "inc-9",
		From:          models.StatusAnalyzed,
		To:            models.StatusApproved,
		Actor:         "operator-1",
		FinalPriority: &priority,
		ChangedAt:     at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "inc-9", string(msg.Key))
	assert.True(t, at.Equal(msg.Time))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "incident_status_changed", body["event"])
	assert.Equal(t, "APPROVED", body["to"])
	assert.Equal(t, "ANALYZED", body["from"])
	assert.Equal(t, float64(2), body["final_priority"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishStatusChangeError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newPublisher(w, Config{Topic: "t"})

	err := p.PublishStatusChange(context.Background(), incident.StatusChange{IncidentID: "inc-1"})
	assert.ErrorContains(t, err, "write to t")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultTopic, cfg.Topic)
}
