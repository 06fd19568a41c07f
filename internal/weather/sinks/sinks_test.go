package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                       { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	mu       sync.Mutex
	msgs     []published
	failOn   string
	complete bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, retained: retained, payload: payload.(string)})
	if topic == p.failOn {
		return newToken(errors.New("not connected"), true)
	}
	return newToken(nil, p.complete)
}

func (p *fakePublisher) topics() map[string]string {
	out := make(map[string]string)
	for _, m := range p.msgs {
		out[m.topic] = m.payload
	}
	return out
}

var paris = weather.Location{City: "Saint Denis", Country: "FR"}

func okReport() weather.DayReport {
	mm := 5.55259
	return weather.DayReport{
		Day:    1,
		Date:   "2024-06-20",
		Status: weather.StatusOK,
		Units:  units.Metric,
		EToMm:  &mm,
		Values: []weather.Value{
			{Field: weather.FieldTempMax, Value: 30.1, Unit: "°C"},
			{Field: weather.FieldETo, Value: 5.55, Unit: "mm/day"},
		},
	}
}

func TestMQTTPublishesFields(t *testing.T) {
	pub := &fakePublisher{complete: true}
	sink := newMQTT(pub, "/weather/", nil)

	require.NoError(t, sink.Publish(context.Background(), paris, okReport()))

	assert.Equal(t, map[string]string{
		"weather/saint_denis_fr/forecast_1/status":   "ok",
		"weather/saint_denis_fr/forecast_1/date":     "2024-06-20",
		"weather/saint_denis_fr/forecast_1/temp_max": "30.1",
		"weather/saint_denis_fr/forecast_1/eto":      "5.55",
	}, pub.topics())
	for _, m := range pub.msgs {
		assert.True(t, m.retained, m.topic)
	}
}

func TestMQTTPublishesNoDataReason(t *testing.T) {
	pub := &fakePublisher{complete: true}
	sink := newMQTT(pub, "weather", nil)

	report := weather.DayReport{Day: 3, Status: weather.StatusNoData, Reason: "no samples for day"}
	require.NoError(t, sink.Publish(context.Background(), paris, report))

	assert.Equal(t, map[string]string{
		"weather/saint_denis_fr/forecast_3/status": "no_data",
		"weather/saint_denis_fr/forecast_3/reason": "no samples for day",
	}, pub.topics())
}

func TestMQTTPublishError(t *testing.T) {
	pub := &fakePublisher{complete: true, failOn: "weather/saint_denis_fr/forecast_1/status"}
	sink := newMQTT(pub, "weather", nil)

	err := sink.Publish(context.Background(), paris, okReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	assert.Len(t, pub.msgs, 1)
}

func TestMQTTPublishHonoursContext(t *testing.T) {
	pub := &fakePublisher{complete: false}
	sink := newMQTT(pub, "weather", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Publish(ctx, paris, okReport())
	require.ErrorIs(t, err, context.Canceled)
}

func TestTopicSegment(t *testing.T) {
	assert.Equal(t, "new_york_us", topicSegment("New York:US"))
	assert.Equal(t, "a_b_c_d", topicSegment("a/b+c#d"))
}

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
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

func TestKafkaPublish(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafka(w, nil)
	now := time.Date(2024, 6, 20, 6, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	require.NoError(t, sink.Publish(context.Background(), paris, okReport()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("Saint Denis:FR:1"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("ok"), msg.Headers[0].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var ev dayEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "Saint Denis", ev.Location.City)
	assert.Equal(t, 1, ev.Report.Day)
	got, ok := ev.Report.Value(weather.FieldETo)
	require.True(t, ok)
	assert.Equal(t, 5.55, got)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	sink := newKafka(w, nil)

	err := sink.Publish(context.Background(), paris, okReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Saint Denis:FR:1")
	assert.Contains(t, err.Error(), "leader not available")
}
