// Package sinks publishes rendered day reports to message brokers.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("mqtt publish timed out")

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// MQTT publishes every field of a day report as a retained value under
// <prefix>/<location>/forecast_<day>/<field>, plus a status topic.
type MQTT struct {
	client publisher
	conn   mqtt.Client
	prefix string
	logger *slog.Logger
}

type message struct {
	topic   string
	payload string
}

// NewMQTT connects to the broker and returns the sink. The connection is
// retried in the background by the client after the first success.
func NewMQTT(ctx context.Context, cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	m := newMQTT(client, cfg.TopicPrefix, logger)
	m.conn = client
	return m, nil
}

func newMQTT(client publisher, prefix string, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{client: client, prefix: strings.Trim(prefix, "/"), logger: logger}
}

func (m *MQTT) Publish(ctx context.Context, loc weather.Location, report weather.DayReport) error {
	base := fmt.Sprintf("%s/%s/forecast_%d", m.prefix, topicSegment(loc.Key()), report.Day)

	msgs := []message{{base + "/status", string(report.Status)}}
	if report.Status == weather.StatusNoData {
		msgs = append(msgs, message{base + "/reason", report.Reason})
	}
	if report.Date != "" {
		msgs = append(msgs, message{base + "/date", report.Date})
	}
	for _, v := range report.Values {
		msgs = append(msgs, message{base + "/" + string(v.Field), strconv.FormatFloat(v.Value, 'f', -1, 64)})
	}

	for _, msg := range msgs {
		if err := wait(ctx, m.client.Publish(msg.topic, 1, true, msg.payload)); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", msg.topic, err)
		}
	}
	m.logger.Debug("mqtt day published", "topic", base, "messages", len(msgs))
	return nil
}

// Close disconnects from the broker when the sink owns the connection.
func (m *MQTT) Close() {
	if m.conn != nil {
		m.conn.Disconnect(250)
	}
}

// wait blocks until token completes, ctx ends or the publish timeout passes.
func wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errPublishTimeout
	}
}

// topicSegment lowercases s and replaces characters that are not safe in a
// single MQTT topic level.
func topicSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ':', ' ', ',':
			return '_'
		}
		return r
	}, strings.ToLower(s))
}
