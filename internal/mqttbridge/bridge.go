// Package mqttbridge republishes simulation trace events onto an MQTT
// broker in the topic shape a Zigbee2MQTT deployment uses
// (zigbee2mqtt/<node>), so a dashboard or automation already wired to
// a real Zigbee2MQTT bridge can point at a running simulation instead.
// Grounded on the connection/publish lifecycle of the teacher's
// internal/mqtt package, trimmed to the one-way publish this bridge
// needs: there is no discovery config and no inbound subscription,
// only bridge availability and per-node event publishing.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/zigbeesim/internal/trace"
)

// Config describes how to reach the broker and where to publish.
type Config struct {
	Broker    string // e.g. "mqtt://localhost:1883"
	Username  string
	Password  string
	TopicRoot string // defaults to "zigbee2mqtt"
}

// Bridge subscribes to a trace.Bus and republishes every event under
// TopicRoot/<node>, plus a retained TopicRoot/bridge/state
// online/offline message matching Zigbee2MQTT's own convention.
type Bridge struct {
	cfg    Config
	tracer *trace.Bus
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Bridge but does not connect. Call Run to connect and
// begin forwarding events; Run blocks until ctx is cancelled.
func New(cfg Config, tracer *trace.Bus, logger *slog.Logger) *Bridge {
	if cfg.TopicRoot == "" {
		cfg.TopicRoot = "zigbee2mqtt"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg, tracer: tracer, logger: logger}
}

// Run connects to the broker and forwards trace events until ctx is
// cancelled, at which point it publishes an offline availability
// message and disconnects.
func (b *Bridge) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}

	stateTopic := b.cfg.TopicRoot + "/bridge/state"

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: b.cfg.Username,
		ConnectPassword: []byte(b.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   stateTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("mqttbridge connected to broker", "broker", b.cfg.Broker)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.publish(publishCtx, cm, stateTopic, []byte("online"), true)
		},
		OnConnectError: func(err error) {
			b.logger.Warn("mqttbridge connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "zigbeesim-bridge",
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqttbridge connect: %w", err)
	}
	b.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("mqttbridge initial connection timed out, will retry in background", "error", err)
	}

	events := b.tracer.Subscribe(256)
	defer b.tracer.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			b.publish(stopCtx, cm, stateTopic, []byte("offline"), true)
			cancel()
			return cm.Disconnect(context.Background())
		case e, ok := <-events:
			if !ok {
				return nil
			}
			b.forward(ctx, cm, e)
		}
	}
}

// eventTopic returns the topic an event is published to.
func (b *Bridge) eventTopic(e trace.Event) string {
	return b.cfg.TopicRoot + "/" + e.Node
}

func (b *Bridge) forward(ctx context.Context, cm *autopaho.ConnectionManager, e trace.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("mqttbridge marshal event", "error", err)
		return
	}
	b.publish(ctx, cm, b.eventTopic(e), payload, false)
}

func (b *Bridge) publish(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte, retain bool) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
		Retain:  retain,
	}); err != nil {
		b.logger.Warn("mqttbridge publish failed", "topic", topic, "error", err)
	}
}
