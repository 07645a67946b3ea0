package mqttbridge

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/trace"
)

func TestNew_DefaultsTopicRoot(t *testing.T) {
	b := New(Config{Broker: "mqtt://localhost:1883"}, trace.New(), nil)
	if b.cfg.TopicRoot != "zigbee2mqtt" {
		t.Errorf("TopicRoot = %q, want zigbee2mqtt", b.cfg.TopicRoot)
	}
}

func TestNew_PreservesExplicitTopicRoot(t *testing.T) {
	b := New(Config{Broker: "mqtt://localhost:1883", TopicRoot: "simroot"}, trace.New(), nil)
	if b.cfg.TopicRoot != "simroot" {
		t.Errorf("TopicRoot = %q, want simroot", b.cfg.TopicRoot)
	}
}

func TestEventTopic(t *testing.T) {
	b := New(Config{Broker: "mqtt://localhost:1883"}, trace.New(), nil)
	got := b.eventTopic(trace.Event{Node: "ZR1", Kind: trace.KindRouteDiscovered})
	if want := "zigbee2mqtt/ZR1"; got != want {
		t.Errorf("eventTopic = %q, want %q", got, want)
	}
}
