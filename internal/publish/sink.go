// Package publish forwards monitor events to an MQTT broker so the session
// state of a device can be followed off-device.
package publish

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/monitor"
)

// TypePlaceholder in a topic is replaced by the event type.
const TypePlaceholder = "{type}"

// sinkBuffer is the number of events held while the broker is slow.
const sinkBuffer = 64

// Publisher sends one message. [Client] implements it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Sink publishes monitor events. Handle never blocks, so it can be
// registered directly with [monitor.Monitor.OnEvent]; [Sink.Run] does the
// publishing.
type Sink struct {
	pub      Publisher
	topic    string
	qos      byte
	retained bool

	events    chan monitor.Event
	dropped   atomic.Uint64
	published atomic.Uint64
}

// NewSink returns a Sink publishing through pub with the topic, QoS and
// retain flag from cfg.
func NewSink(pub Publisher, cfg config.MQTTConfig) *Sink {
	return &Sink{
		pub:      pub,
		topic:    cfg.Topic,
		qos:      byte(cfg.QoS),
		retained: cfg.Retained,
		events:   make(chan monitor.Event, sinkBuffer),
	}
}

// Attach registers the sink with m and returns the unregister func.
func (s *Sink) Attach(m *monitor.Monitor) func() {
	return m.OnEvent(s.Handle)
}

// Handle queues ev for publishing. When the buffer is full ev is dropped.
func (s *Sink) Handle(ev monitor.Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
		slog.Warn("publish: buffer full, event dropped", "type", ev.Type)
	}
}

// Run publishes queued events until ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.publish(ev)
		}
	}
}

func (s *Sink) publish(ev monitor.Event) {
	payload, err := ev.MarshalJSON()
	if err != nil {
		slog.Warn("publish: encode event", "type", ev.Type, "err", err)
		return
	}
	topic := Topic(s.topic, ev)
	if err := s.pub.Publish(topic, s.qos, s.retained, payload); err != nil {
		slog.Warn("publish: send event", "topic", topic, "err", err)
		return
	}
	s.published.Add(1)
	slog.Debug("publish: event sent", "topic", topic)
}

// Dropped returns the number of events discarded because the buffer was full.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

// Published returns the number of events the broker accepted.
func (s *Sink) Published() uint64 { return s.published.Load() }

// Topic expands pattern for ev.
func Topic(pattern string, ev monitor.Event) string {
	return strings.ReplaceAll(pattern, TypePlaceholder, ev.Type.String())
}
