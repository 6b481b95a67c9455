// Package events bridges hot-plug notifications onto MQTT.
//
// The publisher is a hotplug listener: every added, removed, or
// changed event becomes one message on devman/events/{kind}/{family}/
// {address}, and the per-device retained state topic is refreshed so
// late subscribers see the current registry view.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/hotplug"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/mqtt"
	"github.com/samajesteduroyaume/devman/internal/manager"
)

// Broker is the publishing surface the publisher needs.
// *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Viewer resolves device IDs to registry views. *manager.Manager
// satisfies it.
type Viewer interface {
	GetDevice(id device.ID) (manager.View, error)
}

// Message is the JSON payload published for each hot-plug event.
type Message struct {
	Kind      hotplug.EventKind `json:"kind"`
	ID        string            `json:"id"`
	Family    device.Family     `json:"family"`
	Address   string            `json:"address"`
	Class     device.Class      `json:"class,omitempty"`
	State     device.State      `json:"state,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher forwards hot-plug events to an MQTT broker.
type Publisher struct {
	broker Broker
	viewer Viewer
	qos    byte
	topics mqtt.Topics
	now    func() time.Time
}

// NewPublisher creates a publisher over the given broker.
func NewPublisher(broker Broker, viewer Viewer, qos byte) *Publisher {
	return &Publisher{
		broker: broker,
		viewer: viewer,
		qos:    qos,
		now:    time.Now,
	}
}

// HandleHotplug implements hotplug.Listener.
func (p *Publisher) HandleHotplug(_ context.Context, ev hotplug.Event) error {
	msg := Message{
		Kind:      ev.Kind,
		ID:        ev.ID.String(),
		Family:    ev.ID.Family,
		Address:   ev.ID.Address,
		Timestamp: p.now().UTC(),
	}

	// Removed devices are gone from the registry; for the rest the
	// view adds class and state.
	if ev.Kind != hotplug.EventRemoved {
		if v, err := p.viewer.GetDevice(ev.ID); err == nil {
			msg.Class = v.Class
			msg.State = v.State
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	topic := p.topics.Event(string(ev.Kind), string(ev.ID.Family), ev.ID.Address)
	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	return p.refreshState(ev, msg)
}

// refreshState maintains the retained per-device state topic.
func (p *Publisher) refreshState(ev hotplug.Event, msg Message) error {
	topic := p.topics.DeviceState(string(ev.ID.Family), ev.ID.Address)

	// An empty retained payload clears the topic on the broker.
	if ev.Kind == hotplug.EventRemoved {
		if err := p.broker.Publish(topic, nil, p.qos, true); err != nil {
			return fmt.Errorf("clearing state topic: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := p.broker.Publish(topic, payload, p.qos, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}
