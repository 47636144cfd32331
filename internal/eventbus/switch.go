package eventbus

import (
	"firestige.xyz/vlanswitch/internal/core"
)

// SwitchEventBus carries switch events keyed by switch id, so every event
// of one switch is handled by the same partition in arrival order.
type SwitchEventBus struct {
	bus EventBus
}

// NewSwitchEventBus creates a bus with its own in-memory partitions.
func NewSwitchEventBus(partitionCount, queueSize int) *SwitchEventBus {
	return &SwitchEventBus{bus: NewInMemoryEventBus(partitionCount, queueSize)}
}

// PublishSwitchConnected enqueues a handshake event.
func (s *SwitchEventBus) PublishSwitchConnected(ev core.SwitchConnected) error {
	return s.bus.Publish(&Event{
		Topic:   TopicSwitchConnected,
		Key:     ev.Switch.String(),
		Payload: ev,
	})
}

// PublishPacketIn enqueues a packet-in event.
func (s *SwitchEventBus) PublishPacketIn(ev core.PacketIn) error {
	return s.bus.Publish(&Event{
		Topic:   TopicPacketIn,
		Key:     ev.Switch.String(),
		Payload: ev,
	})
}

// SubscribeSwitchConnected registers the handshake handler.
func (s *SwitchEventBus) SubscribeSwitchConnected(handler func(core.SwitchConnected) error) error {
	return s.bus.Subscribe(TopicSwitchConnected, func(event *Event) error {
		ev, ok := event.Payload.(core.SwitchConnected)
		if !ok {
			return core.ErrUnknownEvent
		}
		return handler(ev)
	})
}

// SubscribePacketIn registers the packet-in handler.
func (s *SwitchEventBus) SubscribePacketIn(handler func(core.PacketIn) error) error {
	return s.bus.Subscribe(TopicPacketIn, func(event *Event) error {
		ev, ok := event.Payload.(core.PacketIn)
		if !ok {
			return core.ErrUnknownEvent
		}
		return handler(ev)
	})
}

// Close drains and stops the underlying bus.
func (s *SwitchEventBus) Close() error {
	return s.bus.Close()
}

// GetStats returns the underlying bus counters.
func (s *SwitchEventBus) GetStats() *Stats {
	return s.bus.GetStats()
}
