package eventbus

import "sync"

// Topics carried by the controller bus.
const (
	TopicSwitchConnected = "switch_connected"
	TopicPacketIn        = "packet_in"
)

// Event is one message on the bus. Events with the same Key are delivered
// to their handler in publish order.
type Event struct {
	Topic   string `json:"topic"`
	Key     string `json:"key"`
	Payload any    `json:"payload"`
}

// Handler processes one event. A returned error is logged and counted, the
// event is not redelivered.
type Handler func(event *Event) error

// partition is one ordered queue with its own consumer goroutine.
type partition struct {
	id    int
	queue chan *Event
	done  sync.WaitGroup
}
