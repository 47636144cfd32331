package ingress

import (
	"encoding/json"
	"fmt"

	"firestige.xyz/vlanswitch/internal/core"
)

// Event types on the events topic and the control socket.
const (
	TypeSwitchConnected = "switch_connected"
	TypePacketIn        = "packet_in"
)

// Envelope is the wire format of a switch event.
//
// Example JSON:
//
//	{
//	  "type":      "packet_in",
//	  "switch_id": 1,
//	  "in_port":   3,
//	  "src_mac":   "00:00:00:00:00:01",
//	  "dst_mac":   "00:00:00:00:00:02",
//	  "buffer_id": 4294967295,
//	  "payload":   "AAAAAAACAAAAAAABCAA="
//	}
//
// src_mac and dst_mac may be omitted, in which case they are read from the
// Ethernet header in payload. An omitted buffer_id means unbuffered.
type Envelope struct {
	Type     string         `json:"type"`
	Switch   core.SwitchID  `json:"switch_id"`
	InPort   core.PortNo    `json:"in_port,omitempty"`
	Src      *core.MAC      `json:"src_mac,omitempty"`
	Dst      *core.MAC      `json:"dst_mac,omitempty"`
	BufferID *core.BufferID `json:"buffer_id,omitempty"`
	TotalLen uint32         `json:"total_len,omitempty"`
	Payload  []byte         `json:"payload,omitempty"`
}

// PacketIn converts the envelope into a normalized packet-in.
func (e *Envelope) PacketIn() (core.PacketIn, error) {
	ev := core.PacketIn{
		Switch:   e.Switch,
		InPort:   e.InPort,
		BufferID: core.NoBuffer,
		TotalLen: e.TotalLen,
		Payload:  e.Payload,
	}
	if e.BufferID != nil {
		ev.BufferID = *e.BufferID
	}
	if e.Src != nil {
		ev.Src = *e.Src
	}
	if e.Dst != nil {
		ev.Dst = *e.Dst
	}
	if err := Normalize(&ev, e.Src != nil, e.Dst != nil); err != nil {
		return core.PacketIn{}, err
	}
	return ev, nil
}

// Sink receives decoded switch events. *controller.Controller implements it.
type Sink interface {
	SubmitSwitchConnected(ev core.SwitchConnected) error
	SubmitPacketIn(ev core.PacketIn) error
}

// Decode parses one JSON envelope and returns either a core.SwitchConnected
// or a core.PacketIn.
func Decode(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return env.Event()
}

// Event returns the core event the envelope describes.
func (e *Envelope) Event() (any, error) {
	switch e.Type {
	case TypeSwitchConnected:
		return core.SwitchConnected{Switch: e.Switch}, nil
	case TypePacketIn:
		return e.PacketIn()
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownEvent, e.Type)
	}
}

// Submit hands ev to sink.
func Submit(sink Sink, ev any) error {
	switch ev := ev.(type) {
	case core.SwitchConnected:
		return sink.SubmitSwitchConnected(ev)
	case core.PacketIn:
		return sink.SubmitPacketIn(ev)
	default:
		return fmt.Errorf("%w: %T", core.ErrUnknownEvent, ev)
	}
}
