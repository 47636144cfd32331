// Package ingress turns raw switch events into core events.
package ingress

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/vlanswitch/internal/core"
)

// ethHeaderLen is dst(6) + src(6) + ethertype(2).
const ethHeaderLen = 14

// Frame holds the Ethernet header fields of a punted packet.
type Frame struct {
	Src          core.MAC
	Dst          core.MAC
	EthernetType layers.EthernetType
}

// DecodeFrame parses the Ethernet header at the start of payload.
func DecodeFrame(payload []byte) (Frame, error) {
	if len(payload) < ethHeaderLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", core.ErrFrameTooShort, len(payload))
	}

	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return Frame{}, fmt.Errorf("decode ethernet: %w", err)
	}

	var f Frame
	copy(f.Src[:], eth.SrcMAC)
	copy(f.Dst[:], eth.DstMAC)
	f.EthernetType = eth.EthernetType
	return f, nil
}

// Normalize fills the source and destination of ev from its payload when
// the caller did not provide them.
func Normalize(ev *core.PacketIn, haveSrc, haveDst bool) error {
	if haveSrc && haveDst {
		return nil
	}
	f, err := DecodeFrame(ev.Payload)
	if err != nil {
		return err
	}
	if !haveSrc {
		ev.Src = f.Src
	}
	if !haveDst {
		ev.Dst = f.Dst
	}
	return nil
}
