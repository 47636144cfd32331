// Package core defines core types with zero external dependencies.
package core

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// VLANID identifies a VLAN. It is compared as an opaque identifier and never
// parsed as a number by the decision logic.
type VLANID string

// DefaultVLAN is the VLAN every port not listed in the topology belongs to.
const DefaultVLAN VLANID = "1"

// IsDefault reports whether v is the default VLAN.
func (v VLANID) IsDefault() bool { return v == DefaultVLAN }

func (v VLANID) String() string { return string(v) }

// SwitchID is the datapath identifier of a switch.
type SwitchID uint64

func (s SwitchID) String() string { return strconv.FormatUint(uint64(s), 10) }

// PortNo is a switch port number.
type PortNo uint32

// Reserved output ports understood by the switch.
const (
	PortFlood      PortNo = 0xfffffffb // every port except ingress
	PortController PortNo = 0xfffffffd // punt to the controller
)

// IsReserved reports whether p is a reserved (virtual) port.
func (p PortNo) IsReserved() bool { return p >= 0xffffff00 }

func (p PortNo) String() string {
	switch p {
	case PortFlood:
		return "FLOOD"
	case PortController:
		return "CONTROLLER"
	}
	return strconv.FormatUint(uint64(p), 10)
}

// BufferID references a packet held in the switch's buffer.
type BufferID uint32

// NoBuffer means the packet is not buffered on the switch and the full
// payload travels with the event.
const NoBuffer BufferID = 0xffffffff

// Buffered reports whether b refers to a switch-side buffer.
func (b BufferID) Buffered() bool { return b != NoBuffer }

// MaxLenNoBuffer asks the switch to send the whole packet to the controller
// without buffering it.
const MaxLenNoBuffer uint16 = 0xffff

// Rule priorities.
const (
	CatchAllPriority uint16 = 0
	FlowPriority     uint16 = 1
)

// MAC is a 48-bit Ethernet hardware address.
type MAC [6]byte

// BroadcastMAC is ff:ff:ff:ff:ff:ff.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon or dash separated hardware address.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	s = strings.ReplaceAll(s, "-", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		m[i] = b[0]
	}
	return m, nil
}

// MustParseMAC is ParseMAC that panics on error. Intended for tests and
// constants.
func MustParseMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsMulticast reports whether the group bit is set.
func (m MAC) IsMulticast() bool { return m[0]&0x01 != 0 }

// MarshalText implements encoding.TextMarshaler.
func (m MAC) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MAC) UnmarshalText(b []byte) error {
	parsed, err := ParseMAC(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
