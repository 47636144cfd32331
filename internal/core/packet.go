// Package core defines core data structures with zero external dependencies.
package core

// SwitchConnected is raised when a switch completes its handshake.
type SwitchConnected struct {
	Switch SwitchID `json:"switch_id"`
}

// PacketIn is raised when a switch punts a packet to the controller because
// no rule matched it.
type PacketIn struct {
	Switch   SwitchID `json:"switch_id"`
	InPort   PortNo   `json:"in_port"`
	Src      MAC      `json:"src_mac"`
	Dst      MAC      `json:"dst_mac"`
	BufferID BufferID `json:"buffer_id"`
	TotalLen uint32   `json:"total_len,omitempty"` // original frame length, 0 = unknown
	Payload  []byte   `json:"payload,omitempty"`
}

// Truncated reports whether the switch sent fewer bytes than the frame held.
func (p *PacketIn) Truncated() bool {
	return p.TotalLen > 0 && int(p.TotalLen) > len(p.Payload)
}

// Action is a single output action.
type Action struct {
	Port   PortNo `json:"port"`
	MaxLen uint16 `json:"max_len,omitempty"` // only meaningful for PortController
}

// Output builds an output action towards port.
func Output(port PortNo) Action { return Action{Port: port} }

// Match selects packets for a rule. Nil fields are wildcards.
type Match struct {
	InPort *PortNo `json:"in_port,omitempty"`
	EthDst *MAC    `json:"eth_dst,omitempty"`
}

// IsEmpty reports whether the match is a full wildcard.
func (m Match) IsEmpty() bool { return m.InPort == nil && m.EthDst == nil }

// InstallRule asks a switch to install a forwarding rule.
type InstallRule struct {
	Switch   SwitchID `json:"switch_id"`
	Priority uint16   `json:"priority"`
	Match    Match    `json:"match"`
	Actions  []Action `json:"actions"`
	BufferID BufferID `json:"buffer_id"`
}

// Emit asks a switch to send a packet out through the given actions.
type Emit struct {
	Switch   SwitchID `json:"switch_id"`
	InPort   PortNo   `json:"in_port"`
	Actions  []Action `json:"actions"`
	BufferID BufferID `json:"buffer_id"`
	Payload  []byte   `json:"payload,omitempty"`
}
