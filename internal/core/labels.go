// Package core defines core types.
package core

// Structured log field names shared by the engine and its adapters.
const (
	LabelVLAN     = "vlan"
	LabelSwitch   = "switch"
	LabelInPort   = "in_port"
	LabelSrcMAC   = "src_mac"
	LabelDstMAC   = "dst_mac"
	LabelOutPort  = "out_port"
	LabelBufferID = "buffer_id"
	LabelDecision = "decision"
)
