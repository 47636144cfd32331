// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w", err) and
// test with errors.Is.
var (
	// Topology errors
	ErrTopologyInvalid = errors.New("vlanswitch: invalid topology")
	ErrTopologyOverlap = errors.New("vlanswitch: port already assigned to another vlan")

	// Lookup errors
	ErrNotFound     = errors.New("vlanswitch: not found")
	ErrVLANNotFound = errors.New("vlanswitch: vlan not found")

	// Event decoding errors
	ErrInvalidMAC    = errors.New("vlanswitch: invalid mac address")
	ErrFrameTooShort = errors.New("vlanswitch: frame too short")
	ErrUnknownEvent  = errors.New("vlanswitch: unknown event type")

	// Event bus errors
	ErrBusClosed = errors.New("vlanswitch: event bus closed")
	ErrQueueFull = errors.New("vlanswitch: event queue full")

	// Configuration errors
	ErrConfigInvalid = errors.New("vlanswitch: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("vlanswitch: daemon not running")
)
