// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketInTotal counts packet-in events by decision (unicast/flood/vlan_multicast)
	PacketInTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_packet_in_total",
			Help: "Total number of packet-in events handled, by decision",
		},
		[]string{"decision"},
	)

	// SwitchConnectedTotal counts switch handshakes
	SwitchConnectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vlanswitch_switch_connected_total",
			Help: "Total number of switch connected events",
		},
	)

	// RulesInstalledTotal counts install-rule commands by kind (catch_all/flow)
	RulesInstalledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_rules_installed_total",
			Help: "Total number of install rule commands dispatched",
		},
		[]string{"kind"},
	)

	// PacketsEmittedTotal counts emit commands by decision
	PacketsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_packets_emitted_total",
			Help: "Total number of emit commands dispatched",
		},
		[]string{"decision"},
	)

	// DispatchErrorsTotal counts commands the dispatcher failed to hand off
	DispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_dispatch_errors_total",
			Help: "Total number of dispatch failures",
		},
		[]string{"command"},
	)

	// DefaultVLANTotal counts packet-ins that fell back to the default vlan
	DefaultVLANTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vlanswitch_default_vlan_total",
			Help: "Total number of packet-in events resolved to the default vlan",
		},
	)

	// EmptyMulticastTotal counts vlan multicasts with no member port on the switch
	EmptyMulticastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_empty_multicast_total",
			Help: "Total number of vlan multicasts that selected no output port",
		},
		[]string{"vlan"},
	)

	// FDBEntries tracks learned forwarding entries
	FDBEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vlanswitch_fdb_entries",
			Help: "Number of learned forwarding table entries",
		},
	)

	// EventsDroppedTotal counts events rejected by the event bus
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_events_dropped_total",
			Help: "Total number of events dropped before reaching the engine",
		},
		[]string{"topic", "reason"},
	)

	// DecisionLatencySeconds measures packet-in handling time
	DecisionLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vlanswitch_decision_latency_seconds",
			Help:    "Latency of packet-in handling in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// CommandsTotal counts control plane commands by method and result
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlanswitch_commands_total",
			Help: "Total number of control plane commands handled",
		},
		[]string{"method", "result"},
	)
)
