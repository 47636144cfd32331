// Package engine implements the learning-switch decision loop.
package engine

import (
	"context"
	"log/slog"
	"time"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/dispatch"
	"firestige.xyz/vlanswitch/internal/fdb"
	"firestige.xyz/vlanswitch/internal/metrics"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Kind is the forwarding decision taken for a packet-in.
type Kind int

const (
	// Unicast sends the packet out the learned port of its destination.
	Unicast Kind = iota
	// Flood uses the switch's flood primitive. Only taken on the default VLAN.
	Flood
	// VLANMulticast sends one copy out every member port of the VLAN on the switch.
	VLANMulticast
)

func (k Kind) String() string {
	switch k {
	case Unicast:
		return "unicast"
	case Flood:
		return "flood"
	case VLANMulticast:
		return "vlan_multicast"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Decision describes what the engine did with one packet-in. RuleInstalled
// and Emitted report which commands were issued, whether or not the
// dispatcher accepted them.
type Decision struct {
	VLAN          core.VLANID   `json:"vlan"`
	Resolved      bool          `json:"resolved"` // false when the default VLAN was used as fallback
	Kind          Kind          `json:"kind"`
	Actions       []core.Action `json:"actions"`
	RuleInstalled bool          `json:"rule_installed"`
	Emitted       bool          `json:"emitted"`
}

// Topology is the read side of the static VLAN topology.
type Topology interface {
	LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID
	PortsInVLAN(vlan core.VLANID, sw core.SwitchID) []core.PortNo
}

// Engine owns no state of its own: the topology, forwarding table and
// dispatcher are injected. Calls for the same switch must be serialized by
// the caller; calls for different switches may run concurrently.
type Engine struct {
	resolver   *topology.Resolver
	topo       Topology
	fdb        *fdb.Table
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over the given tables.
func New(topo Topology, table *fdb.Table, d dispatch.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		resolver:   topology.NewResolver(topo),
		topo:       topo,
		fdb:        table,
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// HandleSwitchConnected installs the table-miss rule: lowest priority, match
// everything, send the whole packet to the controller.
func (e *Engine) HandleSwitchConnected(ctx context.Context, ev core.SwitchConnected) error {
	metrics.SwitchConnectedTotal.Inc()

	rule := core.InstallRule{
		Switch:   ev.Switch,
		Priority: core.CatchAllPriority,
		Match:    core.Match{},
		Actions:  []core.Action{{Port: core.PortController, MaxLen: core.MaxLenNoBuffer}},
		BufferID: core.NoBuffer,
	}

	e.log().InfoContext(ctx, "switch connected, installing table-miss rule", core.LabelSwitch, ev.Switch)

	if err := e.dispatcher.InstallRule(ctx, rule); err != nil {
		metrics.DispatchErrorsTotal.WithLabelValues("install_rule").Inc()
		e.log().ErrorContext(ctx, "failed to dispatch table-miss rule", core.LabelSwitch, ev.Switch, "error", err)
		return err
	}
	metrics.RulesInstalledTotal.WithLabelValues("catch_all").Inc()
	return nil
}

// HandlePacketIn learns the source, picks the output ports for the
// destination, and dispatches the rule and/or packet. Dispatch failures are
// logged and counted; they never change the returned decision.
func (e *Engine) HandlePacketIn(ctx context.Context, ev core.PacketIn) Decision {
	start := time.Now()
	defer func() { metrics.DecisionLatencySeconds.Observe(time.Since(start).Seconds()) }()

	log := e.log().With(
		core.LabelSwitch, ev.Switch,
		core.LabelInPort, ev.InPort,
		core.LabelSrcMAC, ev.Src.String(),
		core.LabelDstMAC, ev.Dst.String(),
	)

	if ev.Truncated() && !ev.BufferID.Buffered() {
		log.DebugContext(ctx, "packet truncated", "total_len", ev.TotalLen, "payload_len", len(ev.Payload))
	}

	vlan, resolved := e.resolver.Resolve(ev.InPort, ev.Switch)
	if !resolved {
		metrics.DefaultVLANTotal.Inc()
	}
	log = log.With(core.LabelVLAN, string(vlan))

	e.fdb.Record(vlan, ev.Switch, ev.Src, ev.InPort)

	d := Decision{VLAN: vlan, Resolved: resolved}

	if port, ok := e.fdb.Lookup(vlan, ev.Switch, ev.Dst); ok {
		d.Kind = Unicast
		d.Actions = []core.Action{core.Output(port)}
	} else if vlan.IsDefault() {
		d.Kind = Flood
		d.Actions = []core.Action{core.Output(core.PortFlood)}
	} else {
		d.Kind = VLANMulticast
		ports := e.topo.PortsInVLAN(vlan, ev.Switch)
		d.Actions = make([]core.Action, 0, len(ports))
		for _, p := range ports {
			d.Actions = append(d.Actions, core.Output(p))
		}
		if len(ports) == 0 {
			metrics.EmptyMulticastTotal.WithLabelValues(string(vlan)).Inc()
			log.WarnContext(ctx, "vlan has no member port on switch, dropping")
		}
	}

	metrics.PacketInTotal.WithLabelValues(d.Kind.String()).Inc()
	log.DebugContext(ctx, "packet-in decision", core.LabelDecision, d.Kind.String(), "actions", len(d.Actions))

	if d.Kind != Flood {
		in, dst := ev.InPort, ev.Dst
		rule := core.InstallRule{
			Switch:   ev.Switch,
			Priority: core.FlowPriority,
			Match:    core.Match{InPort: &in, EthDst: &dst},
			Actions:  d.Actions,
			BufferID: ev.BufferID,
		}
		if err := e.dispatcher.InstallRule(ctx, rule); err != nil {
			metrics.DispatchErrorsTotal.WithLabelValues("install_rule").Inc()
			log.ErrorContext(ctx, "failed to dispatch rule", "error", err)
		} else {
			metrics.RulesInstalledTotal.WithLabelValues("flow").Inc()
		}
		d.RuleInstalled = true

		// The switch releases its buffered copy through the new rule.
		if ev.BufferID.Buffered() {
			return d
		}
	}

	emit := core.Emit{
		Switch:   ev.Switch,
		InPort:   ev.InPort,
		Actions:  d.Actions,
		BufferID: ev.BufferID,
	}
	if !ev.BufferID.Buffered() {
		emit.Payload = ev.Payload
	}
	if err := e.dispatcher.Emit(ctx, emit); err != nil {
		metrics.DispatchErrorsTotal.WithLabelValues("emit").Inc()
		log.ErrorContext(ctx, "failed to dispatch emit", "error", err)
	} else {
		metrics.PacketsEmittedTotal.WithLabelValues(d.Kind.String()).Inc()
	}
	d.Emitted = true
	return d
}
