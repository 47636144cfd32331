// Package controller wires the tables, the decision engine and the event
// bus into one running learning switch.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/dispatch"
	"firestige.xyz/vlanswitch/internal/engine"
	"firestige.xyz/vlanswitch/internal/eventbus"
	"firestige.xyz/vlanswitch/internal/fdb"
	"firestige.xyz/vlanswitch/internal/metrics"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Options tunes the event bus.
type Options struct {
	Partitions int
	QueueSize  int
	Logger     *slog.Logger
}

// Controller owns every table. Events are submitted asynchronously and
// handled per switch, in order, by the event bus partitions. Queries may be
// made from any goroutine.
type Controller struct {
	table    *topology.Table
	edges    *topology.EdgeRegistry
	bindings topology.BindingStore
	fdb      *fdb.Table
	engine   *engine.Engine
	bus      *eventbus.SwitchEventBus
	logger   *slog.Logger
	started  time.Time

	mu       sync.RWMutex
	switches map[core.SwitchID]time.Time
}

// New builds a controller over the static topology. bindings may be nil, in
// which case an in-memory store is used.
func New(table *topology.Table, bindings topology.BindingStore, d dispatch.Dispatcher, opts Options) (*Controller, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil topology table", core.ErrTopologyInvalid)
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if bindings == nil {
		bindings = topology.NewMemoryBindings()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		table:    table,
		edges:    topology.NewEdgeRegistry(table),
		bindings: bindings,
		fdb:      fdb.New(),
		bus:      eventbus.NewSwitchEventBus(opts.Partitions, opts.QueueSize),
		logger:   logger,
		started:  time.Now(),
		switches: make(map[core.SwitchID]time.Time),
	}
	c.engine = engine.New(table, c.fdb, d, engine.WithLogger(logger))

	if err := c.bus.SubscribeSwitchConnected(c.onSwitchConnected); err != nil {
		return nil, err
	}
	if err := c.bus.SubscribePacketIn(c.onPacketIn); err != nil {
		return nil, err
	}

	logger.Info("controller ready",
		"vlans", table.Len(),
		"edge_ports", c.edges.Len(),
		"partitions", c.bus.GetStats().PartitionCount,
	)
	return c, nil
}

func (c *Controller) onSwitchConnected(ev core.SwitchConnected) error {
	c.mu.Lock()
	c.switches[ev.Switch] = time.Now()
	c.mu.Unlock()
	return c.engine.HandleSwitchConnected(context.Background(), ev)
}

func (c *Controller) onPacketIn(ev core.PacketIn) error {
	c.engine.HandlePacketIn(context.Background(), ev)
	return nil
}

// SubmitSwitchConnected queues a handshake event.
func (c *Controller) SubmitSwitchConnected(ev core.SwitchConnected) error {
	return c.bus.PublishSwitchConnected(ev)
}

// SubmitPacketIn queues a packet-in event.
func (c *Controller) SubmitPacketIn(ev core.PacketIn) error {
	return c.bus.PublishPacketIn(ev)
}

// LookupVLAN resolves (port, sw) against the static topology.
func (c *Controller) LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID {
	return c.table.LookupVLAN(port, sw)
}

// PortsInVLAN lists the member ports of vlan on sw in configuration order.
func (c *Controller) PortsInVLAN(vlan core.VLANID, sw core.SwitchID) []core.PortNo {
	return c.table.PortsInVLAN(vlan, sw)
}

// VLANs returns the static topology definitions.
func (c *Controller) VLANs() []topology.VLANDef {
	return c.table.Defs()
}

// Edges returns the sorted edge port numbers.
func (c *Controller) Edges() []core.PortNo {
	return c.edges.Ports()
}

// FDBEntries returns learned entries matching f.
func (c *Controller) FDBEntries(f fdb.Filter) []fdb.Entry {
	return c.fdb.Entries(f)
}

// AddBinding records an administrative binding of m to vlan.
func (c *Controller) AddBinding(ctx context.Context, vlan core.VLANID, m topology.Member) error {
	if err := c.bindings.Add(ctx, vlan, m); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "binding added", core.LabelVLAN, string(vlan), core.LabelSwitch, m.Switch, "port", m.Port)
	return nil
}

// RemoveVLAN drops every binding of vlan and forgets what was learned in it.
// It returns core.ErrVLANNotFound when vlan has no binding.
func (c *Controller) RemoveVLAN(ctx context.Context, vlan core.VLANID) error {
	if err := c.bindings.RemoveVLAN(ctx, vlan); err != nil {
		return err
	}
	n := c.fdb.ClearVLAN(vlan)
	c.logger.InfoContext(ctx, "vlan bindings removed", core.LabelVLAN, string(vlan), "fdb_cleared", n)
	return nil
}

// Bindings lists the administrative bindings.
func (c *Controller) Bindings(ctx context.Context) ([]topology.VLANDef, error) {
	return c.bindings.List(ctx)
}

// Stats is a snapshot of controller state.
type Stats struct {
	Uptime    string          `json:"uptime"`
	VLANs     int             `json:"vlans"`
	EdgePorts int             `json:"edge_ports"`
	Switches  []core.SwitchID `json:"switches"`
	FDB       int             `json:"fdb_entries"`
	Bus       *eventbus.Stats `json:"bus"`
}

// Stats returns a snapshot and refreshes the forwarding table gauge.
func (c *Controller) Stats() Stats {
	n := c.fdb.Len()
	metrics.FDBEntries.Set(float64(n))

	c.mu.RLock()
	switches := make([]core.SwitchID, 0, len(c.switches))
	for sw := range c.switches {
		switches = append(switches, sw)
	}
	c.mu.RUnlock()
	sort.Slice(switches, func(i, j int) bool { return switches[i] < switches[j] })

	return Stats{
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		VLANs:     c.table.Len(),
		EdgePorts: c.edges.Len(),
		Switches:  switches,
		FDB:       n,
		Bus:       c.bus.GetStats(),
	}
}

// Close drains queued events and closes the binding store.
func (c *Controller) Close() error {
	if err := c.bus.Close(); err != nil {
		return err
	}
	return c.bindings.Close()
}
