// Package fdb implements the learned forwarding table, scoped per VLAN per switch.
package fdb

import (
	"sort"
	"sync"

	"firestige.xyz/vlanswitch/internal/core"
)

// Entry is one learned (vlan, switch, mac) -> port binding.
type Entry struct {
	VLAN   core.VLANID   `json:"vlan"`
	Switch core.SwitchID `json:"switch"`
	MAC    core.MAC      `json:"mac"`
	Port   core.PortNo   `json:"port"`
}

// Filter narrows Entries. Zero fields match everything.
type Filter struct {
	VLAN   core.VLANID
	Switch *core.SwitchID
}

func (f Filter) matchVLAN(v core.VLANID) bool { return f.VLAN == "" || f.VLAN == v }

func (f Filter) matchSwitch(s core.SwitchID) bool { return f.Switch == nil || *f.Switch == s }

type bucketKey struct {
	vlan core.VLANID
	sw   core.SwitchID
}

// bucket holds the MACs of one (vlan, switch). Writes for different switches
// never contend on the same lock.
type bucket struct {
	mu    sync.RWMutex
	ports map[core.MAC]core.PortNo
}

// Table maps VLAN -> switch -> MAC -> port. Entries never age out.
type Table struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*bucket
}

// New creates an empty table.
func New() *Table {
	return &Table{buckets: make(map[bucketKey]*bucket)}
}

func (t *Table) bucket(vlan core.VLANID, sw core.SwitchID, create bool) *bucket {
	key := bucketKey{vlan: vlan, sw: sw}

	t.mu.RLock()
	b := t.buckets[key]
	t.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b = t.buckets[key]; b == nil {
		b = &bucket{ports: make(map[core.MAC]core.PortNo)}
		t.buckets[key] = b
	}
	return b
}

// Record stores mac -> port for (vlan, sw), replacing any previous port.
func (t *Table) Record(vlan core.VLANID, sw core.SwitchID, mac core.MAC, port core.PortNo) {
	b := t.bucket(vlan, sw, true)
	b.mu.Lock()
	b.ports[mac] = port
	b.mu.Unlock()
}

// Lookup returns the port mac was last seen on in (vlan, sw).
// A miss is a normal outcome.
func (t *Table) Lookup(vlan core.VLANID, sw core.SwitchID, mac core.MAC) (core.PortNo, bool) {
	b := t.bucket(vlan, sw, false)
	if b == nil {
		return 0, false
	}
	b.mu.RLock()
	port, ok := b.ports[mac]
	b.mu.RUnlock()
	return port, ok
}

// ClearVLAN drops every switch bucket of vlan and returns the number of
// entries removed.
func (t *Table) ClearVLAN(vlan core.VLANID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, b := range t.buckets {
		if key.vlan != vlan {
			continue
		}
		b.mu.RLock()
		removed += len(b.ports)
		b.mu.RUnlock()
		delete(t.buckets, key)
	}
	return removed
}

// Entries returns a sorted snapshot of the entries matching f.
func (t *Table) Entries(f Filter) []Entry {
	t.mu.RLock()
	var out []Entry
	for key, b := range t.buckets {
		if !f.matchVLAN(key.vlan) || !f.matchSwitch(key.sw) {
			continue
		}
		b.mu.RLock()
		for mac, port := range b.ports {
			out = append(out, Entry{VLAN: key.vlan, Switch: key.sw, MAC: mac, Port: port})
		}
		b.mu.RUnlock()
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VLAN != b.VLAN {
			return a.VLAN < b.VLAN
		}
		if a.Switch != b.Switch {
			return a.Switch < b.Switch
		}
		return a.MAC.String() < b.MAC.String()
	})
	return out
}

// Len returns the total number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, b := range t.buckets {
		b.mu.RLock()
		n += len(b.ports)
		b.mu.RUnlock()
	}
	return n
}
