// Package topology holds the static VLAN membership of the switch fabric.
package topology

import (
	"fmt"

	"firestige.xyz/vlanswitch/internal/core"
)

// Member is one (port, switch) pair belonging to a VLAN.
type Member struct {
	Port   core.PortNo   `json:"port" yaml:"port" mapstructure:"port"`
	Switch core.SwitchID `json:"switch" yaml:"switch" mapstructure:"switch"`
}

// VLANDef is a VLAN and its ordered member list as it appears in config.
type VLANDef struct {
	ID      core.VLANID `json:"id" yaml:"id" mapstructure:"id"`
	Members []Member    `json:"members" yaml:"members" mapstructure:"members"`
}

// Table is the immutable VLAN topology.
// Ports not listed belong to core.DefaultVLAN.
type Table struct {
	order   []core.VLANID
	members map[core.VLANID][]Member
	index   map[Member]core.VLANID // reverse index for LookupVLAN
}

// New builds a Table from defs, keeping their order.
//
// A (port, switch) pair may appear in at most one VLAN. VLAN ids must be
// non-empty, unique and never the default VLAN; member lists must be non-empty.
func New(defs []VLANDef) (*Table, error) {
	t := &Table{
		order:   make([]core.VLANID, 0, len(defs)),
		members: make(map[core.VLANID][]Member, len(defs)),
		index:   make(map[Member]core.VLANID),
	}

	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("%w: empty vlan id", core.ErrTopologyInvalid)
		}
		if def.ID.IsDefault() {
			return nil, fmt.Errorf("%w: vlan %s is the default vlan and cannot be configured", core.ErrTopologyInvalid, def.ID)
		}
		if _, dup := t.members[def.ID]; dup {
			return nil, fmt.Errorf("%w: vlan %s declared twice", core.ErrTopologyInvalid, def.ID)
		}
		if len(def.Members) == 0 {
			return nil, fmt.Errorf("%w: vlan %s has no members", core.ErrTopologyInvalid, def.ID)
		}

		members := make([]Member, 0, len(def.Members))
		for _, m := range def.Members {
			if owner, taken := t.index[m]; taken {
				return nil, fmt.Errorf("%w: port %d on switch %d in vlan %s and vlan %s",
					core.ErrTopologyOverlap, m.Port, m.Switch, owner, def.ID)
			}
			t.index[m] = def.ID
			members = append(members, m)
		}

		t.order = append(t.order, def.ID)
		t.members[def.ID] = members
	}

	return t, nil
}

// LookupVLAN returns the VLAN containing (port, sw), or core.DefaultVLAN.
func (t *Table) LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID {
	if vlan, ok := t.index[Member{Port: port, Switch: sw}]; ok {
		return vlan
	}
	return core.DefaultVLAN
}

// PortsInVLAN returns the ports of vlan located on sw, in membership order.
// Unknown VLANs and VLANs with no member on sw yield an empty result.
func (t *Table) PortsInVLAN(vlan core.VLANID, sw core.SwitchID) []core.PortNo {
	var ports []core.PortNo
	for _, m := range t.members[vlan] {
		if m.Switch == sw {
			ports = append(ports, m.Port)
		}
	}
	return ports
}

// Has reports whether vlan is configured.
func (t *Table) Has(vlan core.VLANID) bool {
	_, ok := t.members[vlan]
	return ok
}

// VLANs returns the configured VLAN ids in declaration order.
func (t *Table) VLANs() []core.VLANID {
	out := make([]core.VLANID, len(t.order))
	copy(out, t.order)
	return out
}

// Members returns a copy of the member list of vlan.
func (t *Table) Members(vlan core.VLANID) []Member {
	src := t.members[vlan]
	if src == nil {
		return nil
	}
	out := make([]Member, len(src))
	copy(out, src)
	return out
}

// Defs returns the table as an ordered definition list.
func (t *Table) Defs() []VLANDef {
	defs := make([]VLANDef, 0, len(t.order))
	for _, id := range t.order {
		defs = append(defs, VLANDef{ID: id, Members: t.Members(id)})
	}
	return defs
}

// Len returns the number of configured VLANs.
func (t *Table) Len() int { return len(t.order) }
