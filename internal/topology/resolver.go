package topology

import "firestige.xyz/vlanswitch/internal/core"

// VLANLookup is implemented by *Table.
type VLANLookup interface {
	LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID
}

// Resolver maps the ingress of a packet-in to its VLAN.
type Resolver struct {
	table VLANLookup
}

// NewResolver creates a resolver over t.
func NewResolver(t VLANLookup) *Resolver {
	return &Resolver{table: t}
}

// Resolve returns the VLAN of (port, sw). configured is false when the pair
// is not listed and the default VLAN was used.
func (r *Resolver) Resolve(port core.PortNo, sw core.SwitchID) (vlan core.VLANID, configured bool) {
	vlan = r.table.LookupVLAN(port, sw)
	return vlan, !vlan.IsDefault()
}
