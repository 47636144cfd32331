package topology

import (
	"sort"

	"firestige.xyz/vlanswitch/internal/core"
)

// EdgeRegistry is the set of port numbers that appear in any VLAN membership.
// It is computed once from the static table and never updated.
type EdgeRegistry struct {
	ports map[core.PortNo]struct{}
}

// NewEdgeRegistry collects the edge ports of t.
func NewEdgeRegistry(t *Table) *EdgeRegistry {
	r := &EdgeRegistry{ports: make(map[core.PortNo]struct{})}
	for _, id := range t.order {
		for _, m := range t.members[id] {
			r.ports[m.Port] = struct{}{}
		}
	}
	return r
}

// IsEdge reports whether port is a member port of some VLAN on any switch.
func (r *EdgeRegistry) IsEdge(port core.PortNo) bool {
	_, ok := r.ports[port]
	return ok
}

// Ports returns the edge ports in ascending order.
func (r *EdgeRegistry) Ports() []core.PortNo {
	out := make([]core.PortNo, 0, len(r.ports))
	for p := range r.ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of distinct edge ports.
func (r *EdgeRegistry) Len() int { return len(r.ports) }
