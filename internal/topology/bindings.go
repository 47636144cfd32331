package topology

import (
	"context"
	"fmt"
	"sync"

	"firestige.xyz/vlanswitch/internal/core"
)

// BindingStore holds administratively added VLAN bindings. It is separate
// from the static Table and does not influence VLAN resolution.
type BindingStore interface {
	// Add appends m to vlan, creating the VLAN bucket if needed.
	// Duplicates are kept.
	Add(ctx context.Context, vlan core.VLANID, m Member) error
	// RemoveVLAN drops the whole bucket of vlan. It returns an error wrapping
	// core.ErrVLANNotFound when the bucket does not exist.
	RemoveVLAN(ctx context.Context, vlan core.VLANID) error
	// List returns every bucket in insertion order.
	List(ctx context.Context) ([]VLANDef, error)
	Close() error
}

// MemoryBindings is an in-memory BindingStore.
type MemoryBindings struct {
	mu      sync.RWMutex
	order   []core.VLANID
	buckets map[core.VLANID][]Member
}

// NewMemoryBindings creates an empty in-memory store.
func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{buckets: make(map[core.VLANID][]Member)}
}

func (s *MemoryBindings) Add(_ context.Context, vlan core.VLANID, m Member) error {
	if vlan == "" {
		return fmt.Errorf("%w: empty vlan id", core.ErrTopologyInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[vlan]; !ok {
		s.order = append(s.order, vlan)
	}
	s.buckets[vlan] = append(s.buckets[vlan], m)
	return nil
}

func (s *MemoryBindings) RemoveVLAN(_ context.Context, vlan core.VLANID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[vlan]; !ok {
		return fmt.Errorf("remove vlan %s: %w", vlan, core.ErrVLANNotFound)
	}
	delete(s.buckets, vlan)
	for i, id := range s.order {
		if id == vlan {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryBindings) List(_ context.Context) ([]VLANDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]VLANDef, 0, len(s.order))
	for _, id := range s.order {
		members := make([]Member, len(s.buckets[id]))
		copy(members, s.buckets[id])
		defs = append(defs, VLANDef{ID: id, Members: members})
	}
	return defs, nil
}

func (s *MemoryBindings) Close() error { return nil }
