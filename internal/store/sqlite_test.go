package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

func openTemp(t *testing.T) (*SQLiteBindings, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bindings.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	return s, path
}

func TestSQLiteBindingsLifecycle(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "20", topology.Member{Port: 1, Switch: 1}))
	require.NoError(t, s.Add(ctx, "10", topology.Member{Port: 2, Switch: 1}))
	require.NoError(t, s.Add(ctx, "20", topology.Member{Port: 3, Switch: 2}))
	require.NoError(t, s.Add(ctx, "20", topology.Member{Port: 3, Switch: 2}), "duplicates are kept")

	defs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, core.VLANID("20"), defs[0].ID)
	assert.Equal(t, []topology.Member{{Port: 1, Switch: 1}, {Port: 3, Switch: 2}, {Port: 3, Switch: 2}}, defs[0].Members)
	assert.Equal(t, core.VLANID("10"), defs[1].ID)

	require.NoError(t, s.RemoveVLAN(ctx, "20"))
	assert.ErrorIs(t, s.RemoveVLAN(ctx, "20"), core.ErrVLANNotFound)

	defs, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, core.VLANID("10"), defs[0].ID)

	assert.ErrorIs(t, s.Add(ctx, "", topology.Member{Port: 1, Switch: 1}), core.ErrTopologyInvalid)
}

func TestSQLiteBindingsPersist(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "10", topology.Member{Port: 7, Switch: ^core.SwitchID(0)}))
	require.NoError(t, s.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	defs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, ^core.SwitchID(0), defs[0].Members[0].Switch, "full 64-bit datapath ids survive")
}

func TestSQLiteMatchesMemoryStore(t *testing.T) {
	sqlStore, _ := openTemp(t)
	defer sqlStore.Close()
	stores := map[string]topology.BindingStore{
		"memory": topology.NewMemoryBindings(),
		"sqlite": sqlStore,
	}
	ctx := context.Background()

	results := map[string][]topology.VLANDef{}
	for name, s := range stores {
		require.NoError(t, s.Add(ctx, "a", topology.Member{Port: 1, Switch: 1}))
		require.NoError(t, s.Add(ctx, "b", topology.Member{Port: 2, Switch: 1}))
		require.NoError(t, s.RemoveVLAN(ctx, "a"))
		require.NoError(t, s.Add(ctx, "a", topology.Member{Port: 3, Switch: 1}))
		defs, err := s.List(ctx)
		require.NoError(t, err, name)
		results[name] = defs
	}
	assert.Equal(t, results["memory"], results["sqlite"])
}

func TestOpen(t *testing.T) {
	s, err := Open(config.BindingsConfig{Store: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &topology.MemoryBindings{}, s)

	s, err = Open(config.BindingsConfig{Store: "sqlite", Path: filepath.Join(t.TempDir(), "b.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBindings{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.BindingsConfig{Store: "etcd"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
