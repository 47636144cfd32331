package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/core"
)

func TestRunVLANAdd(t *testing.T) {
	params := command.VLANAddParams{VLAN: "10", Port: 3, Switch: 1}
	mockClient := new(MockClient)
	mockClient.On("VLANAdd", mock.Anything, params).Return(okResponse(map[string]interface{}{"vlan": "10"}), nil)

	var buf bytes.Buffer
	require.NoError(t, runVLANAdd(context.Background(), mockClient, &buf, params))
	assert.Contains(t, buf.String(), "Port 3 on switch 1 bound to VLAN 10")
	mockClient.AssertExpectations(t)
}

func TestRunVLANDelete_NotFound(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("VLANDelete", mock.Anything, core.VLANID("99")).Return(&command.Response{
		ID:    "1",
		Error: &command.ErrorInfo{Code: command.ErrCodeNotFound, Message: "vlan not found"},
	}, nil)

	var buf bytes.Buffer
	err := runVLANDelete(context.Background(), mockClient, &buf, "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vlan_delete failed: vlan not found")
	assert.Empty(t, buf.String())
}

func TestRunVLANLookup(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("VLANLookup", mock.Anything, core.PortNo(2), core.SwitchID(1)).Return(okResponse(map[string]interface{}{
		"vlan":    "10",
		"default": false,
		"ports":   []interface{}{float64(2), float64(1)},
	}), nil)
	mockClient.On("VLANLookup", mock.Anything, core.PortNo(7), core.SwitchID(1)).Return(okResponse(map[string]interface{}{
		"vlan":    "1",
		"default": true,
		"ports":   []interface{}{},
	}), nil)

	var buf bytes.Buffer
	require.NoError(t, runVLANLookup(context.Background(), mockClient, &buf, 2, 1))
	assert.Contains(t, buf.String(), "port 2 on switch 1: vlan 10\n")
	assert.Contains(t, buf.String(), "members on switch 1: [2 1]")

	buf.Reset()
	require.NoError(t, runVLANLookup(context.Background(), mockClient, &buf, 7, 1))
	assert.Equal(t, "port 7 on switch 1: vlan 1 (default)\n", buf.String())
}

func TestRunFDB(t *testing.T) {
	sw := core.SwitchID(1)
	params := command.FDBListParams{VLAN: "10", Switch: &sw}
	mockClient := new(MockClient)
	mockClient.On("FDBList", mock.Anything, params).Return(okResponse(map[string]interface{}{
		"entries": []interface{}{
			map[string]interface{}{"vlan": "10", "switch": float64(1), "mac": "00:00:00:00:00:aa", "port": float64(2)},
		},
		"count": float64(1),
	}), nil)

	var buf bytes.Buffer
	require.NoError(t, runFDB(context.Background(), mockClient, &buf, params))
	out := buf.String()
	assert.Contains(t, out, "VLAN")
	assert.Contains(t, out, "00:00:00:00:00:aa")
	assert.Contains(t, out, "1 entries")
}

func TestRunStatusAndStats(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("DaemonStatus", mock.Anything).Return(okResponse(map[string]interface{}{"version": command.Version}), nil)
	mockClient.On("DaemonStats", mock.Anything).Return(nil, errors.New("dial unix: no such file"))

	var buf bytes.Buffer
	require.NoError(t, runStatus(context.Background(), mockClient, &buf))
	assert.Contains(t, buf.String(), `"version": "`+command.Version+`"`)

	err := runStats(context.Background(), mockClient, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon_stats")
}

func TestRunStop(t *testing.T) {
	t.Run("via socket", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Shutdown", mock.Anything).Return(okResponse(nil), nil)

		called := false
		var buf bytes.Buffer
		require.NoError(t, runStop(context.Background(), mockClient, &buf, func() error {
			called = true
			return nil
		}))
		assert.False(t, called, "fallback not used when the socket answers")
		assert.Contains(t, buf.String(), "Shutdown requested")
	})

	t.Run("fallback to signal", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Shutdown", mock.Anything).Return(nil, errors.New("connection refused"))

		var buf bytes.Buffer
		require.NoError(t, runStop(context.Background(), mockClient, &buf, func() error { return nil }))
		assert.Contains(t, buf.String(), "signalling daemon")
		assert.Contains(t, buf.String(), "Daemon stopped")
	})

	t.Run("not running", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Shutdown", mock.Anything).Return(nil, errors.New("connection refused"))

		var buf bytes.Buffer
		err := runStop(context.Background(), mockClient, &buf, func() error { return core.ErrDaemonNotRunning })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
vlans:
  - id: "10"
    members:
      - {port: 1, switch: 1}
      - {port: 2, switch: 1}
  - id: "20"
    members:
      - {port: 3, switch: 1}
`), 0644))

	var buf bytes.Buffer
	require.NoError(t, runValidate(&buf, good, ""))
	assert.Contains(t, buf.String(), "VALID: 2 vlan(s), 3 edge port(s)")
	assert.Contains(t, buf.String(), "vlan 10: 2 member(s)")

	overlap := filepath.Join(dir, "overlap.yaml")
	require.NoError(t, os.WriteFile(overlap, []byte(`
vlans:
  - id: "10"
    members: [{port: 1, switch: 1}]
  - id: "20"
    members: [{port: 1, switch: 1}]
`), 0644))
	err := runValidate(&buf, overlap, "")
	assert.ErrorIs(t, err, core.ErrTopologyOverlap)

	assert.Error(t, runValidate(&buf, filepath.Join(dir, "missing.yaml"), ""))
}

func TestRunShellLine(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("FDBList", mock.Anything, command.FDBListParams{VLAN: "10"}).Return(okResponse(map[string]interface{}{"entries": []interface{}{}}), nil).Once()
	mockClient.On("FDBList", mock.Anything, command.FDBListParams{}).Return(okResponse(map[string]interface{}{"entries": []interface{}{}}), nil).Once()

	originalCli := GetClient()
	SetClient(mockClient)
	defer SetClient(originalCli)

	root := &cobra.Command{Use: "vlanswitch", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(fdbCmd)
	root.AddCommand(&cobra.Command{Use: "shell", Run: func(*cobra.Command, []string) {}})

	var buf bytes.Buffer
	require.NoError(t, runShellLine(root, "fdb --vlan 10", &buf))
	// --vlan must not carry over to the next line.
	require.NoError(t, runShellLine(root, "fdb", &buf))
	assert.Contains(t, buf.String(), "0 entries")
	mockClient.AssertExpectations(t)

	err := runShellLine(root, "shell", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available inside the shell")
}

func TestShellCompleter(t *testing.T) {
	root := &cobra.Command{Use: "vlanswitch"}
	vlan := &cobra.Command{Use: "vlan"}
	vlan.AddCommand(&cobra.Command{Use: "add", Run: func(*cobra.Command, []string) {}})
	vlan.AddCommand(&cobra.Command{Use: "list", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(vlan)
	root.AddCommand(&cobra.Command{Use: "validate", Run: func(*cobra.Command, []string) {}})

	complete := shellCompleter(root)
	assert.ElementsMatch(t, []string{"vlan", "validate"}, complete("v"))
	assert.Equal(t, []string{"vlan add"}, complete("vlan a"))
	assert.ElementsMatch(t, []string{"vlan add", "vlan list"}, complete("vlan "))
	assert.Nil(t, complete("nope "))
}
