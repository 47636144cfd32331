package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDaemon_StartStopIntegration(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := writeConfig(t, tmpDir, `
vlanswitch:
  node:
    hostname: test-daemon-001
  log:
    level: debug
    format: text
    outputs:
      file:
        enabled: true
        path: `+filepath.Join(tmpDir, "vlanswitch.log")+`
  metrics:
    enabled: true
    listen: 127.0.0.1:0
  api:
    enabled: true
    listen: 127.0.0.1:0
  engine:
    partitions: 2
    queue_size: 64
  bindings:
    store: sqlite
  data_dir: `+filepath.Join(tmpDir, "data")+`
  topology:
    vlans:
      - id: "10"
        members:
          - {port: 1, switch: 1}
          - {port: 2, switch: 1}
`)

	socketPath := filepath.Join(tmpDir, "vlanswitch.sock")
	pidFile := filepath.Join(tmpDir, "vlanswitch.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}

	if _, err := os.Stat(pidFile); os.IsNotExist(err) {
		t.Errorf("PID file was not created: %s", pidFile)
	}
	if !IsRunning(pidFile) {
		t.Error("IsRunning() = false for the test process")
	}

	// Give the UDS server a moment to start
	time.Sleep(100 * time.Millisecond)
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Errorf("UDS socket was not created: %s", socketPath)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "data", "bindings.db")); err != nil {
		t.Errorf("sqlite bindings store not created: %v", err)
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- d.Run()
	}()

	client := command.NewUDSClient(socketPath, 5*time.Second)
	ctx := context.Background()

	if resp, err := client.SwitchConnected(ctx, 1); err != nil || resp.Error != nil {
		t.Fatalf("switch_connected failed: %v %+v", err, resp)
	}
	resp, err := client.VLANLookup(ctx, 2, 1)
	if err != nil || resp.Error != nil {
		t.Fatalf("vlan_lookup failed: %v %+v", err, resp)
	}
	if got := resp.Result.(map[string]interface{})["vlan"]; got != "10" {
		t.Errorf("vlan_lookup = %v, want 10", got)
	}
	if resp, err := client.VLANAdd(ctx, command.VLANAddParams{VLAN: "30", Port: 9, Switch: 3}); err != nil || resp.Error != nil {
		t.Fatalf("vlan_add failed: %v %+v", err, resp)
	}

	if resp, err := client.Shutdown(ctx); err != nil || resp.Error != nil {
		t.Fatalf("daemon_shutdown failed: %v %+v", err, resp)
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("daemon.Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop within timeout")
	}

	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("PID file was not removed after shutdown: %s", pidFile)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("UDS socket was not removed after shutdown: %s", socketPath)
	}

	// The binding outlives the daemon.
	d2, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("failed to create second daemon: %v", err)
	}
	if err := d2.Start(); err != nil {
		t.Fatalf("failed to start second daemon: %v", err)
	}
	defer d2.Stop()
	defs, err := d2.controller.Bindings(ctx)
	if err != nil {
		t.Fatalf("Bindings() failed: %v", err)
	}
	want := []topology.VLANDef{{ID: "30", Members: []topology.Member{{Port: 9, Switch: 3}}}}
	if len(defs) != 1 || defs[0].ID != want[0].ID || defs[0].Members[0] != want[0].Members[0] {
		t.Errorf("bindings after restart = %+v, want %+v", defs, want)
	}
}

func TestDaemon_StartRejectsOverlappingTopology(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, `
vlanswitch:
  log:
    level: info
    format: text
  metrics:
    enabled: false
  topology:
    vlans:
      - id: "10"
        members: [{port: 1, switch: 1}]
      - id: "20"
        members: [{port: 1, switch: 1}]
`)

	d, err := New(configPath, filepath.Join(tmpDir, "s.sock"), filepath.Join(tmpDir, "s.pid"))
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	err = d.Start()
	if !errors.Is(err, core.ErrTopologyOverlap) {
		t.Fatalf("Start() error = %v, want ErrTopologyOverlap", err)
	}
	if _, statErr := os.Stat(filepath.Join(tmpDir, "s.pid")); !os.IsNotExist(statErr) {
		t.Error("PID file written for a daemon that failed to start")
	}
}

func TestDaemon_TopologyFile(t *testing.T) {
	tmpDir := t.TempDir()
	topoPath := filepath.Join(tmpDir, "topology.yaml")
	if err := os.WriteFile(topoPath, []byte(`
vlans:
  - id: "20"
    members:
      - {port: 4, switch: 2}
`), 0644); err != nil {
		t.Fatalf("write topology: %v", err)
	}

	configPath := writeConfig(t, tmpDir, `
vlanswitch:
  log:
    level: info
    format: text
  metrics:
    enabled: false
  topology:
    file: `+topoPath+`
    vlans:
      - id: "10"
        members: [{port: 1, switch: 1}]
`)

	d, err := New(configPath, filepath.Join(tmpDir, "s.sock"), "")
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	d.pidFile = ""
	if err := d.Start(); err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}
	defer d.Stop()

	if got := d.controller.LookupVLAN(4, 2); got != "20" {
		t.Errorf("LookupVLAN(4, 2) = %s, want 20", got)
	}
	if got := d.controller.LookupVLAN(1, 1); got != "10" {
		t.Errorf("LookupVLAN(1, 1) = %s, want 10", got)
	}
}
