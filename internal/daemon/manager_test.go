package daemon

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"firestige.xyz/vlanswitch/internal/core"
)

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadPIDFile(filepath.Join(dir, "missing.pid")); !errors.Is(err, core.ErrDaemonNotRunning) {
		t.Errorf("missing file error = %v, want ErrDaemonNotRunning", err)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPIDFile(bad); err == nil {
		t.Error("expected error for malformed PID file")
	}

	good := filepath.Join(dir, "good.pid")
	if err := os.WriteFile(good, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPIDFile(good)
	if err != nil || pid != os.Getpid() {
		t.Errorf("ReadPIDFile() = %d, %v", pid, err)
	}
	if !IsRunning(good) {
		t.Error("IsRunning() = false for the test process")
	}
}

func TestStopDaemon(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleep, "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()

	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	socketPath := filepath.Join(dir, "child.sock")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	if err := StopDaemon(pidFile, socketPath, 5*time.Second); err != nil {
		t.Fatalf("StopDaemon() failed: %v", err)
	}
	if IsRunning(pidFile) {
		t.Error("child still running")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file not removed")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not removed")
	}

	if err := StopDaemon(pidFile, socketPath, time.Second); !errors.Is(err, core.ErrDaemonNotRunning) {
		t.Errorf("second StopDaemon() error = %v, want ErrDaemonNotRunning", err)
	}
}
