package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"firestige.xyz/vlanswitch/internal/core"
)

// ReadPIDFile returns the process id recorded in path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, core.ErrDaemonNotRunning
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// IsRunning reports whether the process recorded in pidFile is alive.
func IsRunning(pidFile string) bool {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		return false
	}
	return processAlive(pid)
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 performs the permission and existence checks only.
	return process.Signal(syscall.Signal(0)) == nil
}

// SignalDaemon sends sig to the process recorded in pidFile.
func SignalDaemon(pidFile string, sig syscall.Signal) error {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return core.ErrDaemonNotRunning
		}
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return nil
}

// StopDaemon sends SIGTERM to the process recorded in pidFile and waits up
// to timeout for it to exit. Stale socket and PID files are removed.
func StopDaemon(pidFile, socketPath string, timeout time.Duration) error {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		return err
	}
	if err := SignalDaemon(pidFile, syscall.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon pid %d did not exit within %s", pid, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = os.Remove(socketPath)
	_ = os.Remove(pidFile)
	return nil
}
