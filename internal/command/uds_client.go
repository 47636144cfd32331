// Package command implements command channels.
package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/ingress"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second // Default timeout
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Call sends a command and waits for response.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var jsonrpcResp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &jsonrpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Compare as strings: the server echoes the id back as decoded JSON.
	respIDStr := fmt.Sprintf("%v", jsonrpcResp.ID)
	if respIDStr != reqID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, respIDStr)
	}

	return &Response{
		ID:     respIDStr,
		Result: jsonrpcResp.Result,
		Error:  jsonrpcResp.Error,
	}, nil
}

// SwitchConnected submits a switch handshake.
func (c *UDSClient) SwitchConnected(ctx context.Context, sw core.SwitchID) (*Response, error) {
	return c.Call(ctx, MethodSwitchConnected, SwitchConnectedParams{Switch: sw})
}

// PacketIn submits a packet-in.
func (c *UDSClient) PacketIn(ctx context.Context, env ingress.Envelope) (*Response, error) {
	return c.Call(ctx, MethodPacketIn, env)
}

// VLANAdd binds (port, switch) to vlan.
func (c *UDSClient) VLANAdd(ctx context.Context, params VLANAddParams) (*Response, error) {
	return c.Call(ctx, MethodVLANAdd, params)
}

// VLANDelete removes every binding of vlan.
func (c *UDSClient) VLANDelete(ctx context.Context, vlan core.VLANID) (*Response, error) {
	return c.Call(ctx, MethodVLANDelete, VLANDeleteParams{VLAN: vlan})
}

// VLANList lists the static topology and the administrative bindings.
func (c *UDSClient) VLANList(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodVLANList, nil)
}

// VLANLookup resolves the VLAN of (port, switch).
func (c *UDSClient) VLANLookup(ctx context.Context, port core.PortNo, sw core.SwitchID) (*Response, error) {
	return c.Call(ctx, MethodVLANLookup, VLANLookupParams{Port: port, Switch: sw})
}

// EdgeList lists edge ports.
func (c *UDSClient) EdgeList(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodEdgeList, nil)
}

// FDBList lists learned entries, optionally filtered.
func (c *UDSClient) FDBList(ctx context.Context, params FDBListParams) (*Response, error) {
	return c.Call(ctx, MethodFDBList, params)
}

// DaemonStatus is a convenience method for daemon_status command.
func (c *UDSClient) DaemonStatus(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodDaemonStatus, nil)
}

// DaemonStats is a convenience method for daemon_stats command.
func (c *UDSClient) DaemonStats(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodDaemonStats, nil)
}

// ConfigReload is a convenience method for config_reload command.
func (c *UDSClient) ConfigReload(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodConfigReload, nil)
}

// Shutdown asks the daemon to stop.
func (c *UDSClient) Shutdown(ctx context.Context) (*Response, error) {
	return c.Call(ctx, MethodDaemonShutdown, nil)
}

// Ping sends a simple ping command to check if daemon is alive.
// This is a convenience wrapper around daemon_status.
func (c *UDSClient) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}
