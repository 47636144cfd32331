// Package command implements control plane command handling.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/vlanswitch/internal/controller"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/fdb"
	"firestige.xyz/vlanswitch/internal/ingress"
	"firestige.xyz/vlanswitch/internal/metrics"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Version is reported by daemon_status.
const Version = "0.1.0"

// Controller is the part of *controller.Controller the handler drives.
type Controller interface {
	SubmitSwitchConnected(ev core.SwitchConnected) error
	SubmitPacketIn(ev core.PacketIn) error
	AddBinding(ctx context.Context, vlan core.VLANID, m topology.Member) error
	RemoveVLAN(ctx context.Context, vlan core.VLANID) error
	Bindings(ctx context.Context) ([]topology.VLANDef, error)
	LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID
	PortsInVLAN(vlan core.VLANID, sw core.SwitchID) []core.PortNo
	VLANs() []topology.VLANDef
	Edges() []core.PortNo
	FDBEntries(f fdb.Filter) []fdb.Entry
	Stats() controller.Stats
}

// ConfigReloader is the interface for reloading global configuration.
type ConfigReloader interface {
	Reload() error
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	ctrl           Controller
	configReloader ConfigReloader
	shutdownFunc   func() // Called by daemon_shutdown to trigger graceful stop
	startTime      int64  // Unix timestamp of daemon start for uptime calc
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(ctrl Controller, reloader ConfigReloader) *CommandHandler {
	return &CommandHandler{
		ctrl:           ctrl,
		configReloader: reloader,
		startTime:      time.Now().Unix(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"` // e.g., "vlan_add", "packet_in"
	Params json.RawMessage `json:"params"` // command-specific parameters
	ID     string          `json:"id"`     // request ID for tracking
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
	ErrCodeNotFound       = -32004 // Referenced object does not exist
)

// Method names.
const (
	MethodSwitchConnected = "switch_connected"
	MethodPacketIn        = "packet_in"
	MethodVLANAdd         = "vlan_add"
	MethodVLANDelete      = "vlan_delete"
	MethodVLANList        = "vlan_list"
	MethodVLANLookup      = "vlan_lookup"
	MethodEdgeList        = "edge_list"
	MethodFDBList         = "fdb_list"
	MethodDaemonStatus    = "daemon_status"
	MethodDaemonStats     = "daemon_stats"
	MethodConfigReload    = "config_reload"
	MethodDaemonShutdown  = "daemon_shutdown"
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	resp := h.dispatch(ctx, cmd)
	result := "ok"
	if resp.Error != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Method, result).Inc()
	return resp
}

func (h *CommandHandler) dispatch(ctx context.Context, cmd Command) Response {
	// Packet-ins arrive at line rate; keep them out of the info log.
	if cmd.Method == MethodPacketIn {
		slog.Debug("handling command", "method", cmd.Method, "id", cmd.ID)
	} else {
		slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)
	}

	switch cmd.Method {
	case MethodSwitchConnected:
		return h.handleSwitchConnected(ctx, cmd)
	case MethodPacketIn:
		return h.handlePacketIn(ctx, cmd)
	case MethodVLANAdd:
		return h.handleVLANAdd(ctx, cmd)
	case MethodVLANDelete:
		return h.handleVLANDelete(ctx, cmd)
	case MethodVLANList:
		return h.handleVLANList(ctx, cmd)
	case MethodVLANLookup:
		return h.handleVLANLookup(ctx, cmd)
	case MethodEdgeList:
		return h.handleEdgeList(ctx, cmd)
	case MethodFDBList:
		return h.handleFDBList(ctx, cmd)
	case MethodConfigReload:
		return h.handleConfigReload(ctx, cmd)
	case MethodDaemonShutdown:
		return h.handleDaemonShutdown(ctx, cmd)
	case MethodDaemonStatus:
		return h.handleDaemonStatus(ctx, cmd)
	case MethodDaemonStats:
		return h.handleDaemonStats(ctx, cmd)
	default:
		return errorResponse(cmd, ErrCodeMethodNotFound, "method %q not found", cmd.Method)
	}
}

func errorResponse(cmd Command, code int, format string, args ...interface{}) Response {
	return Response{
		ID: cmd.ID,
		Error: &ErrorInfo{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		},
	}
}

// decodeParams unmarshals cmd.Params into v. Empty params leave v untouched.
func decodeParams(cmd Command, v interface{}) *Response {
	if len(cmd.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Params, v); err != nil {
		resp := errorResponse(cmd, ErrCodeInvalidParams, "invalid params: %v", err)
		return &resp
	}
	return nil
}

// submitError maps an event bus error to a response.
func submitError(cmd Command, err error) Response {
	if errors.Is(err, core.ErrQueueFull) || errors.Is(err, core.ErrBusClosed) {
		return errorResponse(cmd, ErrCodeInternalError, "event rejected: %v", err)
	}
	return errorResponse(cmd, ErrCodeInternalError, "submit failed: %v", err)
}

// SwitchConnectedParams represents parameters for switch_connected command.
type SwitchConnectedParams struct {
	Switch core.SwitchID `json:"switch_id"`
}

func (h *CommandHandler) handleSwitchConnected(_ context.Context, cmd Command) Response {
	var params SwitchConnectedParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	if err := h.ctrl.SubmitSwitchConnected(core.SwitchConnected{Switch: params.Switch}); err != nil {
		return submitError(cmd, err)
	}
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"queued": true, "switch_id": params.Switch},
	}
}

// handlePacketIn accepts the same envelope as the events topic, without the
// type field.
func (h *CommandHandler) handlePacketIn(_ context.Context, cmd Command) Response {
	var env ingress.Envelope
	if resp := decodeParams(cmd, &env); resp != nil {
		return *resp
	}
	ev, err := env.PacketIn()
	if err != nil {
		return errorResponse(cmd, ErrCodeInvalidParams, "invalid packet_in: %v", err)
	}
	if err := h.ctrl.SubmitPacketIn(ev); err != nil {
		return submitError(cmd, err)
	}
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"queued": true, "switch_id": ev.Switch},
	}
}

// VLANAddParams represents parameters for vlan_add command.
type VLANAddParams struct {
	VLAN   core.VLANID   `json:"vlan"`
	Port   core.PortNo   `json:"port"`
	Switch core.SwitchID `json:"switch"`
}

func (h *CommandHandler) handleVLANAdd(ctx context.Context, cmd Command) Response {
	var params VLANAddParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	m := topology.Member{Port: params.Port, Switch: params.Switch}
	if err := h.ctrl.AddBinding(ctx, params.VLAN, m); err != nil {
		if errors.Is(err, core.ErrTopologyInvalid) {
			return errorResponse(cmd, ErrCodeInvalidParams, "add binding failed: %v", err)
		}
		return errorResponse(cmd, ErrCodeInternalError, "add binding failed: %v", err)
	}
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"vlan":   params.VLAN,
			"port":   params.Port,
			"switch": params.Switch,
			"status": "added",
		},
	}
}

// VLANDeleteParams represents parameters for vlan_delete command.
type VLANDeleteParams struct {
	VLAN core.VLANID `json:"vlan"`
}

func (h *CommandHandler) handleVLANDelete(ctx context.Context, cmd Command) Response {
	var params VLANDeleteParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	if params.VLAN == "" {
		return errorResponse(cmd, ErrCodeInvalidParams, "vlan is required")
	}
	if err := h.ctrl.RemoveVLAN(ctx, params.VLAN); err != nil {
		if errors.Is(err, core.ErrVLANNotFound) {
			return errorResponse(cmd, ErrCodeNotFound, "vlan %q not found", params.VLAN)
		}
		return errorResponse(cmd, ErrCodeInternalError, "delete vlan failed: %v", err)
	}
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"vlan": params.VLAN, "status": "deleted"},
	}
}

func (h *CommandHandler) handleVLANList(ctx context.Context, cmd Command) Response {
	bindings, err := h.ctrl.Bindings(ctx)
	if err != nil {
		return errorResponse(cmd, ErrCodeInternalError, "list bindings failed: %v", err)
	}
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"vlans":    h.ctrl.VLANs(),
			"bindings": bindings,
		},
	}
}

// VLANLookupParams represents parameters for vlan_lookup command.
type VLANLookupParams struct {
	Port   core.PortNo   `json:"port"`
	Switch core.SwitchID `json:"switch"`
}

func (h *CommandHandler) handleVLANLookup(_ context.Context, cmd Command) Response {
	var params VLANLookupParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	vlan := h.ctrl.LookupVLAN(params.Port, params.Switch)
	ports := h.ctrl.PortsInVLAN(vlan, params.Switch)
	if ports == nil {
		ports = []core.PortNo{}
	}
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"vlan":    vlan,
			"default": vlan.IsDefault(),
			"ports":   ports,
		},
	}
}

func (h *CommandHandler) handleEdgeList(_ context.Context, cmd Command) Response {
	ports := h.ctrl.Edges()
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"ports": ports, "count": len(ports)},
	}
}

// FDBListParams represents parameters for fdb_list command.
type FDBListParams struct {
	VLAN   core.VLANID    `json:"vlan,omitempty"`
	Switch *core.SwitchID `json:"switch,omitempty"`
}

func (h *CommandHandler) handleFDBList(_ context.Context, cmd Command) Response {
	var params FDBListParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	entries := h.ctrl.FDBEntries(fdb.Filter{VLAN: params.VLAN, Switch: params.Switch})
	if entries == nil {
		entries = []fdb.Entry{}
	}
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"entries": entries, "count": len(entries)},
	}
}

// handleConfigReload handles config_reload command.
func (h *CommandHandler) handleConfigReload(_ context.Context, cmd Command) Response {
	if h.configReloader == nil {
		return errorResponse(cmd, ErrCodeInternalError, "config reload not supported")
	}
	if err := h.configReloader.Reload(); err != nil {
		return errorResponse(cmd, ErrCodeInternalError, "reload config failed: %v", err)
	}
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"status": "reloaded"},
	}
}

// handleDaemonShutdown triggers graceful shutdown after the response is sent.
func (h *CommandHandler) handleDaemonShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd, ErrCodeInternalError, "shutdown not supported")
	}
	go h.shutdownFunc()
	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"status": "shutting_down"},
	}
}

// handleDaemonStatus returns daemon status information.
func (h *CommandHandler) handleDaemonStatus(_ context.Context, cmd Command) Response {
	stats := h.ctrl.Stats()
	uptimeSeconds := time.Now().Unix() - h.startTime
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"version":      Version,
			"uptime_sec":   uptimeSeconds,
			"vlans":        stats.VLANs,
			"edge_ports":   stats.EdgePorts,
			"switches":     stats.Switches,
			"switch_count": len(stats.Switches),
		},
	}
}

// handleDaemonStats returns runtime statistics from the controller.
func (h *CommandHandler) handleDaemonStats(_ context.Context, cmd Command) Response {
	return Response{
		ID:     cmd.ID,
		Result: h.ctrl.Stats(),
	}
}
