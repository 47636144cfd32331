package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/core"
)

// ClientInterface is the daemon API the commands use. *command.UDSClient
// implements it.
type ClientInterface interface {
	VLANAdd(ctx context.Context, params command.VLANAddParams) (*command.Response, error)
	VLANDelete(ctx context.Context, vlan core.VLANID) (*command.Response, error)
	VLANList(ctx context.Context) (*command.Response, error)
	VLANLookup(ctx context.Context, port core.PortNo, sw core.SwitchID) (*command.Response, error)
	EdgeList(ctx context.Context) (*command.Response, error)
	FDBList(ctx context.Context, params command.FDBListParams) (*command.Response, error)
	DaemonStatus(ctx context.Context) (*command.Response, error)
	DaemonStats(ctx context.Context) (*command.Response, error)
	ConfigReload(ctx context.Context) (*command.Response, error)
	Shutdown(ctx context.Context) (*command.Response, error)
}

// cli overrides the socket client when set.
var cli ClientInterface

// SetClient injects a client, typically a mock in tests.
func SetClient(c ClientInterface) {
	cli = c
}

// GetClient returns the injected client, if any.
func GetClient() ClientInterface {
	return cli
}

// client returns the injected client or a UDS client for --socket.
func client() ClientInterface {
	if cli != nil {
		return cli
	}
	return command.NewUDSClient(socketPath, callTimeout)
}

// result returns a function that unwraps the response of method into its
// result or an error, so a client call can be passed to it directly:
//
//	res, err := result("daemon_status")(c.DaemonStatus(ctx))
func result(method string) func(*command.Response, error) (interface{}, error) {
	return func(resp *command.Response, err error) (interface{}, error) {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	}
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// decodeResult re-decodes a generic JSON-RPC result into v.
func decodeResult(res interface{}, v interface{}) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
