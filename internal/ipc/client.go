package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Ludex.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Ludex.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Ludex.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PathsList returns the registered library paths.
func (c *Client) PathsList() (*PathsListResponse, error) {
	var resp PathsListResponse
	if err := c.client.Call("Ludex.PathsList", PathsListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PathsAdd registers a new library path.
func (c *Client) PathsAdd(req PathsAddRequest) (*PathsAddResponse, error) {
	var resp PathsAddResponse
	if err := c.client.Call("Ludex.PathsAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PathsRemove deletes a path and its game data.
func (c *Client) PathsRemove(key PathKey) (*PathsRemoveResponse, error) {
	var resp PathsRemoveResponse
	if err := c.client.Call("Ludex.PathsRemove", PathsRemoveRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncStart begins a sync run.
func (c *Client) SyncStart(req SyncStartRequest) (*SyncStartResponse, error) {
	var resp SyncStartResponse
	if err := c.client.Call("Ludex.SyncStart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncState retrieves the run read model.
func (c *Client) SyncState() (*SyncStateResponse, error) {
	var resp SyncStateResponse
	if err := c.client.Call("Ludex.SyncState", SyncStateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitChoice applies a choice to the active sync path.
func (c *Client) SubmitChoice(req SubmitChoiceRequest) (*SubmitChoiceResponse, error) {
	var resp SubmitChoiceResponse
	if err := c.client.Call("Ludex.SubmitChoice", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchMore issues a follow-up query for the pending provider.
func (c *Client) SearchMore(req SearchMoreRequest) (*SearchMoreResponse, error) {
	var resp SearchMoreResponse
	if err := c.client.Call("Ludex.SearchMore", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Restart re-runs one terminal path.
func (c *Client) Restart(key PathKey) (*RestartResponse, error) {
	var resp RestartResponse
	if err := c.client.Call("Ludex.Restart", RestartRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelSync aborts the active run.
func (c *Client) CancelSync() (*CancelSyncResponse, error) {
	var resp CancelSyncResponse
	if err := c.client.Call("Ludex.CancelSync", CancelSyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelTask cancels the engine's current task.
func (c *Client) CancelTask() (*CancelTaskResponse, error) {
	var resp CancelTaskResponse
	if err := c.client.Call("Ludex.CancelTask", CancelTaskRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Ludex.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
