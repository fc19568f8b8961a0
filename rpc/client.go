package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/indexer"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// NewClient returns a client for the endpoint at url. token may be empty.
func NewClient(url, token string) *Client {
	return &Client{url: url, token: token, http: &http.Client{Timeout: 15 * time.Second}}
}

type clientResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Call invokes method with params and decodes the result into out (if non-nil).
// A JSON-RPC error is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	if params == nil {
		params = struct{}{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	id := uuid.NewString()
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: method, Params: rawParams})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	var r clientResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("rpc %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if r.ID != id {
		return fmt.Errorf("rpc %s: response id %q does not match request %q", method, r.ID, id)
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

// BlockHeight returns the current chain height.
func (c *Client) BlockHeight(ctx context.Context) (int64, error) {
	var h int64
	err := c.Call(ctx, "getBlockHeight", nil, &h)
	return h, err
}

// Balance returns an account's native balance and next nonce.
func (c *Client) Balance(ctx context.Context, address string) (*BalanceView, error) {
	var v BalanceView
	if err := c.Call(ctx, "getBalance", map[string]string{"address": address}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// TokenBalance returns owner's balance of mint; an empty mint means the stake mint.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (*TokenBalanceView, error) {
	var v TokenBalanceView
	if err := c.Call(ctx, "getTokenBalance", map[string]string{"owner": owner, "mint": mint}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Config returns the game config.
func (c *Client) Config(ctx context.Context) (*core.GameConfig, error) {
	var cfg core.GameConfig
	if err := c.Call(ctx, "getConfig", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Room returns a room and its status.
func (c *Client) Room(ctx context.Context, roomID uint64) (*RoomView, error) {
	var v RoomView
	if err := c.Call(ctx, "getRoom", map[string]uint64{"room_id": roomID}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RoomVault returns where a room's stake is held.
func (c *Client) RoomVault(ctx context.Context, roomID uint64) (*VaultView, error) {
	var v VaultView
	if err := c.Call(ctx, "getRoomVault", map[string]uint64{"room_id": roomID}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RoomsByPlayer lists the rooms player created or joined.
func (c *Client) RoomsByPlayer(ctx context.Context, player string) ([]uint64, error) {
	var ids []uint64
	err := c.Call(ctx, "getRoomsByPlayer", map[string]string{"player": player}, &ids)
	return ids, err
}

// Replay recomputes a finished room's match. preimageHex may be empty to use
// the recorded reveal.
func (c *Client) Replay(ctx context.Context, roomID uint64, preimageHex string) (*ReplayView, error) {
	var v ReplayView
	params := map[string]any{"room_id": roomID}
	if preimageHex != "" {
		params["preimage"] = preimageHex
	}
	if err := c.Call(ctx, "replayRoom", params, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SendTx submits a signed transaction and returns its id.
func (c *Client) SendTx(ctx context.Context, tx *core.Transaction) (string, error) {
	var out struct {
		TxID string `json:"tx_id"`
	}
	if err := c.Call(ctx, "sendTx", tx, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// TxResult returns the outcome of an executed transaction.
func (c *Client) TxResult(ctx context.Context, txID string) (*indexer.TxResult, error) {
	var r indexer.TxResult
	if err := c.Call(ctx, "getTxResult", map[string]string{"tx_id": txID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitTx polls until txID has executed or ctx is done. A rejected transaction
// is returned as an error wrapping its failure kind.
func (c *Client) WaitTx(ctx context.Context, txID string, poll time.Duration) (*indexer.TxResult, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		r, err := c.TxResult(ctx, txID)
		switch {
		case err == nil && r.OK:
			return r, nil
		case err == nil:
			code := kindCodes[r.Kind]
			if code == 0 {
				code = CodeTxRejected
			}
			return r, &Error{Code: code, Message: r.Error}
		case !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
