// Package serversync mirrors significant dashboard state to a remote
// per-user session store, decoupled from UI responsiveness. Sync and
// restore failures are surfaced as readable values, never thrown into
// the render path.
package serversync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Dicklesworthstone/hud/internal/state"
)

// statePath is the remote session store endpoint: GET restores, PUT syncs.
const statePath = "/api/dashboard/state"

// DefaultTimeout bounds each request to the session store.
const DefaultTimeout = 10 * time.Second

// Client talks to the remote session store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the store at baseURL. The token, when
// non-empty, is sent as a bearer credential. A zero timeout falls back
// to DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the authenticated user's stored state. Returns
// (nil, nil) when the server has nothing stored.
func (c *Client) Fetch(ctx context.Context) (*state.DashboardState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statePath, nil)
	if err != nil {
		return nil, fmt.Errorf("building restore request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote state: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetching remote state: server returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading remote state: %w", err)
	}
	var snap state.DashboardState
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parsing remote state: %w", err)
	}
	return &snap, nil
}

// Push uploads a full snapshot to the session store.
func (c *Client) Push(ctx context.Context, snap state.DashboardState) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializing state for sync: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+statePath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("syncing state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("syncing state: server returned %s", resp.Status)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
