package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
)

// Client implements leasestore.Store over HTTP+JSON against a running
// Coordinator Service (server.go's router). A Gateway Orchestrator not
// co-located with the Coordinator binds its orchestrators to a Client
// instead of a direct leasestore.Postgres/Redis binding, matching the
// HTTP+JSON worker transport decided in SPEC_FULL.md §6.2.
type Client struct {
	baseURL    string
	httpClient *http.Client
	credential string
}

func NewClient(baseURL string, timeout time.Duration, credential string) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		credential: credential,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator returned status %d for %s %s", resp.StatusCode, method, path)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) Acquire(ctx context.Context, req leasestore.AcquireRequest) (leasestore.AcquireResponse, error) {
	var resp leasestore.AcquireResponse
	err := c.do(ctx, http.MethodPost, "/v1/leases/acquire", req, &resp)
	return resp, err
}

func (c *Client) Renew(ctx context.Context, req leasestore.RenewRequest) (leasestore.RenewResponse, error) {
	var resp leasestore.RenewResponse
	err := c.do(ctx, http.MethodPost, "/v1/leases/renew", req, &resp)
	return resp, err
}

func (c *Client) Release(ctx context.Context, req leasestore.ReleaseRequest) (leasestore.ReleaseResponse, error) {
	var resp leasestore.ReleaseResponse
	err := c.do(ctx, http.MethodPost, "/v1/leases/release", req, &resp)
	return resp, err
}

func (c *Client) List(ctx context.Context, kind leasestore.Kind) ([]leasestore.Record, error) {
	var records []leasestore.Record
	path := "/v1/leases"
	if kind != "" {
		path += "?kind=" + string(kind)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}
