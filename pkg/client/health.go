package client

import "context"

// HealthResponse is the liveness answer
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports the API's dependencies
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Store    string `json:"store"`
}

// Health checks that the API process is up
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, "GET", "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ready checks that the API can reach its database and transient store. A
// degraded API answers with a 503 *APIError.
func (c *Client) Ready(ctx context.Context) (*ReadyResponse, error) {
	var ready ReadyResponse
	if err := c.doRequest(ctx, "GET", "/readyz", nil, &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// Ping is a simple connectivity test
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}
