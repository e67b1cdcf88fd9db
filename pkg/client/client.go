package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted Kybernus API
const DefaultBaseURL = "https://api.kybernus.dev"

// Client is the Kybernus API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	token      string // session token for /account
}

// Config holds the client configuration
type Config struct {
	BaseURL    string        // API base URL, DefaultBaseURL when empty
	Timeout    time.Duration // HTTP client timeout (default: 30s)
	UserAgent  string
	HTTPClient *http.Client // Optional custom HTTP client
}

// NewClient creates a new Kybernus API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kybernus-go"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
	}
}

// SetToken sets the session token for authenticated requests
func (c *Client) SetToken(token string) {
	c.token = token
}

// GetToken returns the current session token
func (c *Client) GetToken() string {
	return c.token
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request. Responses with status >= 400 are
// returned as *APIError carrying the raw body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Device returns the device pairing service
func (c *Client) Device() *DeviceService {
	return &DeviceService{client: c, sleep: sleepCtx, now: time.Now}
}

// Licenses returns the license service
func (c *Client) Licenses() *LicenseService {
	return &LicenseService{client: c}
}

// Auth returns the account service
func (c *Client) Auth() *AuthService {
	return &AuthService{client: c}
}

// Billing returns the billing service
func (c *Client) Billing() *BillingService {
	return &BillingService{client: c}
}
