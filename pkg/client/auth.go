package client

import (
	"context"
	"time"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// RegisterResponse is a new trial account
type RegisterResponse struct {
	LicenseKey string `json:"licenseKey"`
	Status     string `json:"status"`
	Tier       string `json:"tier"`
	Limit      int    `json:"limit"`
	Token      string `json:"token"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token      string `json:"token"`
	LicenseKey string `json:"licenseKey"`
}

// Account is the signed in account
type Account struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	LicenseKey      string     `json:"licenseKey"`
	Status          string     `json:"status"`
	Tier            string     `json:"tier"`
	Usage           int        `json:"usage"`
	Limit           int        `json:"limit"`
	Remaining       int        `json:"remaining"`
	LastValidatedAt *time.Time `json:"lastValidatedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// AuthService manages accounts and sessions
type AuthService struct {
	client *Client
}

// Register opens a trial account and keeps its session token
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := s.client.doRequest(ctx, "POST", "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		s.client.SetToken(resp.Token)
	}
	return &resp, nil
}

// Login authenticates with email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := s.client.doRequest(ctx, "POST", "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token != "" {
		s.client.SetToken(resp.Token)
	}
	return &resp, nil
}

// Account returns the account of the current session token
func (s *AuthService) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := s.client.doRequest(ctx, "GET", "/account", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}
