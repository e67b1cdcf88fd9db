package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/account"
)

const (
	googleIssuer      = "https://accounts.google.com"
	googleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleProvider implements account.IdentityProvider. The id_token returned
// with the access token is verified against Google's keys; when it is missing
// the profile comes from the userinfo endpoint.
type GoogleProvider struct {
	oauth2Cfg   *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleProvider creates the Google identity provider
func NewGoogleProvider(cfg config.GoogleOAuthConfig, timeout time.Duration) *GoogleProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	keyCtx := oidc.ClientContext(context.Background(), httpClient)
	keySet := oidc.NewRemoteKeySet(keyCtx, googleJWKSURL)

	return &GoogleProvider{
		oauth2Cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier:    oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: cfg.ClientID}),
		userInfoURL: googleUserInfoURL,
		httpClient:  httpClient,
	}
}

// Name returns the display name used in error messages
func (p *GoogleProvider) Name() string {
	return "Google"
}

// AuthCodeURL returns the consent page URL carrying state
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Cfg.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades an authorization code for a verified profile
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*account.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2Cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" && p.verifier != nil {
		return p.fromIDToken(ctx, rawIDToken)
	}
	return p.fromUserInfo(ctx, token)
}

func (p *GoogleProvider) fromIDToken(ctx context.Context, raw string) (*account.Identity, error) {
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", claims.Email)
	}

	return &account.Identity{
		Provider:  account.IdentityGoogle,
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}

func (p *GoogleProvider) fromUserInfo(ctx context.Context, token *oauth2.Token) (*account.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.oauth2Cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("userinfo is missing id or email")
	}
	if !info.VerifiedEmail {
		return nil, fmt.Errorf("email %s is not verified", info.Email)
	}

	return &account.Identity{
		Provider:  account.IdentityGoogle,
		Subject:   info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
