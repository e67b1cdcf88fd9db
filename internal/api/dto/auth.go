package dto

import (
	"time"

	"github.com/kybernus/license-api/internal/domain/account"
)

// RegisterRequest opens a trial account. The password is optional; accounts
// without one sign in through the identity provider.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

// RegisterResponse is returned with 201
type RegisterResponse struct {
	LicenseKey string         `json:"licenseKey"`
	Status     account.Status `json:"status"`
	Tier       account.Tier   `json:"tier"`
	Limit      int            `json:"limit"`
	Token      string         `json:"token"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token      string `json:"token"`
	LicenseKey string `json:"licenseKey"`
}

// AuthURLResponse is the identity provider consent URL and its CSRF state
type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// AccountResponse summarises the signed in account
type AccountResponse struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	LicenseKey      string         `json:"licenseKey"`
	Status          account.Status `json:"status"`
	Tier            account.Tier   `json:"tier"`
	Usage           int            `json:"usage"`
	Limit           int            `json:"limit"`
	Remaining       int            `json:"remaining"`
	AvatarURL       string         `json:"avatarUrl,omitempty"`
	LastValidatedAt *time.Time     `json:"lastValidatedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// ToAccountResponse maps an account to its public view
func ToAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		Email:           a.Email,
		LicenseKey:      a.LicenseKey,
		Status:          a.Status,
		Tier:            a.EffectiveTier(),
		Usage:           a.QuotaUsage,
		Limit:           a.QuotaLimit,
		Remaining:       a.Remaining(),
		AvatarURL:       a.AvatarURL,
		LastValidatedAt: a.LastValidatedAt,
		CreatedAt:       a.CreatedAt,
	}
}
