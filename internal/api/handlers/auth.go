package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kybernus/license-api/internal/api/dto"
	"github.com/kybernus/license-api/internal/api/middleware"
	"github.com/kybernus/license-api/internal/auth"
	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/utils"
	"github.com/kybernus/license-api/internal/pkg/validator"
)

// StateIssuer hands out CSRF states and consent URLs for the browser step
type StateIssuer interface {
	IssueState(ctx context.Context) (string, error)
	AuthCodeURL(state string) string
}

// AuthHandler handles account and session requests
type AuthHandler struct {
	accounts  account.Service
	states    StateIssuer
	authCfg   config.AuthConfig
	stateTTL  time.Duration
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	accounts account.Service,
	states StateIssuer,
	cfg *config.Config,
	log *logger.Logger,
	val *validator.Validator,
) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		states:    states,
		authCfg:   cfg.Auth,
		stateTTL:  cfg.Device.StateTTL,
		logger:    log,
		validator: val,
	}
}

// Register opens a trial account
// @Summary Register a trial account
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration"
// @Success 201 {object} dto.RegisterResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse "Email already registered"
// @Failure 429 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	token, err := h.startSession(w, acct)
	if err != nil {
		utils.WriteError(w, errors.Internal("Failed to create session", err))
		return
	}

	middleware.AddLogField(w, "account_id", acct.ID)
	utils.WriteJSON(w, http.StatusCreated, dto.RegisterResponse{
		LicenseKey: acct.LicenseKey,
		Status:     acct.Status,
		Tier:       acct.EffectiveTier(),
		Limit:      acct.QuotaLimit,
		Token:      token,
	})
}

// Login checks a password
// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} utils.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	acct, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.With("email", req.Email).Warn("Login failed")
		utils.WriteErr(w, err)
		return
	}

	token, err := h.startSession(w, acct)
	if err != nil {
		utils.WriteError(w, errors.Internal("Failed to create session", err))
		return
	}

	middleware.AddLogField(w, "account_id", acct.ID)
	utils.WriteJSON(w, http.StatusOK, dto.LoginResponse{Token: token, LicenseKey: acct.LicenseKey})
}

// GoogleURL issues a CSRF state and returns the consent URL. The state is
// set as a cookie too; /device/complete requires both to match.
// @Summary Identity provider consent URL
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.AuthURLResponse
// @Router /auth/google/url [get]
func (h *AuthHandler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.IssueState(r.Context())
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	http.SetCookie(w, auth.StateCookieFor(state, h.stateTTL, h.authCfg.SecureCookies))
	utils.WriteJSON(w, http.StatusOK, dto.AuthURLResponse{URL: h.states.AuthCodeURL(state), State: state})
}

// Account returns the signed in account
// @Summary Current account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.AccountResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /account [get]
func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
		return
	}

	acct, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dto.ToAccountResponse(acct))
}

// Logout clears the session cookie
// @Summary Log out
// @Tags Auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearCookie(auth.SessionCookie, h.authCfg.SecureCookies))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, acct *account.Account) (string, error) {
	token, err := auth.MintSession(acct.ID, acct.Email, h.authCfg.JWTSecret, h.authCfg.SessionExpiry)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, auth.SessionCookieFor(token, h.authCfg.SessionExpiry, h.authCfg.SecureCookies))
	return token, nil
}
