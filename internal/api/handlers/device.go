package handlers

import (
	"net/http"

	"github.com/kybernus/license-api/internal/api/dto"
	"github.com/kybernus/license-api/internal/api/middleware"
	"github.com/kybernus/license-api/internal/auth"
	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/device"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/utils"
	"github.com/kybernus/license-api/internal/pkg/validator"
)

// DeviceHandler serves the device pairing flow
type DeviceHandler struct {
	devices   device.Service
	authCfg   config.AuthConfig
	logger    *logger.Logger
	validator *validator.Validator
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(devices device.Service, authCfg config.AuthConfig, log *logger.Logger, val *validator.Validator) *DeviceHandler {
	return &DeviceHandler{
		devices:   devices,
		authCfg:   authCfg,
		logger:    log,
		validator: val,
	}
}

// Code starts a pairing
// @Summary Start device pairing
// @Tags Device
// @Produce json
// @Success 200 {object} device.Code
// @Failure 429 {object} utils.ErrorResponse
// @Router /device/code [post]
func (h *DeviceHandler) Code(w http.ResponseWriter, r *http.Request) {
	code, err := h.devices.IssueCode(r.Context(), middleware.ClientIP(r))
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, code)
}

// Poll reports the pairing state to the CLI
// @Summary Poll device pairing
// @Tags Device
// @Accept json
// @Produce json
// @Param request body dto.DevicePollRequest true "Device code"
// @Success 200 {object} device.PollResult
// @Failure 400 {object} utils.ErrorResponse "expired_token"
// @Failure 429 {object} utils.ErrorResponse "slow_down"
// @Router /device/poll [post]
func (h *DeviceHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var req dto.DevicePollRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	result, err := h.devices.Poll(r.Context(), req.DeviceCode)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// Complete finishes a pairing from the browser. The state cookie is single
// use and cleared whatever the outcome.
// @Summary Complete device pairing
// @Tags Device
// @Accept json
// @Produce json
// @Param request body dto.DeviceCompleteRequest true "Completion"
// @Success 200 {object} device.CompleteResult
// @Failure 400 {object} utils.ErrorResponse
// @Failure 429 {object} utils.ErrorResponse
// @Router /device/complete [post]
func (h *DeviceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var cookieState string
	if c, err := r.Cookie(auth.StateCookie); err == nil {
		cookieState = c.Value
	}
	http.SetCookie(w, auth.ClearCookie(auth.StateCookie, h.authCfg.SecureCookies))

	var req dto.DeviceCompleteRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	result, err := h.devices.Complete(r.Context(), device.CompleteInput{
		UserCode:          req.UserCode,
		AuthorizationCode: req.AuthorizationCode,
		State:             req.State,
		CookieState:       cookieState,
		ClientIP:          middleware.ClientIP(r),
	})
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	token, err := auth.MintSession(result.AccountID, result.Email, h.authCfg.JWTSecret, h.authCfg.SessionExpiry)
	if err != nil {
		// The CLI is already paired; only the dashboard session is lost.
		h.logger.ErrorWithErr(err, "Failed to mint session after device completion")
	} else {
		http.SetCookie(w, auth.SessionCookieFor(token, h.authCfg.SessionExpiry, h.authCfg.SecureCookies))
	}

	middleware.AddLogField(w, "account_id", result.AccountID)
	utils.WriteJSON(w, http.StatusOK, result)
}
