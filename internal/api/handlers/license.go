package handlers

import (
	"net/http"

	"github.com/kybernus/license-api/internal/api/dto"
	"github.com/kybernus/license-api/internal/domain/license"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/utils"
	"github.com/kybernus/license-api/internal/pkg/validator"
)

// LicenseHandler serves license validation and quota consumption
type LicenseHandler struct {
	licenses  license.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(licenses license.Service, log *logger.Logger, val *validator.Validator) *LicenseHandler {
	return &LicenseHandler{
		licenses:  licenses,
		logger:    log,
		validator: val,
	}
}

// consumeResponse is the consumption payload plus the error code on denial
type consumeResponse struct {
	*license.Consumption
	Error string `json:"error,omitempty"`
}

// validateResponse is the validation payload plus the error code when invalid
type validateResponse struct {
	*license.Validation
	Error string `json:"error,omitempty"`
}

// Validate checks a license key
// @Summary Validate a license key
// @Tags Licenses
// @Accept json
// @Produce json
// @Param request body dto.LicenseKeyRequest true "License key"
// @Success 200 {object} license.Validation
// @Failure 401 {object} license.Validation
// @Router /licenses/validate [post]
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.LicenseKeyRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	v, err := h.licenses.Validate(r.Context(), req.LicenseKey)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	if !v.Valid {
		utils.WriteJSON(w, http.StatusUnauthorized, validateResponse{Validation: v, Error: errors.ErrCodeLicenseInactive})
		return
	}
	utils.WriteJSON(w, http.StatusOK, validateResponse{Validation: v})
}

// Consume uses one project of quota
// @Summary Consume license quota
// @Tags Licenses
// @Accept json
// @Produce json
// @Param request body dto.LicenseKeyRequest true "License key"
// @Success 200 {object} license.Consumption
// @Failure 403 {object} license.Consumption
// @Router /licenses/consume [post]
func (h *LicenseHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req dto.LicenseKeyRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	c, err := h.licenses.Consume(r.Context(), req.LicenseKey)
	if err != nil {
		appErr := errors.As(err)
		if c == nil {
			utils.WriteError(w, appErr)
			return
		}
		utils.WriteJSON(w, appErr.StatusCode, consumeResponse{Consumption: c, Error: appErr.Code})
		return
	}
	utils.WriteJSON(w, http.StatusOK, consumeResponse{Consumption: c})
}
