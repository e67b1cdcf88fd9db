package handlers

import (
	"io"
	"net/http"

	"github.com/kybernus/license-api/internal/api/dto"
	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/utils"
	"github.com/kybernus/license-api/internal/pkg/validator"
)

const maxWebhookBytes = 1 << 20

// BillingHandler serves checkout and the payment provider webhook
type BillingHandler struct {
	billing   billing.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(svc billing.Service, log *logger.Logger, val *validator.Validator) *BillingHandler {
	return &BillingHandler{
		billing:   svc,
		logger:    log,
		validator: val,
	}
}

// Checkout opens a hosted checkout session
// @Summary Create checkout session
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body dto.CheckoutRequest true "Checkout"
// @Success 200 {object} billing.CheckoutSession
// @Failure 400 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	if req.LicenseKey == "" && req.Email == "" {
		utils.WriteError(w, errors.BadRequest("licenseKey or email is required"))
		return
	}

	session, err := h.billing.CreateCheckout(r.Context(), billing.CheckoutRequest{
		Tier:          req.Tier,
		LicenseKey:    req.LicenseKey,
		CustomerEmail: req.Email,
	})
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, session)
}

// Webhook receives payment provider events. The raw body is needed for
// signature verification, so it is read before any decoding.
// @Summary Payment provider webhook
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /webhooks/billing [post]
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Webhook payload too large or unreadable"))
		return
	}

	outcome, err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dto.WebhookResponse{Received: true, Outcome: string(outcome)})
}
