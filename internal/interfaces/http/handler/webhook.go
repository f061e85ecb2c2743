package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avwx/portal/internal/application/billing"
	"github.com/avwx/portal/internal/interfaces/http/dto"
)

// maxWebhookBodySize caps Stripe webhook payloads at 64KB
const maxWebhookBodySize = 64 * 1024

// WebhookHandler receives billing provider webhooks. It sits outside
// the authenticated API; deliveries are authenticated by signature.
type WebhookHandler struct {
	BaseHandler
	webhooks *billing.WebhookService
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(webhooks *billing.WebhookService, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{
		BaseHandler: NewBaseHandler(log),
		webhooks:    webhooks,
		logger:      log,
	}
}

// RegisterRoutes registers the webhook route on the given group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripe)
}

// HandleStripe verifies and processes a Stripe webhook delivery.
//
// Processing failures after signature verification still return 200:
// Stripe retries non-2xx responses, and retrying an event we already
// failed to apply would not help.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read webhook payload")
		return
	}
	if len(payload) > maxWebhookBodySize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Webhook payload too large")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Missing Stripe-Signature header")
		return
	}

	result, err := h.webhooks.HandleEvent(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			h.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed")
			return
		}

		h.logger.Error("webhook processing failed", zap.Error(err))
		h.Success(c, gin.H{"received": true, "processed": false})
		return
	}

	h.Success(c, result)
}
