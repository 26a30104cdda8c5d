package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxWebhookBytes = 1 << 16

// StripeWebhook needs the raw body: the signature covers the exact bytes.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		badRequest(c, "Could not read body")
		return
	}
	res, err := h.svc.Billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook rejected")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "event": res})
}

func (h *Handler) BillingPortal(c *gin.Context) {
	var payload struct {
		ReturnURL string `json:"return_url"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&payload)

	portalURL, err := h.svc.Billing.Portal(c.Request.Context(), currentUserID(c), payload.ReturnURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": portalURL})
}

func (h *Handler) BillingMe(c *gin.Context) {
	me, err := h.svc.Billing.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.svc.Billing.Plans(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}
