package api

import (
	"errors"
	"fmt"
	"net/http"

	"coachfit/platform/internal/billing"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"

	"github.com/gin-gonic/gin"
)

// BillingHandler exposes the tenant subscription lifecycle: status, start
// payment, Pix payload, reset, and the gateway status webhook.
type BillingHandler struct {
	billingService *billing.Service
	tenants        repository.TenantRepository
	webhookKey     string
}

// NewBillingHandler creates a new BillingHandler. webhookKey authenticates
// gateway callbacks.
func NewBillingHandler(billingService *billing.Service, tenants repository.TenantRepository, webhookKey string) *BillingHandler {
	return &BillingHandler{billingService: billingService, tenants: tenants, webhookKey: webhookKey}
}

// tenant loads the caller's tenant from the token claims.
func (h *BillingHandler) tenant(c *gin.Context) (*domain.Tenant, bool) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusForbidden, "No tenant in token")
		return nil, false
	}
	tenant, err := h.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		renderError(c, err)
		return nil, false
	}
	return tenant, true
}

func (h *BillingHandler) GetStatus(c *gin.Context) {
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}
	sub, err := h.billingService.Status(c.Request.Context(), tenant.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

type StartPaymentRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

func (h *BillingHandler) StartPayment(c *gin.Context) {
	var req StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}
	sub, err := h.billingService.StartPayment(c.Request.Context(), tenant, req.PlanID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *BillingHandler) GetPixPayload(c *gin.Context) {
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}
	sub, err := h.billingService.PixPayload(c.Request.Context(), tenant.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qrCode":    sub.PixQRCode,
		"copyPaste": sub.PixCopyPaste,
	})
}

func (h *BillingHandler) ResetPending(c *gin.Context) {
	tenant, ok := h.tenant(c)
	if !ok {
		return
	}
	if err := h.billingService.ResetPending(c.Request.Context(), tenant.ID); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Gateway webhook ---

type GatewayStatusRequest struct {
	IntentID string                    `json:"intentId" binding:"required"`
	Status   domain.SubscriptionStatus `json:"status" binding:"required"`
}

// GatewayWebhook applies a gateway-confirmed status. Authenticated by a
// shared key, not a user token: the gateway is not a user.
func (h *BillingHandler) GatewayWebhook(c *gin.Context) {
	if h.webhookKey == "" || c.GetHeader("X-Gateway-Key") != h.webhookKey {
		abortWithError(c, http.StatusUnauthorized, "Invalid gateway key")
		return
	}

	var req GatewayStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	err := h.billingService.ApplyGatewayStatus(c.Request.Context(), req.IntentID, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Unknown payment intent")
			return
		}
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
