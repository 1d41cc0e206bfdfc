package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

const signatureHeader = "X-Webhook-Signature"

// BillingHandler обрабатывает вебхуки платежного провайдера.
// Доставка как минимум однократная: события дедуплицируются по eventId,
// так что повторный вебхук не начисляет кредиты дважды.
type BillingHandler struct {
	users         interfaces.UserRepository
	billingEvents interfaces.BillingEventRepository
	webhookSecret string
	logger        *zap.Logger
}

// NewBillingHandler создает новый BillingHandler.
func NewBillingHandler(
	users interfaces.UserRepository,
	billingEvents interfaces.BillingEventRepository,
	webhookSecret string,
	logger *zap.Logger,
) *BillingHandler {
	return &BillingHandler{
		users:         users,
		billingEvents: billingEvents,
		webhookSecret: webhookSecret,
		logger:        logger.Named("billing_handler"),
	}
}

// Webhook обрабатывает POST /billing/webhook.
func (h *BillingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "Cannot read body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		h.logger.Warn("Billing webhook with invalid signature rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: ErrCodeUnauthorized, Message: "Invalid signature"})
		return
	}

	var req billingWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "Malformed payload"})
		return
	}

	if req.Type != "checkout.completed" {
		// Неинтересные события подтверждаются, чтобы провайдер их не повторял.
		c.Status(http.StatusOK)
		return
	}

	firstDelivery, err := h.billingEvents.MarkProcessed(c.Request.Context(), req.EventID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if !firstDelivery {
		h.logger.Info("Duplicate billing event skipped", zap.String("event_id", req.EventID))
		c.Status(http.StatusOK)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "Malformed user id"})
		return
	}
	credits := models.CreditPlan(req.Plan).Credits()
	if credits == 0 {
		h.logger.Error("Billing event with unknown plan", zap.String("event_id", req.EventID), zap.String("plan", req.Plan))
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "Unknown plan"})
		return
	}

	if err := h.users.AddCredits(c.Request.Context(), userID, credits); err != nil {
		handleServiceError(c, err)
		return
	}

	h.logger.Info("Credits granted from billing webhook",
		zap.String("event_id", req.EventID),
		zap.String("user_id", req.UserID),
		zap.Int("credits", credits),
	)
	c.Status(http.StatusOK)
}

func (h *BillingHandler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
