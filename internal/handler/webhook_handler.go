package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peakform/biometrics-service/internal/dto"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/service"
	"go.uber.org/zap"
)

// SignatureHeader carries the optional hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives provider push batches. Per-record problems never
// fail the response: a non-2xx would make the provider redeliver the whole
// batch.
type WebhookHandler struct {
	ingestor      service.WebhookIngestor
	signingSecret string
	logger        *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(ingestor service.WebhookIngestor, signingSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestor:      ingestor,
		signingSecret: signingSecret,
		logger:        logger,
	}
}

// GarminPush handles POST /webhooks/garmin
func (h *WebhookHandler) GarminPush(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "failed to read request body",
		})
		return
	}

	if h.signingSecret != "" && !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "invalid webhook signature",
		})
		return
	}

	var batch provider.GarminPushBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "malformed webhook payload",
		})
		return
	}

	h.ingestor.IngestGarminPush(c.Request.Context(), &batch)

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
