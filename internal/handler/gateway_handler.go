package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"fieldserve/config"
	"fieldserve/internal/domain"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GatewayHandler receives the hosted checkout's browser returns and its
// server-to-server IPN. None of these routes carry a user token.
type GatewayHandler struct {
	payments *service.PaymentService
	cfg      *config.GatewayConfig
	log      logger.ILogger
}

func NewGatewayHandler(payments *service.PaymentService, cfg *config.GatewayConfig, log logger.ILogger) *GatewayHandler {
	return &GatewayHandler{payments: payments, cfg: cfg, log: log}
}

// The gateway posts form fields; query strings and JSON are accepted for GET returns and test tools.
type gatewayCallback struct {
	TranID string `form:"tran_id" json:"tran_id"`
	ValID  string `form:"val_id" json:"val_id"`
	Status string `form:"status" json:"status"`
}

func (h *GatewayHandler) bind(c *gin.Context) (*gatewayCallback, bool) {
	var cb gatewayCallback
	if err := c.ShouldBind(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if cb.TranID == "" {
		cb.TranID = c.Query("tran_id")
	}
	if cb.ValID == "" {
		cb.ValID = c.Query("val_id")
	}
	if cb.TranID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tran_id is required"})
		return nil, false
	}
	return &cb, true
}

func (h *GatewayHandler) Success(c *gin.Context) {
	cb, ok := h.bind(c)
	if !ok {
		return
	}
	p, err := h.payments.GatewaySuccess(c.Request.Context(), cb.TranID, cb.ValID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

func (h *GatewayHandler) Fail(c *gin.Context) {
	cb, ok := h.bind(c)
	if !ok {
		return
	}
	p, err := h.payments.GatewayFail(c.Request.Context(), cb.TranID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

func (h *GatewayHandler) Cancel(c *gin.Context) {
	cb, ok := h.bind(c)
	if !ok {
		return
	}
	p, err := h.payments.GatewayCancel(c.Request.Context(), cb.TranID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

// IPN acknowledges with 200 whenever the notification was understood, so the
// gateway stops retrying. Unknown transactions are acknowledged too.
func (h *GatewayHandler) IPN(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.WebhookSecret != "" && !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	cb, ok := h.bind(c)
	if !ok {
		return
	}
	p, err := h.payments.GatewayIPN(c.Request.Context(), cb.TranID, cb.ValID, cb.Status)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			h.log.Warning("ipn for unknown transaction", logger.String("tran_id", cb.TranID))
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": p.Status})
}

func (h *GatewayHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
