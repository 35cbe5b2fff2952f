package handler

import (
	"net/http"

	"fieldserve/internal/middleware"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *service.PaymentService
	log      logger.ILogger
}

func NewPaymentHandler(payments *service.PaymentService, log logger.ILogger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

type bookingPaymentRequest struct {
	BookingID uint `json:"booking_id" binding:"required"`
}

func (h *PaymentHandler) CreateCash(c *gin.Context) {
	var req bookingPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.payments.CreateCash(c.Request.Context(), middleware.GetActor(c), req.BookingID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": p})
}

func (h *PaymentHandler) VerifyCash(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.VerifyCash(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

func (h *PaymentHandler) InitGateway(c *gin.Context) {
	var req bookingPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.payments.InitGateway(c.Request.Context(), middleware.GetActor(c), req.BookingID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req refundRequest
	if !bindOptional(c, &req) {
		return
	}
	p, err := h.payments.Refund(c.Request.Context(), middleware.GetActor(c), id, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}
