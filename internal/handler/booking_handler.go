package handler

import (
	"net/http"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/middleware"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookings *service.BookingService
	pricing  *service.PricingService
	payments *service.PaymentService
	log      logger.ILogger
}

func NewBookingHandler(bookings *service.BookingService, pricing *service.PricingService, payments *service.PaymentService, log logger.ILogger) *BookingHandler {
	return &BookingHandler{bookings: bookings, pricing: pricing, payments: payments, log: log}
}

type addressRequest struct {
	Street     string   `json:"street" binding:"required"`
	City       string   `json:"city"`
	Area       string   `json:"area"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type createBookingRequest struct {
	ClientEmail  string         `json:"client_email"`
	WorkerID     *uint          `json:"worker_id"`
	SelectedTime time.Time      `json:"selected_time" binding:"required"`
	Address      addressRequest `json:"address" binding:"required"`
	Description  string         `json:"description"`
	TotalAmount  float64        `json:"total_amount" binding:"gte=0"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), middleware.GetActor(c), service.CreateBookingInput{
		ClientEmail:  req.ClientEmail,
		WorkerID:     req.WorkerID,
		SelectedTime: req.SelectedTime,
		Address: service.AddressInput{
			Street:     req.Address.Street,
			City:       req.Address.City,
			Area:       req.Address.Area,
			PostalCode: req.Address.PostalCode,
			Latitude:   req.Address.Latitude,
			Longitude:  req.Address.Longitude,
		},
		Description:      req.Description,
		TotalAmountCents: toCents(req.TotalAmount),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b})
}

func (h *BookingHandler) List(c *gin.Context) {
	var f repository.BookingFilter
	var ok bool
	if f.ClientID, ok = queryUint(c, "client_id"); !ok {
		return
	}
	if f.WorkerID, ok = queryUint(c, "worker_id"); !ok {
		return
	}
	if s := c.Query("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		f.Status = &st
	}
	f.Limit, f.Offset = pagination(c)
	list, err := h.bookings.List(c.Request.Context(), middleware.GetActor(c), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.bookings.UpdateStatus(c.Request.Context(), middleware.GetActor(c), id, req.Status, req.Reason)
	h.reply(c, b, err)
}

type workerActionRequest struct {
	WorkerEmail string `json:"workerEmail"`
	Reason      string `json:"reason"`
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *BookingHandler) Accept(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req workerActionRequest
	if !bindOptional(c, &req) {
		return
	}
	actor := middleware.GetActor(c)
	if !checkWorkerEmail(c, actor, req.WorkerEmail) {
		return
	}
	b, err := h.bookings.Accept(c.Request.Context(), actor, id)
	h.reply(c, b, err)
}

func (h *BookingHandler) Start(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req workerActionRequest
	if !bindOptional(c, &req) {
		return
	}
	actor := middleware.GetActor(c)
	if !checkWorkerEmail(c, actor, req.WorkerEmail) {
		return
	}
	b, err := h.bookings.StartWork(c.Request.Context(), actor, id)
	h.reply(c, b, err)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req workerActionRequest
	if !bindOptional(c, &req) {
		return
	}
	actor := middleware.GetActor(c)
	if !checkWorkerEmail(c, actor, req.WorkerEmail) {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), actor, id, req.Reason)
	h.reply(c, b, err)
}

type itemRequest struct {
	Name     string  `json:"name" binding:"required"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type proposeItemsRequest struct {
	Items           []itemRequest `json:"items" binding:"required,min=1,dive"`
	AdditionalNotes string        `json:"additional_notes"`
}

func (h *BookingHandler) ProposeItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req proposeItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make([]models.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = models.LineItem{Name: it.Name, Quantity: it.Quantity, PriceCents: toCents(it.Price)}
	}
	b, oi, err := h.pricing.ProposeItems(c.Request.Context(), middleware.GetActor(c), id, service.ProposeItemsInput{
		Items:           items,
		AdditionalNotes: req.AdditionalNotes,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b, "order_item": oi})
}

func (h *BookingHandler) ListItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.pricing.ListItems(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *BookingHandler) ApproveItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.pricing.ApproveItems(c.Request.Context(), middleware.GetActor(c), id)
	h.reply(c, b, err)
}

func (h *BookingHandler) ListPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.payments.ListForBooking(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *BookingHandler) reply(c *gin.Context, b *models.Booking, err error) {
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}
