package handler

import (
	"net/http"

	"fieldserve/internal/middleware"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviews *service.ReviewService
	log     logger.ILogger
}

func NewReviewHandler(reviews *service.ReviewService, log logger.ILogger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

type createReviewRequest struct {
	BookingID uint   `json:"booking_id" binding:"required"`
	WorkerID  uint   `json:"worker_id" binding:"required"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (h *ReviewHandler) Create(c *gin.Context) {
	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rv, err := h.reviews.CreateReview(c.Request.Context(), middleware.GetActor(c), service.CreateReviewInput{
		BookingID: req.BookingID,
		WorkerID:  req.WorkerID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": rv})
}
