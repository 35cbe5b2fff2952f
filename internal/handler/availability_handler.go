package handler

import (
	"net/http"
	"strconv"
	"time"

	"fieldserve/internal/middleware"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	avail   *service.AvailabilityService
	reviews *service.ReviewService
	log     logger.ILogger
}

func NewAvailabilityHandler(avail *service.AvailabilityService, reviews *service.ReviewService, log logger.ILogger) *AvailabilityHandler {
	return &AvailabilityHandler{avail: avail, reviews: reviews, log: log}
}

type checkSlotRequest struct {
	WorkerID     uint      `json:"workerId" binding:"required"`
	SelectedTime time.Time `json:"selectedTime" binding:"required"`
}

func (h *AvailabilityHandler) Check(c *gin.Context) {
	var req checkSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.avail.CheckSlot(c.Request.Context(), req.WorkerID, req.SelectedTime)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type availabilityRequest struct {
	StartTime string   `json:"start_time" binding:"required"`
	EndTime   string   `json:"end_time" binding:"required"`
	Weekends  []string `json:"weekends"`
}

func (h *AvailabilityHandler) Set(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.avail.SetAvailability(c.Request.Context(), middleware.GetActor(c), service.AvailabilityInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Weekends:  req.Weekends,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": a, "weekends": a.WeekendDays()})
}

func (h *AvailabilityHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "workerId")
	if !ok {
		return
	}
	a, err := h.avail.GetAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": a, "weekends": a.WeekendDays()})
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *AvailabilityHandler) UpdateLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.avail.UpdateLocation(c.Request.Context(), middleware.GetActor(c), *req.Latitude, *req.Longitude); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Search answers GET /workers/search?lat=&lon=&radiusMeters=&categorySlug=.
func (h *AvailabilityHandler) Search(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}
	var radius float64
	if v := c.Query("radiusMeters"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radiusMeters"})
			return
		}
		radius = r
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	workers, err := h.avail.Search(c.Request.Context(), service.WorkerSearch{
		Latitude:     lat,
		Longitude:    lon,
		RadiusMeters: radius,
		CategorySlug: c.Query("categorySlug"),
		Limit:        limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

func (h *AvailabilityHandler) Reviews(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	list, err := h.reviews.ListWorkerReviews(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": list})
}
