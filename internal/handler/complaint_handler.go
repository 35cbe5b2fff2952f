package handler

import (
	"net/http"

	"fieldserve/internal/middleware"
	"fieldserve/internal/repository"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxAttachmentBytes = 10 << 20

type ComplaintHandler struct {
	complaints *service.ComplaintService
	log        logger.ILogger
}

func NewComplaintHandler(complaints *service.ComplaintService, log logger.ILogger) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints, log: log}
}

type createComplaintRequest struct {
	BookingID    uint     `json:"booking_id" binding:"required"`
	TargetID     uint     `json:"target_id" binding:"required"`
	RaisedByRole string   `json:"raised_by_role" binding:"required"`
	Category     string   `json:"category" binding:"required"`
	SubCategory  string   `json:"sub_category"`
	Priority     string   `json:"priority"`
	Description  string   `json:"description" binding:"required"`
	Attachments  []string `json:"attachments" binding:"omitempty,max=10,dive,url"`
}

func (h *ComplaintHandler) Create(c *gin.Context) {
	var req createComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmp, err := h.complaints.Create(c.Request.Context(), middleware.GetActor(c), service.CreateComplaintInput{
		BookingID:    req.BookingID,
		TargetID:     req.TargetID,
		RaisedByRole: req.RaisedByRole,
		Category:     req.Category,
		SubCategory:  req.SubCategory,
		Priority:     req.Priority,
		Description:  req.Description,
		Attachments:  req.Attachments,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"complaint": cmp})
}

func (h *ComplaintHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cmp, err := h.complaints.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaint": cmp})
}

func (h *ComplaintHandler) List(c *gin.Context) {
	f := repository.ComplaintFilter{Status: c.Query("status")}
	var ok bool
	if f.BookingID, ok = queryUint(c, "booking_id"); !ok {
		return
	}
	f.Limit, f.Offset = pagination(c)
	list, err := h.complaints.List(c.Request.Context(), middleware.GetActor(c), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list})
}

type updateComplaintRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes"`
	Resolution *string `json:"resolution"`
}

func (h *ComplaintHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmp, err := h.complaints.Update(c.Request.Context(), middleware.GetActor(c), id, service.UpdateComplaintInput{
		Status:     req.Status,
		AdminNotes: req.AdminNotes,
		Resolution: req.Resolution,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaint": cmp})
}

// UploadAttachment takes a multipart "file" and returns the stored URL.
func (h *ComplaintHandler) UploadAttachment(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxAttachmentBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	url, err := h.complaints.UploadAttachment(c.Request.Context(), middleware.GetActor(c), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
