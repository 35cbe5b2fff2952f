package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"fieldserve/internal/domain"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError writes a declined outcome with its status code. Anything else
// is logged and hidden behind a 500.
func respondError(c *gin.Context, log logger.ILogger, err error) {
	if d, ok := domain.AsDeclined(err); ok {
		body := gin.H{"error": d.Reason}
		if d.Status != "" {
			body["status"] = d.Status
		}
		c.JSON(d.Kind.HTTPStatus(), body)
		return
	}
	log.Error("request failed", logger.String("path", c.FullPath()), logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) (*uint, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	u := uint(id)
	return &u, true
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// checkWorkerEmail enforces that a workerEmail sent in a body names the caller.
func checkWorkerEmail(c *gin.Context, actor domain.Actor, email string) bool {
	if email == "" || strings.EqualFold(strings.TrimSpace(email), actor.Email) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "workerEmail does not match the authenticated user"})
	return false
}

// toCents converts a decimal amount in major units to cents.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
