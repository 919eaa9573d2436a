package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/services"
)

// statusFor maps service sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// publicError returns the status and the message a client may see. Internal
// failures only get a generic message.
func publicError(err error) (int, string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return status, "internal server error"
	}
	return status, err.Error()
}

// respondError writes {"error": ...} and keeps the cause in the request's
// error slot for the logger.
func respondError(c *gin.Context, err error) {
	errordata.Record(c.Request.Context(), err)
	status, msg := publicError(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

// pathID parses a uuid path parameter and answers 400 when it is malformed.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// sizeOrUnknown turns a zero size into -1 so no Content-Length is sent.
func sizeOrUnknown(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}
