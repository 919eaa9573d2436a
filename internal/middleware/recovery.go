package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

// Recovery turns a panic into a 500 and logs it with the last recorded
// service error of the request.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	log = log.With("Middleware", "Recovery")
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		kv := []interface{}{"path", c.Request.URL.Path, "panic", fmt.Sprint(recovered)}
		if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
			kv = append(kv, "lastError", ed.Message)
		}
		log.Error("Recovered from panic", kv...)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
