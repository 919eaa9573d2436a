package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/services"
)

// AttachRequestContext gives every request an event buffer and an error slot.
// Buffered events are emitted once the handler has answered without error.
func AttachRequestContext(emitter services.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = eventdata.WithEventData(ctx)
		ctx = errordata.WithErrorData(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		events := eventdata.GetEventData(ctx).Drain()
		if len(events) == 0 || c.Writer.Status() >= 400 {
			return
		}
		if ed := errordata.GetErrorData(ctx); ed != nil && ed.HasMessage() {
			return
		}
		emitter.Emit(ctx, events...)
	}
}
