package handlers

import (
	"github.com/gin-gonic/gin"
)

// sseWriter opens the event stream lazily so failures before the first event
// can still be answered with a normal JSON error.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (w *sseWriter) event(name string, data interface{}) error {
	w.start()
	w.c.SSEvent(name, data)
	w.c.Writer.Flush()
	return w.c.Request.Context().Err()
}
