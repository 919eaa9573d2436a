package services

import (
	"context"

	"github.com/devforge-org/devforge-backend/internal/eventdata"
)

// Emitter delivers realtime events to websocket subscribers.
type Emitter interface {
	Emit(ctx context.Context, events ...eventdata.Event)
}

// publish queues ev on the request when there is one, so it only goes out
// after the handler succeeds. Background work emits straight away.
func publish(ctx context.Context, em Emitter, ev eventdata.Event) {
	if eventdata.Append(ctx, ev) {
		return
	}
	if em != nil {
		em.Emit(ctx, ev)
	}
}
