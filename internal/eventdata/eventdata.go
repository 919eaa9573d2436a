package eventdata

import (
	"context"
	"sync"
)

type key struct{}

var eventDataKey key

const (
	ConversationUpdated = "conversation_updated"
	ProjectGenerated    = "project_generated"
	FileAnalyzed        = "file_analyzed"
	FileIndexed         = "file_indexed"
)

// Event is queued during a request and published once the handler succeeds.
type Event struct {
	Channel string      `json:"channel"`
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
}

type EventData struct {
	mu     sync.Mutex
	events []Event
}

func WithEventData(ctx context.Context) context.Context {
	return context.WithValue(ctx, eventDataKey, &EventData{})
}

func GetEventData(ctx context.Context) *EventData {
	val := ctx.Value(eventDataKey)
	ed, ok := val.(*EventData)
	if !ok {
		return nil
	}
	return ed
}

// Append queues an event when ctx carries a buffer and reports whether it did.
func Append(ctx context.Context, ev Event) bool {
	ed := GetEventData(ctx)
	if ed == nil {
		return false
	}
	ed.Append(ev)
	return true
}

func (d *EventData) Append(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

// Drain returns the queued events and empties the buffer.
func (d *EventData) Drain() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.events
	d.events = nil
	return out
}
