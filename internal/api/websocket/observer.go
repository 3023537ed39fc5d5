package websocket

import (
	"log"

	"github.com/ramonehamilton/nft-rarity/internal/events"
)

// Observer forwards dispatched events to websocket clients.
type Observer struct {
	hub   *Hub
	types map[string]bool
}

// NewObserver creates an observer that broadcasts through hub. When types
// is empty every event is forwarded.
func NewObserver(hub *Hub, types ...string) *Observer {
	o := &Observer{hub: hub}
	if len(types) > 0 {
		o.types = make(map[string]bool, len(types))
		for _, t := range types {
			o.types[t] = true
		}
	}
	return o
}

// OnEvent broadcasts the event payload.
func (o *Observer) OnEvent(event events.Event) error {
	if o.hub == nil {
		log.Printf("[WebSocket] Dropping %s: no hub", event.Type)
		return nil
	}

	o.hub.BroadcastEvent(Event{
		Type: event.Type,
		Data: event.Payload,
		Time: event.Time,
	})
	return nil
}

// Name returns the observer's name.
func (o *Observer) Name() string {
	return "WebSocketObserver"
}

// ShouldHandle applies the optional type filter.
func (o *Observer) ShouldHandle(eventType string) bool {
	return o.types == nil || o.types[eventType]
}

var _ events.Observer = (*Observer)(nil)
