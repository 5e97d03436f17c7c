package websocket

import (
	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster. A nil hub yields a
// broadcaster that drops every event.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastListingChanged announces a listing mutation to every client.
// Open views refresh through their live query; this event only lets a
// frontend flash a hint.
func (b *EventBroadcaster) BroadcastListingChanged(l *models.Listing, change ListingChange) {
	payload := ListingChangedPayload{
		ListingID: l.ID,
		Kind:      l.Kind,
		Change:    change,
	}
	if change == ListingLiked {
		likes := l.LikeCount
		payload.Likes = &likes
	}

	b.broadcast(NewMessage(TypeListingChanged, payload))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}

	b.broadcast(NewMessage(TypeNotification, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	if b == nil || b.hub == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		glog.Errorf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
