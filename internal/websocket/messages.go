package websocket

import (
	"encoding/json"
	"time"

	"github.com/imuhira/listings/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeViewState      MessageType = "view.state"
	TypeListingChanged MessageType = "listing.changed"
	TypeNotification   MessageType = "notification"

	// Client -> Server command types
	TypeSetFilter        MessageType = "set_filter"
	TypeNextImage        MessageType = "next_image"
	TypePreviousImage    MessageType = "previous_image"
	TypeNextProperty     MessageType = "next_property"
	TypePreviousProperty MessageType = "previous_property"
	TypePing             MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Error codes carried by error messages.
const (
	ErrCodeBadMessage    = "bad_message"
	ErrCodeUnknownType   = "unknown_type"
	ErrCodeInvalidFilter = "invalid_filter"
	ErrCodeRateLimited   = "rate_limited"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientMessage is a command received from a client. Payload is decoded
// according to Type.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SetFilterPayload is the payload for set_filter commands.
type SetFilterPayload struct {
	Kind models.ListingKind `json:"type"`
}

// ListingChange names what happened to a listing.
type ListingChange string

const (
	ListingCreated     ListingChange = "created"
	ListingUpdated     ListingChange = "updated"
	ListingDeleted     ListingChange = "deleted"
	ListingLiked       ListingChange = "liked"
	ListingActivated   ListingChange = "activated"
	ListingDeactivated ListingChange = "deactivated"
)

// ListingChangedPayload is the payload for listing.changed events.
type ListingChangedPayload struct {
	ListingID string             `json:"listing_id"`
	Kind      models.ListingKind `json:"type,omitempty"`
	Change    ListingChange      `json:"change"`
	Likes     *int               `json:"likes,omitempty"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
