package types

import "encoding/json"

// Event names carried on the wire. Client-to-server events name the intent,
// server-to-client events name the delivery.
const (
	EventMessageSend  = "message:send"
	EventTypingStart  = "typing:start"
	EventTypingStop   = "typing:stop"
	EventMessagesRead = "messages:read"

	EventMessageNew          = "message:new"
	EventMessageNotification = "message:notification"
	EventMessageError        = "message:error"
	EventUserStatus          = "user:status"
	EventTypingStatus        = "typing:status"
)

// Envelope is the wire framing for every event in both directions:
// a name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client payload for message:send.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// TypingPayload is the client payload for typing:start / typing:stop.
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

// MarkReadPayload is the client payload for messages:read.
type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// StatusPayload is the server payload for user:status.
type StatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// TypingStatusPayload is the server payload for typing:status.
type TypingStatusPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// NotificationPayload is the server payload for message:notification,
// decoupled from the full message body for unread-badge use.
type NotificationPayload struct {
	From           string `json:"from"`
	ConversationID string `json:"conversationId"`
}

// ReadPayload is the server payload for messages:read.
type ReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// ErrorPayload is the server payload for message:error.
type ErrorPayload struct {
	Message string `json:"message"`
}
