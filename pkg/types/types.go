package types

import "time"

// User is an account row as stored by the user repository. Accounts are
// owned by the storefront's account system; this service only reads them
// and flips the presence columns.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Avatar    string     `json:"avatar,omitempty"`
	Role      string     `json:"role"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Identity is the resolved subject attached to a connection after a
// successful admission. It is immutable for the lifetime of the session.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Message is a persisted chat message. SenderName/SenderAvatar and the
// receiver projections are populated on read by joining the users table;
// they are never written back.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	ReceiverID     string     `json:"receiverId"`
	Content        string     `json:"content"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`

	SenderName     string `json:"senderName,omitempty"`
	SenderAvatar   string `json:"senderAvatar,omitempty"`
	ReceiverName   string `json:"receiverName,omitempty"`
	ReceiverAvatar string `json:"receiverAvatar,omitempty"`
}

// ConversationSummary is one row of the conversation list surface: the
// counterpart, the most recent message and the caller's unread count.
type ConversationSummary struct {
	ConversationID  string    `json:"conversationId"`
	CounterpartID   string    `json:"counterpartId"`
	CounterpartName string    `json:"counterpartName,omitempty"`
	LastContent     string    `json:"lastContent"`
	LastAt          time.Time `json:"lastAt"`
	UnreadCount     int       `json:"unreadCount"`
}
