package interfaces

import (
	"context"
	"time"

	"chatline/pkg/types"
)

// MessageRepository is the persistence contract for chat messages. The
// in-memory components hold no message state beyond a single call.
type MessageRepository interface {
	// Insert persists a new message exactly as given.
	Insert(ctx context.Context, msg *types.Message) error

	// FindByID returns one message with sender and receiver identity
	// projected (name, avatar) for delivery.
	FindByID(ctx context.Context, id string) (*types.Message, error)

	// FindByConversation returns one page of a conversation in creation
	// order. page is 1-based.
	FindByConversation(ctx context.Context, conversationID string, page, limit int) ([]*types.Message, error)

	// CountByConversation returns the total number of messages in a
	// conversation.
	CountByConversation(ctx context.Context, conversationID string) (int, error)

	// MarkConversationRead flips read=true and stamps readAt on every
	// unread message addressed to receiverID in the conversation. Returns
	// the number of rows updated.
	MarkConversationRead(ctx context.Context, conversationID, receiverID string, readAt time.Time) (int64, error)

	// FindOneByConversation returns any one message of the conversation,
	// or ErrMessageNotFound if it has none.
	FindOneByConversation(ctx context.Context, conversationID string) (*types.Message, error)

	// DistinctConversationIDs returns every conversation id the user has
	// ever taken part in.
	DistinctConversationIDs(ctx context.Context, userID string) ([]string, error)

	// ConversationSummaries returns the user's conversation list, most
	// recent first.
	ConversationSummaries(ctx context.Context, userID string) ([]*types.ConversationSummary, error)
}

// UserRepository is the read/presence contract over user accounts.
type UserRepository interface {
	// FindByID returns the user or ErrUserNotFound.
	FindByID(ctx context.Context, id string) (*types.User, error)

	// UpdatePresence persists the online flag. Transitioning to offline
	// also stamps last_seen with lastSeen.
	UpdatePresence(ctx context.Context, id string, isOnline bool, lastSeen time.Time) error
}
