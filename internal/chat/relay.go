package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// Relay forwards the ephemeral signals. Typing is pure pass-through with
// no persistence: an offline receiver simply never sees it. Read receipts
// touch storage once to flip the read flags, then notify the counterpart.
type Relay struct {
	messages    interfaces.MessageRepository
	broadcaster interfaces.Broadcaster
	now         func() time.Time
	log         zerolog.Logger
}

// NewRelay wires the signal relays.
func NewRelay(messages interfaces.MessageRepository, broadcaster interfaces.Broadcaster, log zerolog.Logger) *Relay {
	return &Relay{
		messages:    messages,
		broadcaster: broadcaster,
		now:         time.Now,
		log:         log.With().Str("component", "relay").Logger(),
	}
}

// Typing forwards a typing indicator to the receiver's personal room.
func (r *Relay) Typing(sender types.Identity, receiverID string, isTyping bool) error {
	if sender.ID == "" {
		return ErrUnauthenticated
	}
	if receiverID == "" {
		return ErrMissingReceiver
	}

	r.broadcaster.Publish(receiverID, types.EventTypingStatus, types.TypingStatusPayload{
		UserID:   sender.ID,
		UserName: sender.Name,
		IsTyping: isTyping,
	})
	return nil
}

// MarkRead flips every unread message addressed to userID in the
// conversation, then notifies the counterpart so their unread indicators
// clear. A conversation with no messages at all is a no-op.
func (r *Relay) MarkRead(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if conversationID == "" {
		return ErrMissingConversation
	}

	updated, err := r.messages.MarkConversationRead(ctx, conversationID, userID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	probe, err := r.messages.FindOneByConversation(ctx, conversationID)
	if errors.Is(err, interfaces.ErrMessageNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("conversation probe: %w", err)
	}

	counterpart := probe.SenderID
	if counterpart == userID {
		counterpart = probe.ReceiverID
	}

	r.broadcaster.Publish(counterpart, types.EventMessagesRead, types.ReadPayload{ConversationID: conversationID})

	if updated > 0 {
		r.log.Debug().Str("conversation", conversationID).Int64("updated", updated).Msg("read receipts applied")
	}
	return nil
}
