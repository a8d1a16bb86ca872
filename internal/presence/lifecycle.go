package presence

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// Lifecycle runs the connect and disconnect side effects: registry
// bookkeeping, persisted presence flags and the scoped status broadcast.
//
// Status events go only to users the subject has exchanged messages with,
// never globally. Presence writes that fail are logged and swallowed: a
// broken repository must not take down admission or teardown.
type Lifecycle struct {
	registry    *Registry
	users       interfaces.UserRepository
	messages    interfaces.MessageRepository
	broadcaster interfaces.Broadcaster
	now         func() time.Time
	log         zerolog.Logger
}

// NewLifecycle wires the lifecycle handler.
func NewLifecycle(registry *Registry, users interfaces.UserRepository, messages interfaces.MessageRepository, broadcaster interfaces.Broadcaster, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		registry:    registry,
		users:       users,
		messages:    messages,
		broadcaster: broadcaster,
		now:         time.Now,
		log:         log.With().Str("component", "presence").Logger(),
	}
}

// Connect registers the session, persists the online flag, announces the
// user to related counterparts when this is their first session, and joins
// the connection to the user's personal room for later fan-out.
func (l *Lifecycle) Connect(ctx context.Context, identity types.Identity, connID string) {
	wasOnline := l.registry.IsOnline(identity.ID)
	l.registry.Add(identity.ID, connID)

	if err := l.users.UpdatePresence(ctx, identity.ID, true, l.now()); err != nil {
		l.log.Warn().Err(err).Str("user", identity.ID).Msg("presence write failed on connect")
	}

	if !wasOnline {
		l.broadcastStatus(ctx, identity.ID, true)
	}

	l.broadcaster.Join(identity.ID, connID)
}

// Disconnect removes the session. Only when the last session is gone does
// it persist the offline flag with last_seen and announce the departure.
func (l *Lifecycle) Disconnect(ctx context.Context, identity types.Identity, connID string) {
	l.broadcaster.Leave(identity.ID, connID)

	if !l.registry.Remove(identity.ID, connID) {
		return
	}

	if err := l.users.UpdatePresence(ctx, identity.ID, false, l.now()); err != nil {
		l.log.Warn().Err(err).Str("user", identity.ID).Msg("presence write failed on disconnect")
	}

	l.broadcastStatus(ctx, identity.ID, false)
}

func (l *Lifecycle) broadcastStatus(ctx context.Context, userID string, isOnline bool) {
	payload := types.StatusPayload{UserID: userID, IsOnline: isOnline}
	for _, related := range l.relatedUsers(ctx, userID) {
		l.broadcaster.Publish(related, types.EventUserStatus, payload)
	}
}

// relatedUsers derives every counterpart the user has ever exchanged
// messages with, by splitting the user's distinct conversation ids and
// stripping their own id. Recomputed on every connect/disconnect; the
// distinct-id scan is uncapped, so a cache is the first candidate if this
// ever shows up on a profile.
func (l *Lifecycle) relatedUsers(ctx context.Context, userID string) []string {
	conversationIDs, err := l.messages.DistinctConversationIDs(ctx, userID)
	if err != nil {
		l.log.Warn().Err(err).Str("user", userID).Msg("related user lookup failed")
		return nil
	}

	related := make([]string, 0, len(conversationIDs))
	for _, conversationID := range conversationIDs {
		for _, participant := range strings.Split(conversationID, types.ConversationSeparator) {
			if participant != "" && participant != userID {
				related = append(related, participant)
			}
		}
	}
	return lo.Uniq(related)
}
