// Package chat implements the message pipeline and the ephemeral signal
// relays (typing, read receipts).
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"chatline/internal/metrics"
	"chatline/internal/ratelimit"
	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// Pipeline orchestrates a single chat message: rate limit, validation,
// sanitization, persistence, fan-out. Order matters: the rate limit check
// runs first so abusive senders cost nothing, and sanitization happens
// before the write because content is stored as well as rendered.
type Pipeline struct {
	messages    interfaces.MessageRepository
	limiter     *ratelimit.Limiter
	broadcaster interfaces.Broadcaster
	sanitizer   *bluemonday.Policy
	validate    *validator.Validate
	contentRule string
	metrics     *metrics.Metrics
	now         func() time.Time
	log         zerolog.Logger
}

// NewPipeline wires the pipeline. maxLength bounds message content in
// runes, checked after trimming.
func NewPipeline(messages interfaces.MessageRepository, limiter *ratelimit.Limiter, broadcaster interfaces.Broadcaster, maxLength int, m *metrics.Metrics, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		messages:    messages,
		limiter:     limiter,
		broadcaster: broadcaster,
		sanitizer:   bluemonday.StrictPolicy(),
		validate:    validator.New(),
		contentRule: fmt.Sprintf("required,max=%d", maxLength),
		metrics:     m,
		now:         time.Now,
		log:         log.With().Str("component", "chat").Logger(),
	}
}

// Send runs the full pipeline for one message and returns the persisted,
// populated message. When the error wraps ErrDelivery the message is
// already durable and must not be resent.
func (p *Pipeline) Send(ctx context.Context, senderID, receiverID, rawContent string) (*types.Message, error) {
	if senderID == "" {
		p.metrics.MessagesRejected.WithLabelValues("unauthenticated").Inc()
		return nil, ErrUnauthenticated
	}
	if receiverID == "" {
		p.metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		return nil, ErrMissingReceiver
	}

	if !p.limiter.Allow(senderID) {
		p.metrics.MessagesRejected.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	content := strings.TrimSpace(rawContent)
	if err := p.validate.Var(content, p.contentRule); err != nil {
		p.metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		if content == "" {
			return nil, ErrEmptyContent
		}
		return nil, ErrContentTooLong
	}

	// Neutralize markup before the write, not at render time. A message
	// that is nothing but markup sanitizes to empty and is rejected.
	content = strings.TrimSpace(p.sanitizer.Sanitize(content))
	if content == "" {
		p.metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		return nil, ErrEmptyContent
	}

	msg := &types.Message{
		ID:             uuid.New().String(),
		ConversationID: types.ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Read:           false,
		CreatedAt:      p.now().UTC(),
	}

	if err := p.messages.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// Re-fetch with sender/receiver identity projected for delivery. The
	// insert above is durable either way.
	populated, err := p.messages.FindByID(ctx, msg.ID)
	if err != nil {
		p.log.Error().Err(err).Str("message", msg.ID).Msg("populated re-fetch failed after persist")
		return msg, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	// Both personal rooms get the full message; sending to the sender's
	// own room keeps their other sessions in sync. The receiver alone
	// gets the lightweight notification for badge/toast use.
	p.broadcaster.Publish(senderID, types.EventMessageNew, populated)
	p.broadcaster.Publish(receiverID, types.EventMessageNew, populated)
	p.broadcaster.Publish(receiverID, types.EventMessageNotification, types.NotificationPayload{
		From:           populated.SenderName,
		ConversationID: populated.ConversationID,
	})

	p.metrics.MessagesSent.Inc()
	return populated, nil
}

// IsValidationError reports whether err is a shape/content rejection that
// the client can fix and resubmit.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrMissingReceiver) ||
		errors.Is(err, ErrMissingConversation) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong)
}
