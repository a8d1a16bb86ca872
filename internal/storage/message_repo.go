package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// messageColumns is the projection used by every message read: the row
// plus sender/receiver name and avatar joined from users.
const messageColumns = `
	m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content,
	m.read, m.read_at, m.created_at,
	COALESCE(s.name, ''), COALESCE(s.avatar, ''),
	COALESCE(r.name, ''), COALESCE(r.avatar, '')
`

const messageJoins = `
	FROM messages m
	LEFT JOIN users s ON s.id = m.sender_id
	LEFT JOIN users r ON r.id = m.receiver_id
`

// MessageRepo implements interfaces.MessageRepository over the store.
type MessageRepo struct {
	store *Store
}

// NewMessageRepo creates a message repository.
func NewMessageRepo(store *Store) *MessageRepo {
	return &MessageRepo{store: store}
}

var _ interfaces.MessageRepository = (*MessageRepo)(nil)

// Insert persists the message exactly as given. The caller owns id and
// timestamp generation.
func (r *MessageRepo) Insert(ctx context.Context, msg *types.Message) error {
	return r.store.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, read, read_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Read, msg.ReadAt, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// FindByID returns one message with participant identities projected.
func (r *MessageRepo) FindByID(ctx context.Context, id string) (*types.Message, error) {
	row := r.store.db.QueryRowContext(ctx, "SELECT "+messageColumns+messageJoins+" WHERE m.id = ?", id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// FindByConversation returns one page of the conversation in creation
// order. page is 1-based; values below 1 are coerced.
func (r *MessageRepo) FindByConversation(ctx context.Context, conversationID string, page, limit int) ([]*types.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	offset := (page - 1) * limit

	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+messageColumns+messageJoins+" WHERE m.conversation_id = ? ORDER BY m.created_at ASC, m.id ASC LIMIT ? OFFSET ?",
		conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountByConversation returns the conversation's total message count.
func (r *MessageRepo) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversation: %w", err)
	}
	return n, nil
}

// MarkConversationRead flips every unread message addressed to receiverID
// in the conversation and stamps readAt. Returns rows updated.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID string, readAt time.Time) (int64, error) {
	var updated int64
	err := r.store.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE messages SET read = 1, read_at = ?
			WHERE conversation_id = ? AND receiver_id = ? AND read = 0
		`, readAt, conversationID, receiverID)
		if err != nil {
			return fmt.Errorf("mark conversation read: %w", err)
		}
		updated, err = res.RowsAffected()
		return err
	})
	return updated, err
}

// FindOneByConversation returns any one message of the conversation, used
// to discover the counterpart for read-receipt notification.
func (r *MessageRepo) FindOneByConversation(ctx context.Context, conversationID string) (*types.Message, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+messageJoins+" WHERE m.conversation_id = ? LIMIT 1", conversationID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation probe: %w", err)
	}
	return msg, nil
}

// DistinctConversationIDs returns every conversation the user has taken
// part in, on either side.
func (r *MessageRepo) DistinctConversationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT DISTINCT conversation_id FROM messages
		WHERE sender_id = ? OR receiver_id = ?
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query distinct conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConversationSummaries returns the user's conversation list, most recent
// activity first, with the counterpart, last message and unread count.
func (r *MessageRepo) ConversationSummaries(ctx context.Context, userID string) ([]*types.ConversationSummary, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT conversation_id, MAX(created_at) AS last_at
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		GROUP BY conversation_id
		ORDER BY last_at DESC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversation summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		var lastAt time.Time
		if err := rows.Scan(&id, &lastAt); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summaries := make([]*types.ConversationSummary, 0, len(ids))
	for _, conversationID := range ids {
		summary, err := r.summarize(ctx, conversationID, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *MessageRepo) summarize(ctx context.Context, conversationID, userID string) (*types.ConversationSummary, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+messageJoins+" WHERE m.conversation_id = ? ORDER BY m.created_at DESC, m.id DESC LIMIT 1",
		conversationID)
	last, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("query latest message: %w", err)
	}

	var unread int
	err = r.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND receiver_id = ? AND read = 0
	`, conversationID, userID).Scan(&unread)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	counterpartID := last.SenderID
	counterpartName := last.SenderName
	if counterpartID == userID {
		counterpartID = last.ReceiverID
		counterpartName = last.ReceiverName
	}

	return &types.ConversationSummary{
		ConversationID:  conversationID,
		CounterpartID:   counterpartID,
		CounterpartName: counterpartName,
		LastContent:     last.Content,
		LastAt:          last.CreatedAt,
		UnreadCount:     unread,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*types.Message, error) {
	var msg types.Message
	var readAt sql.NullTime
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
		&msg.Read, &readAt, &msg.CreatedAt,
		&msg.SenderName, &msg.SenderAvatar,
		&msg.ReceiverName, &msg.ReceiverAvatar,
	)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}
	return &msg, nil
}
