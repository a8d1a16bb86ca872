package chat

import (
	"context"
	"sync"
	"time"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// memMessages is an in-memory MessageRepository covering the operations
// the pipeline and relays touch. Name projection mimics the SQL join.
type memMessages struct {
	interfaces.MessageRepository
	mu        sync.Mutex
	byID      map[string]*types.Message
	order     []string
	names     map[string]string
	insertErr error
	findErr   error
}

func newMemMessages() *memMessages {
	return &memMessages{
		byID:  make(map[string]*types.Message),
		names: map[string]string{"u1": "Ana", "u2": "Bruno"},
	}
}

func (m *memMessages) Insert(_ context.Context, msg *types.Message) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *msg
	m.byID[msg.ID] = &stored
	m.order = append(m.order, msg.ID)
	return nil
}

func (m *memMessages) FindByID(_ context.Context, id string) (*types.Message, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, interfaces.ErrMessageNotFound
	}
	populated := *stored
	populated.SenderName = m.names[stored.SenderID]
	populated.ReceiverName = m.names[stored.ReceiverID]
	return &populated, nil
}

func (m *memMessages) MarkConversationRead(_ context.Context, conversationID, receiverID string, readAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, msg := range m.byID {
		if msg.ConversationID == conversationID && msg.ReceiverID == receiverID && !msg.Read {
			msg.Read = true
			at := readAt
			msg.ReadAt = &at
			updated++
		}
	}
	return updated, nil
}

func (m *memMessages) FindOneByConversation(_ context.Context, conversationID string) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if m.byID[id].ConversationID == conversationID {
			probe := *m.byID[id]
			return &probe, nil
		}
	}
	return nil, interfaces.ErrMessageNotFound
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memMessages) first() *types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil
	}
	msg := *m.byID[m.order[0]]
	return &msg
}

type publishCall struct {
	room    string
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	publishes []publishCall
}

func (f *fakeBroadcaster) Join(string, string)  {}
func (f *fakeBroadcaster) Leave(string, string) {}

func (f *fakeBroadcaster) Publish(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{room: room, event: event, payload: payload})
}

func (f *fakeBroadcaster) byEvent(event string) []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishCall
	for _, p := range f.publishes {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}
