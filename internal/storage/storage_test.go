package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chatline.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUsers(t *testing.T, store *Store) *UserRepo {
	t.Helper()
	users := NewUserRepo(store)
	ctx := context.Background()
	require.NoError(t, users.Insert(ctx, &types.User{ID: "u1", Name: "Ana", Avatar: "a.png", Role: "customer"}))
	require.NoError(t, users.Insert(ctx, &types.User{ID: "u2", Name: "Bruno", Avatar: "b.png", Role: "seller"}))
	require.NoError(t, users.Insert(ctx, &types.User{ID: "u3", Name: "Carla", Role: "customer"}))
	return users
}

func newMessage(id, sender, receiver, content string, at time.Time) *types.Message {
	return &types.Message{
		ID:             id,
		ConversationID: types.ConversationID(sender, receiver),
		SenderID:       sender,
		ReceiverID:     receiver,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatline.db")

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening replays migrate() against an already-migrated database.
	store, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(migrations), n, "each version recorded exactly once")
}

func TestInsertAndFindByID(t *testing.T) {
	store := newTestStore(t)
	seedUsers(t, store)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	sent := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "Hola", sent)))

	found, err := messages.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", found.ConversationID)
	assert.Equal(t, "Hola", found.Content)
	assert.False(t, found.Read)
	assert.Nil(t, found.ReadAt)
	assert.True(t, found.CreatedAt.Equal(sent))
	assert.Equal(t, "Ana", found.SenderName)
	assert.Equal(t, "a.png", found.SenderAvatar)
	assert.Equal(t, "Bruno", found.ReceiverName)
}

func TestFindByID_NotFound(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)

	_, err := messages.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrMessageNotFound)
}

func TestFindByID_MissingParticipantsProjectEmpty(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	// Participants not present in users: the LEFT JOIN projects blanks
	// rather than dropping the row.
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "ghost1", "ghost2", "boo", time.Now().UTC())))

	found, err := messages.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, found.SenderName)
	assert.Empty(t, found.ReceiverName)
}

func TestFindByConversation_Pagination(t *testing.T) {
	store := newTestStore(t)
	seedUsers(t, store)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		id := string(rune('a' + i))
		require.NoError(t, messages.Insert(ctx, newMessage(id, "u1", "u2", content, base.Add(time.Duration(i)*time.Second))))
	}

	first, err := messages.FindByConversation(ctx, "u1_u2", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "one", first[0].Content)
	assert.Equal(t, "two", first[1].Content)

	third, err := messages.FindByConversation(ctx, "u1_u2", 3, 2)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "five", third[0].Content)

	coerced, err := messages.FindByConversation(ctx, "u1_u2", 0, 2)
	require.NoError(t, err)
	require.Len(t, coerced, 2)
	assert.Equal(t, "one", coerced[0].Content, "page below 1 behaves as the first page")

	empty, err := messages.FindByConversation(ctx, "u1_u3", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCountByConversation(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	n, err := messages.CountByConversation(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "Hola", time.Now().UTC())))
	require.NoError(t, messages.Insert(ctx, newMessage("m2", "u2", "u1", "Hey", time.Now().UTC())))

	n, err = messages.CountByConversation(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMarkConversationRead(t *testing.T) {
	store := newTestStore(t)
	seedUsers(t, store)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "Hola", now)))
	require.NoError(t, messages.Insert(ctx, newMessage("m2", "u1", "u2", "¿Qué tal?", now.Add(time.Second))))
	require.NoError(t, messages.Insert(ctx, newMessage("m3", "u2", "u1", "Bien", now.Add(2*time.Second))))

	readAt := now.Add(time.Minute)
	updated, err := messages.MarkConversationRead(ctx, "u1_u2", "u2", readAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated, "only messages addressed to the reader flip")

	flipped, err := messages.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, flipped.Read)
	require.NotNil(t, flipped.ReadAt)
	assert.True(t, flipped.ReadAt.Equal(readAt))

	untouched, err := messages.FindByID(ctx, "m3")
	require.NoError(t, err)
	assert.False(t, untouched.Read, "the reader's own outgoing message stays unread")

	again, err := messages.MarkConversationRead(ctx, "u1_u2", "u2", readAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, again, "second pass finds nothing unread")
}

func TestFindOneByConversation(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	_, err := messages.FindOneByConversation(ctx, "u1_u2")
	assert.ErrorIs(t, err, interfaces.ErrMessageNotFound)

	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "Hola", time.Now().UTC())))

	probe, err := messages.FindOneByConversation(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", probe.ConversationID)
}

func TestDistinctConversationIDs(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "a", now)))
	require.NoError(t, messages.Insert(ctx, newMessage("m2", "u2", "u1", "b", now)))
	require.NoError(t, messages.Insert(ctx, newMessage("m3", "u3", "u1", "c", now)))
	require.NoError(t, messages.Insert(ctx, newMessage("m4", "u2", "u3", "d", now)))

	ids, err := messages.DistinctConversationIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1_u2", "u1_u3"}, ids, "both sides of the conversation count, deduplicated")

	none, err := messages.DistinctConversationIDs(ctx, "u9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConversationSummaries(t *testing.T) {
	store := newTestStore(t)
	seedUsers(t, store)
	messages := NewMessageRepo(store)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u2", "u1", "Hola Ana", base)))
	require.NoError(t, messages.Insert(ctx, newMessage("m2", "u2", "u1", "¿Sigues ahí?", base.Add(time.Second))))
	require.NoError(t, messages.Insert(ctx, newMessage("m3", "u1", "u3", "Hola Carla", base.Add(2*time.Second))))

	summaries, err := messages.ConversationSummaries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "u1_u3", summaries[0].ConversationID, "most recent activity first")
	assert.Equal(t, "u3", summaries[0].CounterpartID)
	assert.Equal(t, "Carla", summaries[0].CounterpartName)
	assert.Equal(t, "Hola Carla", summaries[0].LastContent)
	assert.Zero(t, summaries[0].UnreadCount, "own outgoing message is never unread for the sender")

	assert.Equal(t, "u1_u2", summaries[1].ConversationID)
	assert.Equal(t, "u2", summaries[1].CounterpartID)
	assert.Equal(t, "Bruno", summaries[1].CounterpartName)
	assert.Equal(t, "¿Sigues ahí?", summaries[1].LastContent)
	assert.Equal(t, 2, summaries[1].UnreadCount)
}

func TestUserRepo_FindByID(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store)
	ctx := context.Background()

	user, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "customer", user.Role)
	assert.False(t, user.IsOnline)
	assert.Nil(t, user.LastSeen)

	_, err = users.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
}

func TestUserRepo_UpdatePresence(t *testing.T) {
	store := newTestStore(t)
	users := seedUsers(t, store)
	ctx := context.Background()

	require.NoError(t, users.UpdatePresence(ctx, "u1", true, time.Time{}))
	user, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.IsOnline)
	assert.Nil(t, user.LastSeen, "going online never touches last_seen")

	seen := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, users.UpdatePresence(ctx, "u1", false, seen))
	user, err = users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
	require.NotNil(t, user.LastSeen)
	assert.True(t, user.LastSeen.Equal(seen))
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)
	seedUsers(t, store)
	messages := NewMessageRepo(store)
	ctx := context.Background()
	require.NoError(t, messages.Insert(ctx, newMessage("m1", "u1", "u2", "Hola", time.Now().UTC())))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"users": 3, "messages": 1}, stats)
}

func TestWritesAfterCloseAreRejected(t *testing.T) {
	store := newTestStore(t)
	messages := NewMessageRepo(store)
	require.NoError(t, store.Close())

	err := messages.Insert(context.Background(), newMessage("m1", "u1", "u2", "Hola", time.Now().UTC()))
	assert.Error(t, err)
}
