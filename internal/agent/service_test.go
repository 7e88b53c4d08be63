package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/domain"
)

func TestServiceChatKeepsConversationPerSession(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)
	ctx := context.Background()

	first, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: "a", Content: "hello", Channel: ChannelHTTP})
	require.NoError(t, err)
	assert.Equal(t, "reply to 1 turns", first.Content)

	second, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: "a", Content: "more", Channel: ChannelHTTP})
	require.NoError(t, err)
	assert.Equal(t, "reply to 3 turns", second.Content)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	other, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: "b", Content: "hi", Channel: ChannelHTTP})
	require.NoError(t, err)
	assert.Equal(t, "reply to 1 turns", other.Content)
	assert.NotEqual(t, first.ConversationID, other.ConversationID)
	assert.Equal(t, 2, svc.Len())
}

func TestServiceHistoryShowsTypedText(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)

	empty := svc.History(testUser, testSession)
	assert.Equal(t, "fresh", empty.State)
	assert.Empty(t, empty.Messages)

	_, err := svc.Chat(context.Background(), Message{UserID: testUser, SessionID: testSession, Content: "hello"})
	require.NoError(t, err)

	got := svc.History(testUser, testSession)
	assert.Equal(t, "active", got.State)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Text: "hello"},
		{Role: domain.RoleAssistant, Text: "reply to 1 turns"},
	}, got.Messages)
}

func TestServiceFailureKeepsUserTurn(t *testing.T) {
	t.Parallel()
	model := &fakeModel{fail: true}
	svc := newTestService(t, model, nil)
	ctx := context.Background()

	_, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: testSession, Content: "hello"})
	require.ErrorIs(t, err, errModelDown)

	model.setFail(false)
	reply, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: testSession, Content: "again"})
	require.NoError(t, err)
	assert.Equal(t, "reply to 2 turns", reply.Content)
}

func TestServiceEmptyMessage(t *testing.T) {
	t.Parallel()
	model := &fakeModel{}
	svc := newTestService(t, model, nil)

	_, err := svc.Chat(context.Background(), Message{UserID: testUser, SessionID: testSession})
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, model.calls)
	assert.Zero(t, svc.Len())
}

func TestServiceClearStartsNewConversation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)
	ctx := context.Background()

	before, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: testSession, Content: "hello"})
	require.NoError(t, err)

	id := svc.Clear(ctx, testUser, testSession)
	assert.NotEqual(t, before.ConversationID, id)
	assert.Empty(t, svc.History(testUser, testSession).Messages)

	after, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: testSession, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "reply to 1 turns", after.Content)
	assert.Equal(t, id, after.ConversationID)
}

func TestServiceRecordsSessionBookkeeping(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	svc := newTestService(t, &fakeModel{}, repo)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: testSession, Content: "hello"})
	require.NoError(t, err)

	row, err := repo.GetChatSession(ctx, testUser, testSession)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, reply.ConversationID, row.ConversationID)
	assert.Equal(t, 2, row.TurnCount)
}

func TestServiceDropIdle(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, err := svc.Chat(ctx, Message{UserID: testUser, SessionID: "old", Content: "hi"})
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = svc.Chat(ctx, Message{UserID: testUser, SessionID: "new", Content: "hi"})
	require.NoError(t, err)

	dropped := svc.DropIdle(5 * time.Minute)
	require.Len(t, dropped, 1)
	assert.Equal(t, "old", dropped[0].SessionID)
	assert.Equal(t, 2, dropped[0].TurnCount)
	assert.Equal(t, 1, svc.Len())

	assert.True(t, svc.Drop(testUser, "new"))
	assert.False(t, svc.Drop(testUser, "new"))
	assert.Zero(t, svc.Len())
}
