package agent

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/conversation"
)

func dialChat(t *testing.T, svc *Service, rl *RateLimiter) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(svc, rl))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, msg wsMessage) wsMessage {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))

	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	var got wsMessage
	require.NoError(t, json.Unmarshal(raw, &got))
	return got
}

func TestWebSocketChat(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)
	conn, ctx := dialChat(t, svc, nil)

	got := roundTrip(t, ctx, conn, wsMessage{Type: wsTypePing})
	assert.Equal(t, wsTypePong, got.Type)

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "hello"})
	assert.Equal(t, wsTypeReply, got.Type)
	assert.Equal(t, "reply to 1 turns", got.Content)
	first := got.ConversationID

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "more"})
	assert.Equal(t, "reply to 3 turns", got.Content)

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeClear})
	assert.Equal(t, wsTypeCleared, got.Type)
	assert.NotEqual(t, first, got.ConversationID)

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "fresh start"})
	assert.Equal(t, "reply to 1 turns", got.Content)
}

func TestWebSocketErrors(t *testing.T) {
	t.Parallel()
	model := &fakeModel{fail: true}
	svc := newTestService(t, model, nil)
	conn, ctx := dialChat(t, svc, nil)

	got := roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "hello"})
	assert.Equal(t, wsTypeError, got.Type)
	assert.Equal(t, conversation.GenericErrorMessage, got.Content)

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: " "})
	assert.Equal(t, wsTypeError, got.Type)
	assert.Equal(t, ErrEmptyMessage.Error(), got.Content)

	got = roundTrip(t, ctx, conn, wsMessage{Type: "resize"})
	assert.Equal(t, "unknown message type", got.Content)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "invalid message")

	// The failed turn stays and is resent with the next message.
	model.setFail(false)
	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "again"})
	assert.Equal(t, "reply to 2 turns", got.Content)
}

func TestWebSocketRateLimited(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	svc := newTestService(t, &fakeModel{}, nil)
	conn, ctx := dialChat(t, svc, rl)

	got := roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "one"})
	assert.Equal(t, wsTypeReply, got.Type)

	got = roundTrip(t, ctx, conn, wsMessage{Type: wsTypeMessage, Content: "two"})
	assert.Equal(t, wsTypeError, got.Type)
	assert.Equal(t, "rate limit exceeded", got.Content)
}

func TestWebSocketReconnectClosesPrevious(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeModel{}, nil)
	srv := httptest.NewServer(newTestRouter(svc, nil))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"

	first, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close(websocket.StatusNormalClosure, "") })
	assert.Equal(t, wsTypePong, roundTrip(t, ctx, first, wsMessage{Type: wsTypePing}).Type)

	second, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close(websocket.StatusNormalClosure, "") })
	assert.Equal(t, wsTypePong, roundTrip(t, ctx, second, wsMessage{Type: wsTypePing}).Type)

	_, _, err = first.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
