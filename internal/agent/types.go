// Package agent serves the document chat assistant over HTTP and WebSocket.
package agent

import (
	"github.com/ashureev/docchat/internal/domain"
)

// Channels a chat message can arrive on.
const (
	ChannelHTTP      = "chat_http"
	ChannelWebSocket = "chat_ws"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply to a successful chat request.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
}

// HistoryResponse lists the visible turns of a conversation.
type HistoryResponse struct {
	ConversationID string        `json:"conversation_id"`
	State          string        `json:"state"`
	Messages       []domain.Turn `json:"messages"`
}

// Message is a chat request routed to a session's conversation.
type Message struct {
	UserID    string
	SessionID string
	Content   string
	Channel   string
	RequestID string
}

// Reply is the outcome of a routed message.
type Reply struct {
	Content        string
	ConversationID string
}

// WebSocket frame types.
const (
	wsTypeMessage = "message"
	wsTypeClear   = "clear"
	wsTypePing    = "ping"
	wsTypeReply   = "reply"
	wsTypeError   = "error"
	wsTypeCleared = "cleared"
	wsTypePong    = "pong"
)

// wsMessage is a WebSocket frame in either direction.
type wsMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}
