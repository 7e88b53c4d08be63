package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/identity"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 64 << 10
)

// WebSocketHandler serves the chat over a WebSocket at /ws/chat.
type WebSocketHandler struct {
	svc           *Service
	conns         *ConnectionRegistry
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a WebSocket chat handler.
func NewWebSocketHandler(svc *Service, conns *ConnectionRegistry, rateLimiter *RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	if conns == nil {
		conns = NewConnectionRegistry()
	}
	return &WebSocketHandler{
		svc:           svc,
		conns:         conns,
		rateLimiter:   rateLimiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(wsMaxMessageSize)

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, userID, sessionID)
	slog.Info("Chat WebSocket ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop handles one frame at a time, so turns on a connection never overlap.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !h.write(ctx, ws, wsMessage{Type: wsTypeError, Content: "invalid message"}) {
				return
			}
			continue
		}

		if !h.write(ctx, ws, h.dispatch(ctx, msg, userID, sessionID)) {
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, msg wsMessage, userID, sessionID string) wsMessage {
	switch msg.Type {
	case wsTypePing:
		return wsMessage{Type: wsTypePong}
	case wsTypeClear:
		id := h.svc.Clear(ctx, userID, sessionID)
		return wsMessage{Type: wsTypeCleared, ConversationID: id}
	case wsTypeMessage:
		if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
			h.svc.metrics.ChatRequest(ChannelWebSocket, "rate_limited")
			return wsMessage{Type: wsTypeError, Content: "rate limit exceeded"}
		}
		reply, err := h.svc.Chat(ctx, Message{
			UserID:    userID,
			SessionID: sessionID,
			Content:   strings.TrimSpace(msg.Content),
			Channel:   ChannelWebSocket,
		})
		if errors.Is(err, ErrEmptyMessage) {
			return wsMessage{Type: wsTypeError, Content: err.Error()}
		}
		if err != nil {
			return wsMessage{Type: wsTypeError, Content: conversation.GenericErrorMessage, ConversationID: reply.ConversationID}
		}
		return wsMessage{Type: wsTypeReply, Content: reply.Content, ConversationID: reply.ConversationID}
	default:
		return wsMessage{Type: wsTypeError, Content: "unknown message type"}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, msg wsMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("failed to marshal websocket message", "error", err)
		return false
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return false
	}
	return true
}
