package agent

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/docchat/internal/api"
	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler serves the chat REST endpoints.
type Handler struct {
	svc         *Service
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a chat handler. A non-positive maxBodySize selects the
// default.
func NewHandler(svc *Service, rateLimiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		svc:         svc,
		rateLimiter: rateLimiter,
		maxBodySize: maxBodySize,
	}
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		h.svc.metrics.ChatRequest(ChannelHTTP, "rate_limited")
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if err := api.DecodeJSON(w, r, h.maxBodySize, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	slog.Info("Chat request",
		"user_id", userID,
		"session_id", sessionID,
		"ip", identity.IPFromRequest(r),
		"message_length", len(message),
	)

	reply, err := h.svc.Chat(r.Context(), Message{
		UserID:    userID,
		SessionID: sessionID,
		Content:   message,
		Channel:   ChannelHTTP,
		RequestID: chiMiddleware.GetReqID(r.Context()),
	})
	if errors.Is(err, ErrEmptyMessage) {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		api.Error(w, http.StatusBadGateway, conversation.GenericErrorMessage)
		return
	}

	api.JSON(w, http.StatusOK, ChatResponse{
		Reply:          reply.Content,
		ConversationID: reply.ConversationID,
	})
}

// HandleClear handles POST /api/chat/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.svc.Clear(r.Context(), id.UserID, id.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistory handles GET /api/chat/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	api.JSON(w, http.StatusOK, h.svc.History(id.UserID, id.SessionID))
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Post("/clear", h.HandleClear)
		r.Get("/history", h.HandleHistory)
	})
}
