package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/domain"
	"github.com/ashureev/docchat/internal/metrics"
	"github.com/ashureev/docchat/internal/store"
)

// ErrEmptyMessage is returned for messages with no content.
var ErrEmptyMessage = errors.New("message is required")

// ControllerFactory creates the conversation for a new session.
type ControllerFactory func() *conversation.Controller

// session is one tab's conversation. mu serialises turns since a Controller
// is not safe for concurrent use.
type session struct {
	mu         sync.Mutex
	userID     string
	sessionID  string
	ctrl       *conversation.Controller
	createdAt  time.Time
	lastActive time.Time
}

// Service routes chat messages to per-session conversations held in memory.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	newController ControllerFactory
	repo          store.Repository
	log           ConversationLogger
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a session registry. repo and convLog may be nil.
func NewService(factory ControllerFactory, repo store.Repository, convLog ConversationLogger, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	return &Service{
		sessions:      make(map[string]*session),
		newController: factory,
		repo:          repo,
		log:           convLog,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) getOrCreate(userID, sessionID string) *session {
	key := domain.SessionKey(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	now := s.now()
	sess := &session{
		userID:     userID,
		sessionID:  sessionID,
		ctrl:       s.newController(),
		createdAt:  now,
		lastActive: now,
	}
	s.sessions[key] = sess
	s.metrics.SetActiveConversations(len(s.sessions))
	return sess
}

func (s *Service) lookup(userID, sessionID string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[domain.SessionKey(userID, sessionID)]
	return sess, ok
}

// Chat sends msg to its session's conversation. A failed model call leaves
// the user turn in the transcript.
func (s *Service) Chat(ctx context.Context, msg Message) (Reply, error) {
	if msg.Content == "" {
		s.metrics.ChatRequest(msg.Channel, "invalid")
		return Reply{}, ErrEmptyMessage
	}

	sess := s.getOrCreate(msg.UserID, msg.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	conversationID := sess.ctrl.ID()
	s.logEvent(msg, conversationID, "outbound", "chat_user_message", msg.Content, nil)

	start := s.now()
	reply, err := sess.ctrl.Respond(ctx, msg.Content)
	sess.lastActive = s.now()
	s.touch(ctx, sess)

	if err != nil {
		s.metrics.ChatRequest(msg.Channel, "error")
		s.logEvent(msg, conversationID, "inbound", "chat_error", conversation.GenericErrorMessage, map[string]any{
			"error": err.Error(),
		})
		return Reply{ConversationID: conversationID}, err
	}

	s.metrics.ChatRequest(msg.Channel, "ok")
	s.logEvent(msg, conversationID, "inbound", "chat_assistant_message", reply, map[string]any{
		"duration_ms": s.now().Sub(start).Milliseconds(),
	})
	return Reply{Content: reply, ConversationID: conversationID}, nil
}

// Clear starts a new conversation for the session and returns its ID.
func (s *Service) Clear(ctx context.Context, userID, sessionID string) string {
	sess := s.getOrCreate(userID, sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	previous := sess.ctrl.ID()
	sess.ctrl.Clear()
	sess.lastActive = s.now()
	s.touch(ctx, sess)

	s.logger.Info("Conversation cleared",
		"user_id", userID,
		"session_id", sessionID,
		"previous_conversation_id", previous,
		"conversation_id", sess.ctrl.ID(),
	)
	return sess.ctrl.ID()
}

// History returns the visible turns of the session's conversation.
func (s *Service) History(userID, sessionID string) HistoryResponse {
	sess, ok := s.lookup(userID, sessionID)
	if !ok {
		return HistoryResponse{State: conversation.Fresh.String(), Messages: []domain.Turn{}}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return HistoryResponse{
		ConversationID: sess.ctrl.ID(),
		State:          sess.ctrl.State().String(),
		Messages:       sess.ctrl.History(),
	}
}

// Drop forgets a session's conversation. It reports whether one existed.
func (s *Service) Drop(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(userID, sessionID)
	if _, ok := s.sessions[key]; !ok {
		return false
	}
	delete(s.sessions, key)
	s.metrics.SetActiveConversations(len(s.sessions))
	return true
}

// DropIdle forgets conversations inactive for longer than ttl and returns
// the sessions removed.
func (s *Service) DropIdle(ttl time.Duration) []domain.ChatSession {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []domain.ChatSession
	for key, sess := range s.sessions {
		// Sessions mid-turn are busy, not idle.
		if !sess.mu.TryLock() {
			continue
		}
		idle := now.Sub(sess.lastActive) > ttl
		if idle {
			dropped = append(dropped, domain.ChatSession{
				UserID:         sess.userID,
				SessionID:      sess.sessionID,
				ConversationID: sess.ctrl.ID(),
				TurnCount:      len(sess.ctrl.Turns()),
				LastActiveAt:   sess.lastActive,
				CreatedAt:      sess.createdAt,
			})
			delete(s.sessions, key)
		}
		sess.mu.Unlock()
	}
	s.metrics.SetActiveConversations(len(s.sessions))
	return dropped
}

// Len returns the number of live conversations.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close flushes the conversation log.
func (s *Service) Close() error {
	return s.log.Close()
}

// touch records session bookkeeping. Caller holds sess.mu.
func (s *Service) touch(ctx context.Context, sess *session) {
	if s.repo == nil {
		return
	}
	err := s.repo.UpsertChatSession(ctx, &domain.ChatSession{
		UserID:         sess.userID,
		SessionID:      sess.sessionID,
		ConversationID: sess.ctrl.ID(),
		TurnCount:      len(sess.ctrl.Turns()),
		LastActiveAt:   sess.lastActive,
		CreatedAt:      sess.createdAt,
	})
	if err != nil {
		s.logger.Warn("failed to record chat session",
			"user_id", sess.userID,
			"session_id", sess.sessionID,
			"error", err,
		)
	}
}

func (s *Service) logEvent(msg Message, conversationID, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["conversation_id"] = conversationID
	if msg.RequestID != "" {
		meta["request_id"] = msg.RequestID
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     msg.UserID,
		SessionID:  msg.SessionID,
		Channel:    msg.Channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
