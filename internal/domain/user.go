// Package domain contains core domain types for the docchat application.
package domain

import (
	"time"
)

// User is an anonymous per-device visitor of the web chat.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChatSession records that a browser tab holds a live conversation.
// Only bookkeeping is stored; the transcript itself lives in memory.
type ChatSession struct {
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	TurnCount      int       `json:"turn_count"`
	LastActiveAt   time.Time `json:"last_active_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Key returns the registry key for the session.
func (s *ChatSession) Key() string {
	return SessionKey(s.UserID, s.SessionID)
}

// IdleFor reports how long the session has been inactive.
func (s *ChatSession) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(s.LastActiveAt)
	if idle < 0 {
		return 0
	}
	return idle
}

// SessionKey joins a user and tab session into a single key.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}
