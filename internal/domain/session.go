package domain

import (
	"context"
	"time"
)

// Session sources.
const (
	SourceYouTube = "youtube"
	SourceLocal   = "local"
)

// Session ties one processed video to its transcript, its vector collection,
// and any media files created for it.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Source         string    `json:"source"` // youtube | local
	VideoURL       string    `json:"video_url,omitempty"`
	VideoPath      string    `json:"video_path,omitempty"`
	AudioPath      string    `json:"audio_path,omitempty"`
	Title          string    `json:"title"`
	Duration       float64   `json:"duration"`
	CollectionName string    `json:"collection_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation groups the query/response turns a user had against one session.
type Conversation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one conversation message. Turns are append-only and read back in
// chronological order.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user | assistant
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionStore handles persistent storage of sessions, transcripts,
// conversations, and turns. The retrieval pipeline reads transcripts from it
// when a vector collection must be rebuilt.
type SessionStore interface {
	CreateSession(ctx context.Context, sess Session) error
	GetSession(ctx context.Context, id, userID string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	DeleteSession(ctx context.Context, id, userID string) (bool, error)

	SaveTranscript(ctx context.Context, sessionID string, t *Transcript) error
	GetTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	EnsureConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id, userID string) (*Conversation, error)
	AddTurn(ctx context.Context, convID string, turn Turn) error
	GetTurns(ctx context.Context, convID string, limit int) ([]Turn, error)

	Close() error
}
