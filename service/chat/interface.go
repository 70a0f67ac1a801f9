package chat

import (
	"context"
	"time"
)

type ChatType string

const (
	TypeOneOnOne ChatType = "one_on_one"
	TypeGroup    ChatType = "group"
	TypeBot      ChatType = "bot"
)

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Type      ChatType  `json:"type"`
	CreatorID int64     `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is the wire shape pushed to websocket peers and returned by the
// REST surface. Sender is embedded for display without a second lookup.
type Message struct {
	ID           int64     `json:"id"`
	ChatID       int64     `json:"chat_id"`
	SenderID     int64     `json:"sender_id"`
	Content      string    `json:"content"`
	IsBotMessage bool      `json:"is_bot_message"`
	CreatedAt    time.Time `json:"created_at"`
	Sender       *User     `json:"sender,omitempty"`
}

// History roles fed to the bot responder.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

type HistoryEntry struct {
	Role string
	Text string
}

// Store is the persistence surface the realtime layer depends on.
// Implementations are externally synchronized; the realtime layer issues
// requests without extra locking.
type Store interface {
	GetRoom(ctx context.Context, chatID int64) (*Room, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)
	CreateMessage(ctx context.Context, chatID, senderID int64, content string, isBot bool) (*Message, error)
	// RecentMessages returns up to limit of the newest messages; any internal
	// order is acceptable, callers re-sort to chronological ascending.
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error)
	// FindBotIdentity resolves the designated bot user, ok=false when absent.
	FindBotIdentity(ctx context.Context) (userID int64, ok bool, err error)
}

// BotResponder generates a reply from the current prompt plus prior turns.
// It never fails loudly: any timeout, remote error or unusable result is an
// empty string.
type BotResponder interface {
	Generate(ctx context.Context, prompt string, history []HistoryEntry) string
}

// AuthProvider verifies a connection-time credential and yields the subject.
type AuthProvider interface {
	VerifyCredential(token string) (userID int64, email string, err error)
}

// PresenceTracker records who is online per room. Best effort, advisory only.
type PresenceTracker interface {
	Online(ctx context.Context, chatID, userID int64)
	Offline(ctx context.Context, chatID, userID int64)
}
