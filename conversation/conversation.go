// Package conversation keeps bounded per-chat message histories behind a
// pluggable Store contract. Backends: memory (default, non-durable), file
// (JSON documents under the data dir), redis, and sqlite. Histories are
// owned by the store; callers get copies.
package conversation

import (
	"context"
	"time"
)

// Roles recorded in a history turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a chat history. Immutable once stored.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTurn builds a user-authored turn stamped now.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text, Timestamp: time.Now()}
}

// AssistantTurn builds a bot-authored turn stamped now.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Content: text, Timestamp: time.Now()}
}

// Stats summarizes a store for the /stats command.
type Stats struct {
	Backend       string
	Conversations int
	Turns         int
	ActiveToday   int
}

// Store is the conversation history contract. Append enforces the per-chat
// turn bound (oldest dropped first) and the store-wide conversation cap
// (oldest-updated chats evicted). Get returns turns in append order.
type Store interface {
	Get(ctx context.Context, chatID int64) ([]Turn, error)
	Append(ctx context.Context, chatID int64, turns ...Turn) error
	Clear(ctx context.Context, chatID int64) error
	Keys(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Limits bounds a store. Zero values take the deployment defaults.
type Limits struct {
	MaxTurns         int
	MaxConversations int
}

func (l Limits) normalized() Limits {
	if l.MaxTurns <= 0 {
		l.MaxTurns = 10
	}
	if l.MaxConversations <= 0 {
		l.MaxConversations = 1000
	}
	return l
}

// evictTarget is how far below MaxConversations an eviction pass drains the
// store, so a busy store does not evict on every new chat.
func (l Limits) evictTarget() int {
	target := l.MaxConversations * 9 / 10
	if target >= l.MaxConversations {
		target = l.MaxConversations - 1
	}
	if target < 0 {
		target = 0
	}
	return target
}

func trimTurns(turns []Turn, max int) []Turn {
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	return turns
}

func withTimestamps(turns []Turn) []Turn {
	now := time.Now()
	for i := range turns {
		if turns[i].Timestamp.IsZero() {
			turns[i].Timestamp = now
		}
	}
	return turns
}

func startOfToday(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// storedConversation is the serialized form shared by the file and redis
// backends.
type storedConversation struct {
	ChatID  int64     `json:"chat_id"`
	Updated time.Time `json:"updated"`
	Turns   []Turn    `json:"turns"`
}
