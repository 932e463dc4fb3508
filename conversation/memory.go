package conversation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is the default non-durable store. The outer mutex guards only the
// key map; each conversation carries its own lock so chats never contend
// with each other.
type Memory struct {
	mu     sync.RWMutex
	chats  map[int64]*memoryConversation
	limits Limits
}

type memoryConversation struct {
	mu      sync.Mutex
	turns   []Turn
	updated time.Time
}

func NewMemory(limits Limits) *Memory {
	return &Memory{
		chats:  make(map[int64]*memoryConversation),
		limits: limits.normalized(),
	}
}

func (m *Memory) Get(_ context.Context, chatID int64) ([]Turn, error) {
	m.mu.RLock()
	conv := m.chats[chatID]
	m.mu.RUnlock()
	if conv == nil {
		return nil, nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	out := make([]Turn, len(conv.turns))
	copy(out, conv.turns)
	return out, nil
}

func (m *Memory) Append(_ context.Context, chatID int64, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	turns = withTimestamps(turns)

	m.mu.Lock()
	conv := m.chats[chatID]
	if conv == nil {
		m.evictLocked()
		conv = &memoryConversation{}
		m.chats[chatID] = conv
	}
	m.mu.Unlock()

	conv.mu.Lock()
	conv.turns = trimTurns(append(conv.turns, turns...), m.limits.MaxTurns)
	conv.updated = time.Now()
	conv.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.chats, chatID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]int64, 0, len(m.chats))
	for id := range m.chats {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	midnight := startOfToday(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Backend: "memory", Conversations: len(m.chats)}
	for _, conv := range m.chats {
		conv.mu.Lock()
		st.Turns += len(conv.turns)
		if !conv.updated.Before(midnight) {
			st.ActiveToday++
		}
		conv.mu.Unlock()
	}
	return st, nil
}

func (m *Memory) Close() error { return nil }

// evictLocked drops the oldest-updated conversations once the cap is
// reached. Caller holds m.mu.
func (m *Memory) evictLocked() {
	if len(m.chats) < m.limits.MaxConversations {
		return
	}
	type aged struct {
		id      int64
		updated time.Time
	}
	byAge := make([]aged, 0, len(m.chats))
	for id, conv := range m.chats {
		conv.mu.Lock()
		byAge = append(byAge, aged{id: id, updated: conv.updated})
		conv.mu.Unlock()
	}
	sort.Slice(byAge, func(i, j int) bool { return byAge[i].updated.Before(byAge[j].updated) })

	target := m.limits.evictTarget()
	for _, a := range byAge {
		if len(m.chats) <= target {
			break
		}
		delete(m.chats, a.id)
	}
}
