package session

import (
	"sync"

	"github.com/google/uuid"
)

// Manager 隔离并发会话：每个会话 ID（UUID）对应独立的 State。
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
}

// NewManager 创建空管理器。
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*State)}
}

// Open 新建会话。
func (m *Manager) Open() (string, *State) {
	id := uuid.NewString()
	st := NewState()
	m.mu.Lock()
	m.sessions[id] = st
	m.mu.Unlock()
	return id, st
}

// Get 按 ID 取会话。
func (m *Manager) Get(id string) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	return st, ok
}

// Drop 丢弃会话；不存在时无操作。
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len 返回活动会话数。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
