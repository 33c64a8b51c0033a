package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Factory は ID を受け取って新しい Session を作成します。
type Factory func(id string) (*Session, error)

// Manager はブラウザごとの Session を ID で管理します。
type Manager struct {
	factory Factory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager は Manager を作成します。
func NewManager(factory Factory) (*Manager, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}, nil
}

// Get は既存の Session を返します。
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate は ID に対応する Session を返し、なければ新しい ID で作成します。
// 作成した場合は created が true になります。
func (m *Manager) GetOrCreate(id string) (s *Session, created bool, err error) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false, nil
		}
	}
	s, err = m.Create()
	return s, err == nil, err
}

// Create は新しい ID で Session を作成して登録します。
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	s, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Delete は Session を破棄します。
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len は管理中の Session 数です。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune は maxIdle 以上操作されていない Session を破棄し、破棄した数を返します。生成中の Session は残します。
func (m *Manager) Prune(now time.Time, maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.Busy() || now.Sub(s.LastSeen()) < maxIdle {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n
}
