package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// Manager keeps the open sessions of one process, keyed by handle.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	committer    Committer
	historyLimit int
}

func NewManager(committer Committer, historyLimit int) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		committer:    committer,
		historyLimit: historyLimit,
	}
}

// Open creates a session for img and loads it.
func (m *Manager) Open(img domain.Image, asset domain.Asset) (*Session, error) {
	s := New(uuid.NewString(), m.committer, m.historyLimit)
	if err := s.Load(img, asset); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	zlog.Logger.Info().Str("session_id", s.ID()).Str("image_id", img.ID).Msg("session opened")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close forgets the session and cancels its commit, if one is running.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	s.CancelCommit()
	zlog.Logger.Info().Str("session_id", id).Msg("session closed")
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
