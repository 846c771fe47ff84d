package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	locks    keyedMutex
}

// NewMemoryManager constructs the in-process Manager.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]Session),
		locks:    keyedMutex{entries: make(map[int64]*lockEntry)},
	}
}

// Get returns a copy of the user's session.
func (m *memoryManager) Get(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return s.Clone(), true
}

// Set stores s, replacing any previous session of the user.
func (m *memoryManager) Set(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s.Clone()
}

// Clear removes the user's session; clearing an absent session is a no-op.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user has an active conversation.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}

func (m *memoryManager) Lock(userID int64) func() {
	return m.locks.lock(userID)
}
