package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry - живые соединения по id соединения
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Open регистрирует новое соединение в состоянии Connecting
func (r *Registry) Open() *Session {
	sess := newSession(uuid.New())

	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	r.mu.Unlock()

	return sess
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// UserConnections считает живые аутентифицированные соединения пользователя
func (r *Registry) UserConnections(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sess := range r.sessions {
		if user, err := sess.User(); err == nil && user.ID == userID {
			count++
		}
	}
	return count
}

func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
