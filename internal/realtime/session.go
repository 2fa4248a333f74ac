package realtime

import (
	"fmt"
	"sync"

	"chat_room/internal/domain"
	apperrors "chat_room/pkg/errors"

	"github.com/google/uuid"
)

type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateInRoom
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session - состояние одного соединения: пользователь и текущая комната.
// Живет в Registry под id соединения.
type Session struct {
	mu     sync.Mutex
	id     uuid.UUID
	state  State
	user   *domain.User
	roomID int64
	client *Client
}

func newSession(id uuid.UUID) *Session {
	return &Session{id: id, state: StateConnecting}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transitionError(to State) error {
	return fmt.Errorf("session %s: invalid transition %s -> %s", s.id, s.state, to)
}

func (s *Session) BeginAuthentication() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return s.transitionError(StateAuthenticating)
	}
	s.state = StateAuthenticating
	return nil
}

func (s *Session) Authenticate(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticating {
		return s.transitionError(StateAuthenticated)
	}
	s.user = user
	s.state = StateAuthenticated
	return nil
}

// User возвращает пользователя сессии. До аутентификации - AuthorizationError.
func (s *Session) User() (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated && s.state != StateInRoom {
		return nil, apperrors.Unauthorized(apperrors.ErrUnauthorized, "Not authenticated")
	}
	return s.user, nil
}

// EnterRoom переводит сессию в InRoom(roomID). Возвращает предыдущую комнату,
// из группы которой нужно выйти.
func (s *Session) EnterRoom(roomID int64) (prev int64, hadPrev bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
	case StateInRoom:
		prev, hadPrev = s.roomID, s.roomID != roomID
	default:
		return 0, false, s.transitionError(StateInRoom)
	}

	s.roomID = roomID
	s.state = StateInRoom
	return prev, hadPrev, nil
}

// LeaveRoom возвращает сессию в Authenticated, если roomID - текущая комната
func (s *Session) LeaveRoom(roomID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInRoom || s.roomID != roomID {
		return false
	}
	s.roomID = 0
	s.state = StateAuthenticated
	return true
}

func (s *Session) CurrentRoom() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInRoom {
		return 0, false
	}
	return s.roomID, true
}

// Disconnect - терминальный переход. Возвращает пользователя (nil, если
// аутентификация не прошла) и был ли это первый вызов.
func (s *Session) Disconnect() (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return s.user, false
	}
	s.state = StateDisconnected
	s.roomID = 0
	return s.user, true
}

func (s *Session) attach(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *Session) Client() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}
