// Package testutil содержит in-memory реализации репозиториев для тестов
// сервисов и websocket шлюза.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	apperrors "chat_room/pkg/errors"
)

// Store - общее хранилище для всех фейковых репозиториев.
// Время сообщений монотонно растет на миллисекунду, порядок детерминирован.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	clock    time.Time
	users    map[int64]*domain.User
	rooms    map[int64]*domain.ChatRoom
	members  map[int64]*domain.ChatRoomMember
	messages map[int64]*domain.ChatMessage
	audit    []*domain.AuditLog
	counters map[string]int64

	systemUserID int64

	// FailRateLimit заставляет RateLimit репозиторий возвращать ошибку
	FailRateLimit error
	// OnSetOnline вызывается после записи статуса, вне блокировки
	OnSetOnline func(userID int64, online bool)
}

func NewStore() *Store {
	return &Store{
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:    make(map[int64]*domain.User),
		rooms:    make(map[int64]*domain.ChatRoom),
		members:  make(map[int64]*domain.ChatRoomMember),
		messages: make(map[int64]*domain.ChatMessage),
		counters: make(map[string]int64),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:      &UserRepo{s: s},
		Room:      &RoomRepo{s: s},
		Message:   &MessageRepo{s: s},
		Audit:     &AuditRepo{s: s},
		RateLimit: &RateLimitRepo{s: s},
	}
}

func (s *Store) AddUser(name string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	user := &domain.User{
		ID:        id,
		Name:      name,
		Email:     fmt.Sprintf("user%d@example.com", id),
		CreatedAt: s.tick(),
	}
	s.users[id] = user
	copied := *user
	return &copied
}

// AddRoom создает комнату вместе с системным участником, как это делает
// сервис создания комнат
func (s *Store) AddRoom(name string, createdBy int64) *domain.ChatRoom {
	room := s.AddRoomWithoutSystemMember(name, createdBy)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.systemUserID == 0 {
		s.systemUserID = s.id()
		s.users[s.systemUserID] = &domain.User{
			ID:        s.systemUserID,
			Name:      "System",
			Email:     "system@chat.local",
			CreatedAt: s.tick(),
		}
	}

	member := &domain.ChatRoomMember{ID: s.id(), RoomID: room.ID, UserID: s.systemUserID}
	s.members[member.ID] = member
	s.rooms[room.ID].SystemMemberID = &member.ID
	room.SystemMemberID = &member.ID

	return room
}

func (s *Store) AddRoomWithoutSystemMember(name string, createdBy int64) *domain.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := &domain.ChatRoom{
		ID:          s.id(),
		Name:        name,
		Category:    "general",
		CreatedByID: createdBy,
		CreatedAt:   s.tick(),
	}
	s.rooms[room.ID] = room
	copied := *room
	return &copied
}

func (s *Store) AddMember(roomID, userID int64) *domain.ChatRoomMember {
	s.mu.Lock()
	defer s.mu.Unlock()

	member := &domain.ChatRoomMember{ID: s.id(), RoomID: roomID, UserID: userID}
	s.members[member.ID] = member
	copied := *member
	return &copied
}

// AddMessages добавляет n сообщений автора в комнату, старые раньше
func (s *Store) AddMessages(roomID, userID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member := s.findMember(roomID, userID)
	for i := 0; i < n; i++ {
		message := &domain.ChatMessage{
			ID:             s.id(),
			RoomID:         roomID,
			AuthorMemberID: member.ID,
			AuthorUserID:   userID,
			Content:        fmt.Sprintf("message %d", i+1),
			SentAt:         s.tick(),
		}
		s.messages[message.ID] = message
	}
}

func (s *Store) MemberCount(roomID, userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.members {
		if m.RoomID == roomID && m.UserID == userID {
			count++
		}
	}
	return count
}

func (s *Store) IsOnline(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].IsOnline
}

// Message возвращает сообщение как оно лежит в хранилище
func (s *Store) Message(id int64) (*domain.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, false
	}
	return s.hydrate(m), true
}

func (s *Store) MessageCount(roomID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.RoomID == roomID {
			count++
		}
	}
	return count
}

func (s *Store) AuditEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]string, 0, len(s.audit))
	for _, a := range s.audit {
		events = append(events, a.EventType)
	}
	return events
}

func (s *Store) findMember(roomID, userID int64) *domain.ChatRoomMember {
	for _, m := range s.members {
		if m.RoomID == roomID && m.UserID == userID {
			return m
		}
	}
	return nil
}

func (s *Store) hydrate(m *domain.ChatMessage) *domain.ChatMessage {
	copied := *m
	if m.EditedAt != nil {
		editedAt := *m.EditedAt
		copied.EditedAt = &editedAt
	}
	if user, ok := s.users[m.AuthorUserID]; ok {
		u := *user
		copied.User = &u
	}
	return &copied
}

type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepo) SetOnline(_ context.Context, id int64, online bool) error {
	r.s.mu.Lock()
	user, ok := r.s.users[id]
	if ok {
		user.IsOnline = online
	}
	hook := r.s.OnSetOnline
	r.s.mu.Unlock()

	if !ok {
		return apperrors.ErrNotFound
	}
	if hook != nil {
		hook(id, online)
	}
	return nil
}

type RoomRepo struct{ s *Store }

func (r *RoomRepo) GetByID(_ context.Context, id int64) (*domain.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *RoomRepo) ListByUser(_ context.Context, userID int64) ([]*domain.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rooms := make([]*domain.ChatRoom, 0)
	for _, m := range r.s.members {
		if m.UserID != userID {
			continue
		}
		copied := *r.s.rooms[m.RoomID]
		rooms = append(rooms, &copied)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *RoomRepo) GetMember(_ context.Context, roomID, userID int64) (*domain.ChatRoomMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	member := r.s.findMember(roomID, userID)
	if member == nil {
		return nil, apperrors.ErrMemberNotFound
	}
	copied := *member
	return &copied, nil
}

func (r *RoomRepo) GetSystemMember(_ context.Context, roomID int64) (*domain.ChatRoomMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[roomID]
	if !ok || room.SystemMemberID == nil {
		return nil, apperrors.ErrNoSystemMember
	}
	member := *r.s.members[*room.SystemMemberID]
	user := *r.s.users[member.UserID]
	member.User = &user
	return &member, nil
}

func (r *RoomRepo) CreateMember(_ context.Context, member *domain.ChatRoomMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[member.RoomID]; !ok {
		return apperrors.ErrRoomNotFound
	}
	if r.s.findMember(member.RoomID, member.UserID) != nil {
		return apperrors.ErrAlreadyMember
	}
	member.ID = r.s.id()
	copied := *member
	r.s.members[member.ID] = &copied
	return nil
}

func (r *RoomRepo) DeleteMember(_ context.Context, roomID, userID int64) (*domain.ChatRoomMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	member := r.s.findMember(roomID, userID)
	if member == nil {
		return nil, apperrors.ErrNotMember
	}
	delete(r.s.members, member.ID)
	copied := *member
	return &copied, nil
}

func (r *RoomRepo) ListMembers(_ context.Context, roomID int64) ([]*domain.ChatRoomMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[roomID]
	if !ok {
		return []*domain.ChatRoomMember{}, nil
	}

	members := make([]*domain.ChatRoomMember, 0)
	for _, m := range r.s.members {
		if m.RoomID != roomID {
			continue
		}
		if room.SystemMemberID != nil && *room.SystemMemberID == m.ID {
			continue
		}
		copied := *m
		user := *r.s.users[m.UserID]
		copied.User = &user
		members = append(members, &copied)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *RoomRepo) LastActivity(_ context.Context, roomID int64) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[roomID]
	if !ok {
		return time.Time{}, apperrors.ErrRoomNotFound
	}
	last := room.CreatedAt
	for _, m := range r.s.messages {
		if m.RoomID == roomID && m.SentAt.After(last) {
			last = m.SentAt
		}
	}
	return last, nil
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, message *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	message.ID = r.s.id()
	message.SentAt = r.s.tick()
	stored := *message
	stored.User = nil
	r.s.messages[message.ID] = &stored
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id int64) (*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	return r.s.hydrate(m), nil
}

func (r *MessageRepo) UpdateContent(_ context.Context, message *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[message.ID]
	if !ok {
		return apperrors.ErrMessageNotFound
	}
	editedAt := r.s.tick()
	m.Content = message.Content
	m.EditedAt = &editedAt
	message.EditedAt = &editedAt
	return nil
}

func (r *MessageRepo) MarkDeleted(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return apperrors.ErrMessageNotFound
	}
	m.IsDeleted = true
	return nil
}

func (r *MessageRepo) ListPage(_ context.Context, roomID int64, offset, limit int) ([]*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]*domain.ChatMessage, 0)
	for _, m := range r.s.messages {
		if m.RoomID == roomID {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].SentAt.Equal(all[j].SentAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].SentAt.After(all[j].SentAt)
	})

	page := make([]*domain.ChatMessage, 0, limit)
	for i := offset; i < len(all) && len(page) < limit; i++ {
		page = append(page, r.s.hydrate(all[i]))
	}
	return page, nil
}

type AuditRepo struct{ s *Store }

func (r *AuditRepo) CreateLog(_ context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	log.ID = r.s.id()
	r.s.audit = append(r.s.audit, log)
	return nil
}

type RateLimitRepo struct{ s *Store }

// Increment не сбрасывает окно: в тестах окна короче времени теста не нужны
func (r *RateLimitRepo) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.FailRateLimit != nil {
		return 0, r.s.FailRateLimit
	}
	r.s.counters[key]++
	return r.s.counters[key], nil
}
