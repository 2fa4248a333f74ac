package realtime

import (
	"fmt"
	"sync"

	"chat_room/pkg/logger"
)

// Hub хранит широковещательные группы комнат: какие соединения сейчас
// "находятся" в комнате. Членство в БД здесь не отражается.
//
// Рассылка кладет кадры в очереди клиентов под общим мьютексом, поэтому
// порядок событий внутри комнаты совпадает с порядком вызовов Broadcast.
type Hub struct {
	mu      sync.Mutex
	rooms   map[int64]map[*Client]struct{}
	clients map[*Client]map[int64]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms:   make(map[int64]map[*Client]struct{}),
		clients: make(map[*Client]map[int64]struct{}),
		log:     log,
	}
}

// Join идемпотентен
func (h *Hub) Join(client *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		h.rooms[roomID] = group
	}
	group[client] = struct{}{}

	joined, ok := h.clients[client]
	if !ok {
		joined = make(map[int64]struct{})
		h.clients[client] = joined
	}
	joined[roomID] = struct{}{}
}

func (h *Hub) Leave(client *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, roomID)
}

func (h *Hub) leaveLocked(client *Client, roomID int64) {
	if group, ok := h.rooms[roomID]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if joined, ok := h.clients[client]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(h.clients, client)
		}
	}
}

// Remove убирает соединение из всех групп
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.clients[client] {
		h.leaveLocked(client, roomID)
	}
}

func (h *Hub) InRoom(client *Client, roomID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.rooms[roomID][client]
	return ok
}

func (h *Hub) RoomSize(roomID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Broadcast возвращает число соединений, в чьи очереди попал кадр
func (h *Hub) Broadcast(roomID int64, event string, payload interface{}) (int, error) {
	return h.BroadcastExcept(roomID, nil, event, payload)
}

func (h *Hub) BroadcastExcept(roomID int64, except *Client, event string, payload interface{}) (int, error) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", event, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for client := range h.rooms[roomID] {
		if client == except {
			continue
		}
		if client.enqueue(frame) {
			delivered++
		}
	}

	h.log.Debug("Broadcast", "room_id", roomID, "event", event, "delivered", delivered)
	return delivered, nil
}

func (h *Hub) EmitTo(client *Client, event string, payload interface{}) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if !client.enqueue(frame) {
		return fmt.Errorf("connection %s is closed", client.ID())
	}
	return nil
}
