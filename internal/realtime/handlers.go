package realtime

import (
	"context"
	"fmt"
	"time"

	"chat_room/internal/domain"
)

func (g *Gateway) handleJoin(ctx context.Context, sess *Session, user *domain.User, p RoomPayload) error {
	room, err := g.rooms.Join(ctx, p.RoomID, user.ID)
	if err != nil {
		return err
	}

	client := sess.Client()
	if err := g.leavePreviousGroup(sess, room.ID); err != nil {
		return err
	}

	// Системное сообщение уходит комнате до добавления соединения в группу,
	// поэтому сам вошедший его не получает
	systemMessage, err := g.chat.SendSystemMessage(ctx, room.ID, fmt.Sprintf(domain.JoinedChatTemplate, user.Name))
	if err != nil {
		g.emitError(client, EventJoinChat, err)
	} else if _, err := g.hub.Broadcast(room.ID, EventMessage, systemMessage); err != nil {
		g.log.Warn("Failed to broadcast join message", "room_id", room.ID, "error", err)
	}

	g.hub.Join(client, room.ID)

	notice := &domain.ChatMessage{
		RoomID:  room.ID,
		Content: domain.JoinedChatNotice,
		SentAt:  time.Now(),
		User:    &domain.SystemUser,
	}
	g.emit(client, EventMessage, notice)

	if err := g.emitUserRooms(ctx, client, user.ID); err != nil {
		return err
	}
	g.emit(client, EventJoinedRoom, JoinedRoomPayload{Room: room})

	page, err := g.history.GetInitialMessages(ctx, room.ID)
	if err != nil {
		return err
	}
	g.emit(client, EventSavedMessages, page)

	return g.broadcastMembers(ctx, room.ID)
}

func (g *Gateway) handleEnter(ctx context.Context, sess *Session, user *domain.User, p RoomPayload) error {
	room, err := g.rooms.GetByID(ctx, p.RoomID)
	if err != nil {
		return err
	}
	if _, err := g.rooms.RequireMember(ctx, room.ID, user.ID); err != nil {
		return err
	}

	client := sess.Client()
	if err := g.leavePreviousGroup(sess, room.ID); err != nil {
		return err
	}
	g.hub.Join(client, room.ID)

	page, err := g.history.GetInitialMessages(ctx, room.ID)
	if err != nil {
		return err
	}
	g.emit(client, EventSavedMessages, page)

	members, err := g.rooms.GetMembers(ctx, room.ID)
	if err != nil {
		return err
	}
	g.emit(client, EventMembersList, MembersListPayload{Members: members})

	return nil
}

func (g *Gateway) handleLeave(ctx context.Context, sess *Session, user *domain.User, p RoomPayload) error {
	// При Conflict сессия остается в комнате
	room, err := g.rooms.Leave(ctx, p.RoomID, user.ID)
	if err != nil {
		return err
	}

	client := sess.Client()
	g.hub.Leave(client, room.ID)
	sess.LeaveRoom(room.ID)

	systemMessage, err := g.chat.SendSystemMessage(ctx, room.ID, fmt.Sprintf(domain.LeftChatTemplate, user.Name))
	if err != nil {
		g.emitError(client, EventLeaveChat, err)
	} else if _, err := g.hub.Broadcast(room.ID, EventMessage, systemMessage); err != nil {
		g.log.Warn("Failed to broadcast leave message", "room_id", room.ID, "error", err)
	}

	if err := g.emitUserRooms(ctx, client, user.ID); err != nil {
		return err
	}

	return g.broadcastMembers(ctx, room.ID)
}

func (g *Gateway) handleMessage(ctx context.Context, sess *Session, user *domain.User, p SendMessagePayload) error {
	message, err := g.chat.SendMessage(ctx, p.RoomID, user.ID, p.Message)
	if err != nil {
		return err
	}
	return g.publishMessage(sess.Client(), message)
}

func (g *Gateway) handleEdit(ctx context.Context, sess *Session, user *domain.User, p EditMessagePayload) error {
	message, err := g.chat.EditMessage(ctx, p.MessageID, user.ID, p.NewMessage)
	if err != nil {
		return err
	}
	return g.publishMessage(sess.Client(), message)
}

func (g *Gateway) handleDelete(ctx context.Context, sess *Session, user *domain.User, p DeleteMessagePayload) error {
	message, err := g.chat.DeleteMessage(ctx, p.MessageID, user.ID)
	if err != nil {
		return err
	}
	return g.publishMessage(sess.Client(), message)
}

func (g *Gateway) handleLoadMore(ctx context.Context, sess *Session, user *domain.User, p LoadMorePayload) error {
	page, err := g.history.GetMessagesPage(ctx, p.RoomID, p.Page)
	if err != nil {
		return err
	}
	g.emit(sess.Client(), EventMoreMessages, page)
	return nil
}

// publishMessage рассылает сообщение его комнате. Автор, чье соединение не
// в группе этой комнаты, получает копию напрямую.
func (g *Gateway) publishMessage(client *Client, message *domain.ChatMessage) error {
	inRoom := g.hub.InRoom(client, message.RoomID)
	if _, err := g.hub.Broadcast(message.RoomID, EventMessage, message); err != nil {
		return err
	}
	if !inRoom {
		g.emit(client, EventMessage, message)
	}
	return nil
}

// leavePreviousGroup переводит сессию в InRoom(roomID), убирая соединение
// из группы прежней комнаты. Членство в прежней комнате не трогается.
func (g *Gateway) leavePreviousGroup(sess *Session, roomID int64) error {
	prev, hadPrev, err := sess.EnterRoom(roomID)
	if err != nil {
		return err
	}
	if hadPrev {
		g.hub.Leave(sess.Client(), prev)
	}
	return nil
}

func (g *Gateway) emitUserRooms(ctx context.Context, client *Client, userID int64) error {
	rooms, err := g.rooms.GetUserRooms(ctx, userID)
	if err != nil {
		return err
	}
	g.emit(client, EventUserRooms, UserRoomsPayload{Rooms: rooms})
	return nil
}

func (g *Gateway) broadcastMembers(ctx context.Context, roomID int64) error {
	members, err := g.rooms.GetMembers(ctx, roomID)
	if err != nil {
		return err
	}
	_, err = g.hub.Broadcast(roomID, EventMembersList, MembersListPayload{Members: members})
	return err
}

func (g *Gateway) emit(client *Client, event string, payload interface{}) {
	if err := g.hub.EmitTo(client, event, payload); err != nil {
		g.log.Debug("Failed to emit event", "event", event, "connection_id", client.ID().String(), "error", err)
	}
}
