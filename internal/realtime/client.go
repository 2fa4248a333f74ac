package realtime

import (
	"sync"
	"time"

	"chat_room/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client - websocket соединение с ограниченной очередью на отправку.
// Писать в conn может только writePump.
type Client struct {
	id        uuid.UUID
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

func newClient(id uuid.UUID, conn *websocket.Conn, bufferSize int, log logger.Logger) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

// enqueue не блокируется. Если очередь полна, клиент считается медленным и отключается.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("Send buffer full, dropping slow connection", "connection_id", c.id.String())
		c.Close()
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Failed to write frame", "connection_id", c.id.String(), "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush(writeWait)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush отправляет то, что уже лежит в очереди на момент закрытия,
// укладываясь в один общий writeWait
func (c *Client) flush(writeWait time.Duration) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
