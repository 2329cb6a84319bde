package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

const (
	sendBuffer = 256
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one websocket connection. An empty player is a spectator.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	player board.PlayerID
}

// outbound is a message for every client matching the filter.
type outbound struct {
	match func(*Client) bool
	data  []byte
}

// Hub owns the set of registered clients. Only the run loop touches the set
// or closes a client's send channel.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	outbound   chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		outbound:   make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client registered",
				zap.String("player", string(client.player)),
				zap.Int("clients", len(h.clients)),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("client unregistered", zap.String("player", string(client.player)))
			}

		case msg := <-h.outbound:
			for client := range h.clients {
				if msg.match != nil && !msg.match(client) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("dropping slow client", zap.String("player", string(client.player)))
				}
			}
		}
	}
}

// add registers a client; it reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) publish(match func(*Client) bool, data []byte) {
	select {
	case h.outbound <- outbound{match: match, data: data}:
	case <-h.done:
	}
}

// Broadcast sends data to every client.
func (h *Hub) Broadcast(data []byte) {
	h.publish(nil, data)
}

// SendTo sends data to the connections of one player.
func (h *Hub) SendTo(player board.PlayerID, data []byte) {
	h.publish(func(c *Client) bool { return c.player == player }, data)
}

// SendToSpectators sends data to connections without a seat.
func (h *Hub) SendToSpectators(data []byte) {
	h.publish(func(c *Client) bool { return c.player == "" }, data)
}

func (h *Hub) reply(c *Client, data []byte) {
	h.publish(func(other *Client) bool { return other == c }, data)
}

// writePump drains the send channel and keeps the connection alive with pings.
func (c *Client) writePump(writeTimeout time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every message to handle until the connection fails.
func (c *Client) readPump(hub *Hub, readLimit int64, handle func(*Client, []byte)) {
	defer func() {
		hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Debug("websocket read failed",
					zap.String("player", string(c.player)),
					zap.Error(err),
				)
			}
			return
		}
		handle(c, message)
	}
}
