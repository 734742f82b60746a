// Package websocket pushes post events to browsers watching a feed, so they
// can refresh without polling.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"yatube/middleware"
	"yatube/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var wlog = logrus.WithField("component", "websocket")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Manager fans post events out to the connected clients whose filter
// matches. Run must be running for clients to register.
type Manager struct {
	clients    map[*Client]bool
	broadcast  chan models.PostEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn     *websocket.Conn
	username string
	send     chan []byte
	manager  *Manager

	mu     sync.Mutex
	filter models.Filter
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.PostEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until ctx is cancelled, then disconnects everyone.
func (m *Manager) Run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		for client := range m.clients {
			delete(m.clients, client)
			close(client.send)
		}
		m.mu.Unlock()
		close(m.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.mu.Unlock()
			wlog.WithFields(logrus.Fields{"user": client.username, "clients": total}).Debug("Client registered")

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.mu.Unlock()

		case ev := <-m.broadcast:
			msg, err := json.Marshal(envelope{Type: string(ev.Kind), Payload: ev})
			if err != nil {
				wlog.WithError(err).Error("Failed to encode post event")
				continue
			}
			m.mu.Lock()
			for client := range m.clients {
				if !ev.Matches(client.Filter()) {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// Slow reader; drop it rather than block everyone.
					close(client.send)
					delete(m.clients, client)
				}
			}
			m.mu.Unlock()
		}
	}
}

// PostSaved queues the event for delivery. It gives up when ctx ends or the
// manager has stopped.
func (m *Manager) PostSaved(ctx context.Context, ev models.PostEvent) {
	select {
	case m.broadcast <- ev:
	case <-ctx.Done():
	case <-m.done:
	}
}

func (m *Manager) ConnectedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (c *Client) Filter() models.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Client) setFilter(f models.Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Handler upgrades GET /ws. The optional filter query parameter takes the
// same form as feed filters ("all", "group:<slug>", "author:<username>").
func Handler(m *Manager, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin:     checkOrigin(allowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return func(c *gin.Context) {
		filter, err := models.ParseFilter(c.Query("filter"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			wlog.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			username: middleware.CurrentPrincipal(c).Username,
			send:     make(chan []byte, sendBuffer),
			manager:  m,
			filter:   filter,
		}

		// Queued before registering so nothing else can have closed send yet.
		if welcome, err := json.Marshal(envelope{Type: "connected", Payload: gin.H{"filter": filter.String(), "time": time.Now().Unix()}}); err == nil {
			client.send <- welcome
		}
		select {
		case m.register <- client:
		case <-m.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

type inbound struct {
	Type   string `json:"type"`
	Filter string `json:"filter"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wlog.WithError(err).Debug("WebSocket read error")
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			filter, err := models.ParseFilter(msg.Filter)
			if err != nil {
				c.reply("error", gin.H{"error": err.Error()})
				continue
			}
			c.setFilter(filter)
			c.reply("subscribed", gin.H{"filter": filter.String()})
		case "ping":
			c.reply("pong", gin.H{"time": time.Now().Unix()})
		}
	}
}

// reply queues a message for this client only. It drops the message if the
// buffer is full or the client is already gone.
func (c *Client) reply(kind string, payload any) {
	msg, err := json.Marshal(envelope{Type: kind, Payload: payload})
	if err != nil {
		return
	}
	c.manager.mu.RLock()
	defer c.manager.mu.RUnlock()
	if !c.manager.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
