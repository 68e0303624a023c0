// Package websocket pushes stored telemetry to subscribed clients.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Outbound frames buffered per client before it is considered slow.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans stored messages out to the clients watching each device.
type Hub struct {
	// Clients grouped by the device they watch.
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *entities.Message
	stopChan   chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *entities.Message, 256),
		stopChan:   make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.deviceID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.deviceID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Stream client registered", zap.String("device_id", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Info("Stream client unregistered", zap.String("device_id", client.deviceID))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Stop closes every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Notify queues message for its watchers without blocking. Messages are
// dropped when the hub is behind.
func (h *Hub) Notify(message *entities.Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Stream hub behind, dropping message", zap.String("device_id", message.DeviceID))
	}
}

// ClientCount returns the number of clients watching deviceID
func (h *Hub) ClientCount(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[deviceID])
}

func (h *Hub) deliver(message *entities.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[message.DeviceID]
	if len(set) == 0 {
		return
	}

	payload, err := json.Marshal(NewTelemetryMessage(message))
	if err != nil {
		h.logger.Error("Failed to marshal telemetry frame", zap.Error(err))
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Dropping slow stream client", zap.String("device_id", client.deviceID))
			h.remove(client)
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.deviceID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.deviceID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.remove(client)
		}
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	// Device this client watches
	deviceID string

	logger *zap.Logger
}

// HandleStream validates the caller's session and upgrades to a stream of
// the device's stored messages.
func HandleStream(hub *Hub, sessions usecase.SessionGate, c echo.Context, logger *zap.Logger) error {
	token := c.QueryParam("login_token")
	deviceID := c.QueryParam("id")
	if token == "" || deviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest.Error())
	}

	ok, err := sessions.Validate(c.Request().Context(), token)
	if err != nil {
		logger.Error("Failed to validate stream session", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, domain.Code(err))
	}
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, domain.ErrSessionExpired.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		deviceID: deviceID,
		logger:   logger,
	}

	select {
	case hub.register <- client:
	case <-hub.stopChan:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump reads client frames until the connection closes.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.processMessage(data)
	}
}

func (c *Client) processMessage(data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		c.reply(NewErrorMessage(domain.CodeDecode, err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.reply(NewPongMessage(msg.Data))
	default:
		c.reply(NewErrorMessage(domain.ErrInvalidRequest.Error(), "unsupported message type"))
	}
}

// reply queues a frame for this client. The hub closes send under the write
// lock, so holding the read lock keeps the channel open.
func (c *Client) reply(frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.deviceID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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
