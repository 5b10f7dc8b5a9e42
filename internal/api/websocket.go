package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/printer"
)

// WebSocket message types sent by clients and replies. Broadcasts use the
// event bus type names such as "printer.added" or "job.completed".
const (
	EventPrint    = "print"
	EventCommand  = "command"
	EventResponse = "response"
	EventError    = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
	sendBufferSize = 256
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// wsRequest is a client message; data is decoded per event
type wsRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub relays event bus events to every connected WebSocket client
type Hub struct {
	service   *printer.Service
	events    <-chan printer.Event
	clients   map[*WSClient]bool
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewHub subscribes to all service events. Call Run to start relaying.
func NewHub(service *printer.Service, logger *zap.Logger) *Hub {
	return &Hub{
		service: service,
		events:  service.Subscribe(),
		clients: make(map[*WSClient]bool),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run broadcasts events until Close is called or the bus shuts down
func (h *Hub) Run() {
	for {
		select {
		case event, ok := <-h.events:
			if !ok {
				return
			}
			h.broadcast(WSMessage{Event: string(event.Type), Data: event})
		case <-h.done:
			return
		}
	}
}

// Close stops relaying and disconnects every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.service.Unsubscribe(h.events)

		h.mu.Lock()
		for client := range h.clients {
			client.close()
			delete(h.clients, client)
		}
		h.mu.Unlock()
	})
}

func (h *Hub) add(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected", zap.String("remote", client.conn.RemoteAddr().String()), zap.Int("clients", count))
}

func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	client.close()
	if ok {
		h.logger.Info("WebSocket client disconnected", zap.String("remote", client.conn.RemoteAddr().String()))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.enqueue(msg) {
			h.logger.Debug("WebSocket client is slow, dropping message", zap.String("event", msg.Event))
		}
	}
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
	closed bool
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, sendBufferSize),
		server: s,
	}
	s.hub.add(client)

	go client.writePump()
	go client.readPump()
}

// enqueue queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *WSClient) enqueue(msg WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debug("WebSocket write error", zap.Error(err))
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

func (c *WSClient) readPump() {
	defer func() {
		c.server.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg wsRequest
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("WebSocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *wsRequest) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	case EventCommand:
		c.handleCommandEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

func (c *WSClient) handlePrintEvent(data json.RawMessage) {
	var req receiptRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(fmt.Sprintf("invalid print request: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := c.server.prepare(ctx, &req)
	if err != nil {
		c.sendError(fmt.Sprintf("invalid receipt: %v", err))
		return
	}

	payload, err := p.Execute()
	if err != nil {
		c.sendError(fmt.Sprintf("failed to encode receipt: %v", err))
		return
	}

	jobID, err := c.server.service.Submit(req.PrinterID, payload)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.sendResponse(map[string]interface{}{
		"success": true,
		"job_id":  jobID,
		"size":    len(payload),
	})
}

func (c *WSClient) handleCommandEvent(data json.RawMessage) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Command == "" {
		c.sendError("command is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := c.server.executor.Execute(ctx, req.Command)
	if !result.Success {
		c.sendError(result.Error)
		return
	}
	c.sendResponse(result)
}

func (c *WSClient) sendResponse(data interface{}) {
	c.enqueue(WSMessage{
		Event: EventResponse,
		Data:  data,
	})
}

func (c *WSClient) sendError(message string) {
	c.enqueue(WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	})
}
