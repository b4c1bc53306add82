package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/txpipe/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// EventMessage is the websocket notification for one pipeline transition
type EventMessage struct {
	Hash        string `json:"hash,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Nonce       uint64 `json:"nonce"`
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	State       string `json:"state"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	Error       string `json:"error,omitempty"`
	At          string `json:"at"`
}

func newEventMessage(e pipeline.Event) EventMessage {
	msg := EventMessage{
		From:  e.From.Hex(),
		To:    e.To.Hex(),
		Nonce: e.Nonce,
		Kind:  e.Kind.String(),
		State: e.State.String(),
		At:    e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.Hash != (common.Hash{}) {
		msg.Hash = e.Hash.Hex()
	}
	if e.Value != nil {
		msg.Value = e.Value.String()
	}
	if e.Receipt != nil {
		msg.BlockNumber = e.Receipt.BlockNumber
		msg.GasUsed = e.Receipt.GasUsed
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	return msg
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	log  *logrus.Logger
}

// Hub fans pipeline events out to every connected websocket client
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	connected  atomic.Int64
	upgrader   websocket.Upgrader
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connected.Store(0)
			return
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Store(int64(len(h.clients)))
			h.log.Infof("New WebSocket client connected. Total clients: %d", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connected.Store(int64(len(h.clients)))
				h.log.Infof("WebSocket client disconnected. Total clients: %d", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.connected.Store(int64(len(h.clients)))
				}
			}
		}
	}
}

// Clients is the number of registered connections
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Observe queues e for broadcast and drops it when the queue is full
func (h *Hub) Observe(e pipeline.Event) {
	data, err := json.Marshal(newEventMessage(e))
	if err != nil {
		h.log.Errorf("Failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warnf("Event queue full, dropping %s event for nonce %d", e.State, e.Nonce)
	}
}

func (h *Hub) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, sendBuffer), log: h.log}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// readPump only keeps the connection alive; clients do not send commands
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
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
