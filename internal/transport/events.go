package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/observer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	clientBuffer = 16
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	readTimeout  = 2 * pingInterval
)

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub streams pipeline events to connected UI clients. It is an
// observer and never blocks the publisher: slow clients lose messages.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*eventClient]struct{}

	messagesSent    atomic.Uint64
	messagesDropped atomic.Uint64
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the UI is served from a different origin during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*eventClient]struct{}),
	}
}

// OnEvent fans the event out to every client
func (h *EventHub) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Error("Failed to encode pipeline event")
		return
	}
	h.broadcast(data)
}

func (h *EventHub) GetObserverName() string {
	return "websocket_hub"
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients
func (h *EventHub) Dropped() uint64 {
	return h.messagesDropped.Load()
}

// ServeWS upgrades the request and keeps the client subscribed until it
// disconnects. snapshot is taken after the client is registered and is
// always its first message, so no state change can fall in between.
func (h *EventHub) ServeWS(c *gin.Context, snapshot func() interface{}) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.register(client, snapshot)

	go h.writeLoop(client)
	h.readLoop(client)
}

// Close disconnects every client
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// register holds the hub lock across the snapshot so broadcasts queue
// behind it. snapshot must not call back into the hub.
func (h *EventHub) register(client *eventClient, snapshot func() interface{}) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	if snapshot != nil {
		if data, err := json.Marshal(snapshot()); err == nil {
			client.send <- data
		} else {
			logger.WithError(err).Error("Failed to encode initial state")
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	logger.WithField("clients", count).Debug("Event stream client connected")
}

func (h *EventHub) unregister(client *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	logger.WithField("clients", count).Debug("Event stream client disconnected")
}

func (h *EventHub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
			h.messagesSent.Add(1)
		default:
			h.messagesDropped.Add(1)
		}
	}
}

// readLoop discards client messages; it exists to notice disconnects and
// answer control frames.
func (h *EventHub) readLoop(client *eventClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(readTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(client *eventClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
