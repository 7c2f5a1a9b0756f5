package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"golang.org/x/time/rate"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope of every message sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types
const (
	WSTypeConnected    = "connected"
	WSTypeJobState     = "job_state"
	WSTypeJobCancelled = "job_cancelled"
	WSTypeHealth       = "health"
)

// WebSocketHandler streams job state changes to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	progressThrottle *rate.Limiter // Nil = every progress event is sent
	serverInstanceID string        // Clients use it to detect a server restart

	stateMu   sync.Mutex
	last      models.JobEvent
	lastState models.JobState
}

// NewWebSocketHandler creates the handler and subscribes it to job and health events
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
		last:             models.JobEvent{Job: models.NewIdleJob()},
		lastState:        models.JobStateIdle,
	}

	if config != nil {
		if interval := config.ThrottleDuration(); interval > 0 {
			h.progressThrottle = rate.NewLimiter(rate.Every(interval), 1)
			logger.Debug().Dur("interval", interval).Msg("Progress throttler initialized")
		}
	}

	if eventService != nil {
		h.subscribe()
	}

	logger.Debug().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

func (h *WebSocketHandler) subscribe() {
	if err := h.eventService.Subscribe(interfaces.EventJobStateChanged, h.onJobStateChanged); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to subscribe to job state changes")
	}
	if err := h.eventService.Subscribe(interfaces.EventJobCancelled, h.onJobCancelled); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to subscribe to job cancellations")
	}
	if err := h.eventService.Subscribe(interfaces.EventHealthChecked, h.onHealthChecked); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to subscribe to health events")
	}
}

// HandleWebSocket handles WebSocket connections.
// New clients receive the server instance id and then the current job state.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	// Hold the connection's write lock until the snapshot is out so a
	// concurrent broadcast cannot overtake it
	mutex := &sync.Mutex{}
	mutex.Lock()
	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.stateMu.Lock()
	snapshot := h.last
	h.stateMu.Unlock()

	h.sendLocked(conn, WSMessage{Type: WSTypeConnected, Payload: map[string]string{"server_instance_id": h.serverInstanceID}})
	h.sendLocked(conn, WSMessage{Type: WSTypeJobState, Payload: snapshot})
	mutex.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
	}()

	// Read until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) onJobStateChanged(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(models.JobEvent)
	if !ok {
		return nil
	}

	h.stateMu.Lock()
	h.last = payload
	progressOnly := payload.Job.State == h.lastState && payload.Job.State.IsActive()
	h.lastState = payload.Job.State
	h.stateMu.Unlock()

	// State changes always go out; repeated progress for the same state is throttled
	if progressOnly && h.progressThrottle != nil && !h.progressThrottle.Allow() {
		return nil
	}

	h.broadcast(WSMessage{Type: WSTypeJobState, Payload: payload})
	return nil
}

func (h *WebSocketHandler) onJobCancelled(ctx context.Context, event interfaces.Event) error {
	h.broadcast(WSMessage{Type: WSTypeJobCancelled, Payload: event.Payload})
	return nil
}

func (h *WebSocketHandler) onHealthChecked(ctx context.Context, event interfaces.Event) error {
	h.broadcast(WSMessage{Type: WSTypeHealth, Payload: event.Payload})
	return nil
}

func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		if err := h.write(conn, mutexes[i], data); err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}

func (h *WebSocketHandler) sendLocked(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, mutex *sync.Mutex, data []byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
